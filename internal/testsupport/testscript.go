package testsupport

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

var (
	buildOnce sync.Once
	sptPath   string
	buildErr  error
)

// BuildSpt builds the spt binary once and returns its path.
func BuildSpt(t testing.TB) string {
	t.Helper()

	buildOnce.Do(func() {
		moduleRoot, err := findModuleRoot()
		if err != nil {
			buildErr = err
			return
		}

		binDir, err := os.MkdirTemp("", "spt-bin-")
		if err != nil {
			buildErr = err
			return
		}

		sptPath = filepath.Join(binDir, "spt")
		cmd := exec.Command("go", "build", "-o", sptPath, "./cmd/spt")
		cmd.Dir = moduleRoot
		output, err := cmd.CombinedOutput()
		if err != nil {
			buildErr = fmt.Errorf("build spt: %w: %s", err, strings.TrimSpace(string(output)))
		}
	})

	if buildErr != nil {
		t.Fatalf("%v", buildErr)
	}

	return sptPath
}

// SetupScriptEnv gives a script its own home and data directory and points
// $SPT at the binary.
func SetupScriptEnv(t testing.TB, env *testscript.Env) error {
	t.Helper()

	env.Setenv("SPT", BuildSpt(t))

	homeDir := filepath.Join(env.WorkDir, "home")
	if err := EnsureHomeDirs(homeDir); err != nil {
		return err
	}
	env.Setenv("HOME", homeDir)
	env.Setenv("NO_COLOR", "1")
	env.Setenv("SPACETODO_DATA_DIR", filepath.Join(env.WorkDir, "data"))
	return nil
}

// CmdEnvSet stores the trimmed contents of a file in an env var.
func CmdEnvSet(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("envset does not support negation")
	}
	if len(args) != 2 {
		ts.Fatalf("usage: envset VAR FILE")
	}

	value := strings.TrimSpace(ts.ReadFile(args[1]))
	ts.Setenv(args[0], value)
}

// CmdExitCode runs a program and checks its exit status. Its output is
// available to the stdout and stderr commands that follow.
func CmdExitCode(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("exitcode does not support negation")
	}
	if len(args) < 2 {
		ts.Fatalf("usage: exitcode CODE PROGRAM [ARGS...]")
	}
	want, err := strconv.Atoi(args[0])
	if err != nil {
		ts.Fatalf("exitcode: bad code %q", args[0])
	}

	got := 0
	if err := ts.Exec(args[1], args[2:]...); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			ts.Fatalf("exitcode: %v", err)
		}
		got = exitErr.ExitCode()
	}
	if got != want {
		ts.Fatalf("%s exited with %d, want %d", args[1], got, want)
	}
}

// CmdJSONID finds the record whose field equals value in a JSON array
// file and stores its id in an env var.
func CmdJSONID(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("jsonid does not support negation")
	}
	if len(args) != 4 {
		ts.Fatalf("usage: jsonid FILE FIELD VALUE VAR")
	}

	var items []map[string]any
	data := ts.ReadFile(args[0])
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		ts.Fatalf("parse %s: %v", args[0], err)
	}

	field, value := args[1], args[2]
	for _, item := range items {
		if fmt.Sprint(item[field]) == value {
			id, _ := item["id"].(string)
			ts.Setenv(args[3], id)
			return
		}
	}

	ts.Fatalf("no record with %s %q in %s", field, value, args[0])
}

// Commands returns the custom testscript commands.
func Commands() map[string]func(*testscript.TestScript, bool, []string) {
	return map[string]func(*testscript.TestScript, bool, []string){
		"envset":   CmdEnvSet,
		"exitcode": CmdExitCode,
		"jsonid":   CmdJSONID,
	}
}

func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find module root (go.mod)")
		}
		dir = parent
	}
}
