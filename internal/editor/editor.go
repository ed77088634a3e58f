// Package editor opens $EDITOR on a task and parses what comes back.
package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// command returns the user's editor split into program and arguments.
// $VISUAL wins over $EDITOR, and vi is the fallback.
func command() []string {
	for _, name := range []string{"VISUAL", "EDITOR"} {
		if fields := strings.Fields(os.Getenv(name)); len(fields) > 0 {
			return fields
		}
	}
	return []string{"vi"}
}

// Edit runs the editor on path attached to the terminal and waits for it.
func Edit(ctx context.Context, path string) error {
	argv := command()
	cmd := exec.CommandContext(ctx, argv[0], append(argv[1:], path)...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &exitErr):
		return fmt.Errorf("%s exited with status %d", argv[0], exitErr.ExitCode())
	default:
		return fmt.Errorf("run editor: %w", err)
	}
}
