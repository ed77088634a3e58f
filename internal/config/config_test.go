package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amonks/spacetodo/internal/config"
	"github.com/amonks/spacetodo/internal/testsupport"
	"github.com/amonks/spacetodo/record"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{config.EnvBackend, config.EnvDataDir, config.EnvRedisURL, config.EnvUser, config.EnvLogLevel, config.EnvCollation} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_NotFound(t *testing.T) {
	testsupport.SetupTestHome(t)
	clearEnv(t)
	tmpDir := t.TempDir()

	cfg, err := config.Load(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Backend() != config.BackendFile {
		t.Errorf("Backend() = %q, expected %q", cfg.Backend(), config.BackendFile)
	}
	if cfg.Collation() != record.CollationExact {
		t.Errorf("Collation() = %q, expected exact", cfg.Collation())
	}
	dir, err := cfg.DataDir()
	if err != nil {
		t.Fatalf("DataDir: %v", err)
	}
	if !strings.HasSuffix(dir, filepath.Join(".local", "share", "spacetodo")) {
		t.Errorf("DataDir() = %q", dir)
	}
}

func TestLoad_Full(t *testing.T) {
	testsupport.SetupTestHome(t)
	clearEnv(t)
	tmpDir := t.TempDir()

	writeFile(t, filepath.Join(tmpDir, config.ProjectFile), `
[store]
backend = "sqlite"
path = " /var/lib/spacetodo "
collation = "fold"

[catalog]
picker-limit = 5
browse-limit = 150

[log]
level = "debug"
format = "json"

[user]
id = "ada"
`)

	cfg, err := config.Load(tmpDir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Backend() != config.BackendSQLite {
		t.Errorf("Backend() = %q", cfg.Backend())
	}
	if cfg.Store.Path != "/var/lib/spacetodo" {
		t.Errorf("Store.Path = %q, expected trimmed path", cfg.Store.Path)
	}
	if cfg.Collation() != record.CollationFold {
		t.Errorf("Collation() = %q", cfg.Collation())
	}
	if cfg.Catalog.PickerLimit != 5 || cfg.Catalog.BrowseLimit != 150 {
		t.Errorf("Catalog = %+v", cfg.Catalog)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.User.ID != "ada" {
		t.Errorf("User.ID = %q", cfg.User.ID)
	}
}

func TestLoad_ProjectOverridesGlobal(t *testing.T) {
	home := testsupport.SetupTestHome(t)
	clearEnv(t)
	tmpDir := t.TempDir()

	writeFile(t, filepath.Join(home, ".config", "spacetodo", "config.toml"), `
[store]
backend = "redis"
redis-url = "redis://localhost:6379/0"

[catalog]
picker-limit = 20

[user]
id = "global-user"
`)
	writeFile(t, filepath.Join(tmpDir, config.ProjectFile), `
[store]
backend = "file"

[catalog]
picker-limit = 0
`)

	cfg, err := config.Load(tmpDir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Backend() != config.BackendFile {
		t.Errorf("Backend() = %q, expected project value", cfg.Backend())
	}
	if cfg.Store.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q, expected global value", cfg.Store.RedisURL)
	}
	if cfg.Catalog.PickerLimit != 0 {
		t.Errorf("PickerLimit = %d, expected project's explicit 0", cfg.Catalog.PickerLimit)
	}
	if cfg.User.ID != "global-user" {
		t.Errorf("User.ID = %q, expected global value", cfg.User.ID)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	testsupport.SetupTestHome(t)
	clearEnv(t)
	tmpDir := t.TempDir()

	writeFile(t, filepath.Join(tmpDir, config.ProjectFile), `
[store]
backend = "sqlite"

[user]
id = "file-user"
`)
	writeFile(t, filepath.Join(tmpDir, ".env"), `
SPACETODO_USER=dotenv-user
SPACETODO_LOG_LEVEL=info
`)
	t.Setenv(config.EnvBackend, "memory")
	t.Setenv(config.EnvLogLevel, "error")

	cfg, err := config.Load(tmpDir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Backend() != config.BackendMemory {
		t.Errorf("Backend() = %q, expected env value", cfg.Backend())
	}
	if cfg.User.ID != "dotenv-user" {
		t.Errorf("User.ID = %q, expected .env value", cfg.User.ID)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, expected process env to beat .env", cfg.Log.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{name: "syntax", content: "[store\n", want: "parse config file"},
		{name: "unknown key", content: "[store]\nbakend = \"file\"\n", want: "unknown key"},
		{name: "backend", content: "[store]\nbackend = \"postgres\"\n", want: "unknown store backend"},
		{name: "collation", content: "[store]\ncollation = \"nocase\"\n", want: "unknown collation"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			testsupport.SetupTestHome(t)
			clearEnv(t)
			tmpDir := t.TempDir()
			writeFile(t, filepath.Join(tmpDir, config.ProjectFile), tc.content)

			_, err := config.Load(tmpDir)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, expected it to mention %q", err, tc.want)
			}
		})
	}
}
