// Package paths locates spacetodo's files under the user's home directory.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "spacetodo"

// HomeDir returns the user's home directory.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return home, nil
}

// DefaultDataDir returns the directory the file and sqlite stores use when
// no path is configured.
func DefaultDataDir() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", appName), nil
}

// GlobalConfigPath returns the path of the user's config file.
func GlobalConfigPath() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// SQLitePath returns the database file inside dataDir. A path that already
// names a .db file is returned unchanged.
func SQLitePath(dataDir string) string {
	if filepath.Ext(dataDir) == ".db" {
		return dataDir
	}
	return filepath.Join(dataDir, appName+".db")
}
