// Package paths resolves the filesystem locations switchyard stores state in.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// stateDirName is the directory under the user's home holding all state.
const stateDirName = ".switchyard"

// StateDir returns the state directory (~/.switchyard), honoring the
// SWITCHYARD_HOME override. Falls back to a relative .switchyard directory
// when the home directory cannot be determined.
func StateDir() string {
	if override := os.Getenv("SWITCHYARD_HOME"); override != "" {
		return filepath.Clean(override)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return stateDirName
	}
	return filepath.Join(home, stateDirName)
}

// DatabasePath returns the SQLite database path inside the state directory.
func DatabasePath() string {
	return filepath.Join(StateDir(), "switchyard.db")
}

// ConfigPath returns the YAML config file path inside the state directory.
func ConfigPath() string {
	return filepath.Join(StateDir(), "config.yaml")
}

// ExpandHome expands a leading "~" or "~/" in p to the user's home directory.
// Paths without the prefix are returned unchanged.
func ExpandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		if p == "~" {
			return home
		}
		return filepath.Join(home, p[2:])
	}
	return p
}
