package config

import (
	"os"
	"path/filepath"
)

const (
	configFileName = "grove-status.toml"
	envFileName    = ".env"
)

// ConfigPaths returns the ordered list of config file paths to check.
// Paths are ordered from lowest to highest priority, so that when decoded
// sequentially, each subsequent file overrides values from previous files.
//
// Order (lowest to highest priority):
//  1. File in XDG config directory (~/.config/grove-status/grove-status.toml)
//  2. File in the home directory
//  3. File in git repository root (main worktree)
//  4. File in current worktree root (if different from git root)
//  5. File in current working directory (if different from worktree root)
//
// Unlike per-project tooling, the dashboard usually runs from a workspace
// that spans several repositories, so ancestors between home and the git
// root are not consulted. Empty arguments are skipped.
func ConfigPaths(cwd, worktreeRoot, gitRoot, homeDir string) []string {
	var paths []string
	seen := make(map[string]bool)

	addPath := func(dir string) {
		if dir == "" {
			return
		}
		path := filepath.Join(dir, configFileName)
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}

	if xdgConfigDir, err := os.UserConfigDir(); err == nil {
		addPath(filepath.Join(xdgConfigDir, "grove-status"))
	}

	addPath(homeDir)
	addPath(gitRoot)
	addPath(worktreeRoot)
	addPath(cwd)

	return paths
}

// EnvPaths returns the .env file that sits beside each config path, highest
// priority first. godotenv never overwrites variables that are already set,
// so loading in this order lets the most specific file win.
func EnvPaths(configPaths []string) []string {
	envPaths := make([]string, 0, len(configPaths))
	seen := make(map[string]bool)
	for i := len(configPaths) - 1; i >= 0; i-- {
		path := filepath.Join(filepath.Dir(configPaths[i]), envFileName)
		if !seen[path] {
			seen[path] = true
			envPaths = append(envPaths, path)
		}
	}
	return envPaths
}
