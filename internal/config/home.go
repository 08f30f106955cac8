package config

import (
	"os"
	"path/filepath"
)

// HomeDirName is the per-repository covrun directory.
const HomeDirName = ".covrun"

// HomeEnv overrides the covrun home directory.
const HomeEnv = "COVRUN_HOME"

// Home returns the covrun home directory for a repository
// Priority order:
//  1. COVRUN_HOME environment variable (if set)
//  2. <root>/.covrun
func Home(root string) string {
	if home := os.Getenv(HomeEnv); home != "" {
		return home
	}
	return filepath.Join(root, HomeDirName)
}

// ConfigPath returns the config file location for a repository.
func ConfigPath(root string) string {
	return filepath.Join(Home(root), "config.yaml")
}
