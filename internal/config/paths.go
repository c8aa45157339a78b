package config

import (
	"os"
	"path/filepath"

	"github.com/josephgoksu/taskmail/internal/memory"
	"github.com/josephgoksu/taskmail/internal/pipeline"
	"github.com/josephgoksu/taskmail/internal/policy"
)

// GetGlobalConfigDir returns ~/.taskmail. A variable so tests can override it.
var GetGlobalConfigDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".taskmail"), nil
}

// ResolveDataDir picks the data directory. First match wins:
// 1. configured data.dir
// 2. XDG_DATA_HOME/taskmail
// 3. ~/.taskmail
func ResolveDataDir(configured string) string {
	if configured != "" {
		return configured
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "taskmail")
	}
	dir, err := GetGlobalConfigDir()
	if err != nil {
		return ".taskmail"
	}
	return dir
}

// DatabasePath returns the SQLite file the store opens inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.Dir, memory.DBFileName)
}

// PoliciesDir returns the configured policy directory, or <data>/policies.
func (c *Config) PoliciesDir() string {
	if c.Policy.Dir != "" {
		return c.Policy.Dir
	}
	return policy.PoliciesPath(c.Data.Dir)
}

// SweepLockPath is the flock file that keeps sweeps single-flight across processes.
func (c *Config) SweepLockPath() string {
	return filepath.Join(c.Data.Dir, pipeline.SweepLockFile)
}

// InboxDirs returns the processed and failed directories for a watched inbox.
func InboxDirs(inbox string) (processed, failed string) {
	return filepath.Join(inbox, "processed"), filepath.Join(inbox, "failed")
}
