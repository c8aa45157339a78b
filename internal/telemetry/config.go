// Package telemetry sends opt-in, anonymous usage events to PostHog.
// Events never carry email content, task titles or owner names.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ConfigFileName is stored in the data directory next to the database.
const ConfigFileName = "telemetry.json"

// Config holds the enabled flag and the installation's anonymous id.
type Config struct {
	Enabled bool `json:"enabled"`

	// AnonymousID is a random UUID generated once per data directory.
	AnonymousID string `json:"anonymous_id"`
}

// IsEnabled returns true if telemetry is currently enabled.
func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled
}

// ConfigPath returns the identity file path for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, ConfigFileName)
}

// Load reads the identity file under dataDir, generating (and saving) a new
// anonymous id on first use. enabled comes from application configuration
// and always wins over the stored flag.
func Load(dataDir string, enabled bool) (*Config, error) {
	cfg := &Config{}
	path := ConfigPath(dataDir)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	dirty := cfg.Enabled != enabled
	cfg.Enabled = enabled
	if cfg.AnonymousID == "" {
		cfg.AnonymousID = uuid.New().String()
		dirty = true
	}
	if dirty {
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Save writes the identity file with owner-only permissions.
func (c *Config) Save(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal telemetry config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(dataDir), data, 0600); err != nil {
		return fmt.Errorf("write telemetry config: %w", err)
	}
	return nil
}
