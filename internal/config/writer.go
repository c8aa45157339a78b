package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultConfigPath returns ~/.taskmail.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName+".yaml"), nil
}

// SaveValue sets key in the YAML file at path, keeping every other setting.
// The file is created with 0600 since it may hold API keys.
func SaveValue(path, key string, value any) error {
	if key == "" {
		return fmt.Errorf("config key cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
	}

	v.Set(key, value)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return os.Chmod(path, 0600)
}

// SaveAPIKeyForProvider stores key under llm.apiKeys.<provider>.
func SaveAPIKeyForProvider(path, provider, key string) error {
	if provider == "" {
		return fmt.Errorf("provider cannot be empty")
	}
	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}
	return SaveValue(path, fmt.Sprintf("llm.apiKeys.%s", provider), key)
}
