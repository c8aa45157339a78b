package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/josephgoksu/taskmail/internal/app"
	"github.com/josephgoksu/taskmail/internal/config"
	"github.com/josephgoksu/taskmail/internal/logger"
	"github.com/josephgoksu/taskmail/internal/telemetry"
)

const (
	configName = config.ConfigFileName
	envPrefix  = config.EnvPrefix
)

// InitConfig reads in config file and ENV variables if set.
func InitConfig() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix) // e.g., TASKMAIL_LLM_PROVIDER
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Defaults register every key so environment overrides reach Unmarshal.
	config.SetDefaults(viper.GetViper())

	cfgFileFlag := viper.GetString("config")
	if cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else {
		viper.AddConfigPath(".") // ./.taskmail.yaml wins over the home directory
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(configName)
	}

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	case errors.As(err, &notFound):
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "No config file found. Using defaults and environment variables.")
		}
	case cfgFileFlag != "" && errors.Is(err, fs.ErrNotExist):
		fmt.Fprintln(os.Stderr, "Error: Specified config file not found:", cfgFileFlag)
	default:
		fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
	}
}

// loadConfig validates the merged configuration and points crash logs at the
// data directory.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.SetBasePath(cfg.Data.Dir)
	return cfg, nil
}

// newLogger builds the service logger. --verbose forces debug level.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Log.Level
	if isVerbose() {
		level = "debug"
	}
	return logger.New(level, cfg.Log.Format)
}

// openApp loads configuration and opens the data directory. Callers must Close it.
func openApp(command string) (*app.Context, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	a, err := app.Open(cfg, log, version)
	if err != nil {
		return nil, err
	}
	a.Telemetry.Track(telemetry.EventCommandExecuted, map[string]any{"command": command})
	return a, nil
}
