package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/taskmail/internal/config"
	"github.com/josephgoksu/taskmail/internal/llm"
	"github.com/josephgoksu/taskmail/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and edit configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		settings := redactSecrets(viper.AllSettings())
		delete(settings, "config")
		if isJSON() {
			return printJSON(cmd.OutOrStdout(), settings)
		}
		return printYAML(cmd.OutOrStdout(), settings)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write one setting to the config file",
	Example: `  taskmail config set llm.provider anthropic
  taskmail config set dedup.threshold 60
  taskmail config set budget.enabled true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configWritePath()
		if err != nil {
			return err
		}
		if err := config.SaveValue(path, args[0], parseValue(args[1])); err != nil {
			return err
		}
		if !isQuiet() {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("%s saved to %s", args[0], path)))
		}
		return nil
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <provider> <api-key>",
	Short: "Store an API key for a model provider",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, err := llm.ValidateProvider(args[0])
		if err != nil {
			return err
		}
		path, err := configWritePath()
		if err != nil {
			return err
		}
		if err := config.SaveAPIKeyForProvider(path, string(provider), strings.TrimSpace(args[1])); err != nil {
			return err
		}
		if !isQuiet() {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("%s key saved to %s", provider, path)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd, configSetKeyCmd)
}

// configWritePath is the file in use, or ~/.taskmail.yaml.
func configWritePath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	return config.DefaultConfigPath()
}

// parseValue keeps YAML types for booleans and numbers.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

var secretKeys = []string{"apikey", "apikeys", "jwtsecret"}

func redactSecrets(settings map[string]any) map[string]any {
	for k, v := range settings {
		lk := strings.ToLower(k)
		isSecret := false
		for _, s := range secretKeys {
			if lk == s {
				isSecret = true
				break
			}
		}
		switch val := v.(type) {
		case map[string]any:
			if isSecret {
				masked := make(map[string]any, len(val))
				for p := range val {
					masked[p] = "****"
				}
				settings[k] = masked
			} else {
				settings[k] = redactSecrets(val)
			}
		case string:
			if isSecret && val != "" {
				settings[k] = maskSecret(val)
			}
		}
	}
	return settings
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
