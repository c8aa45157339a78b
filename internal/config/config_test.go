package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/taskmail/internal/llm"
	"github.com/josephgoksu/taskmail/internal/memory"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	v := viper.New()
	v.Set("data.dir", t.TempDir())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 0.5, cfg.Mail.PlainTextMinRatio)
	assert.Equal(t, float64(50), cfg.Dedup.Threshold)
	assert.False(t, cfg.Dedup.OnReceive)
	assert.True(t, cfg.Sweep.Enabled)
	assert.Equal(t, time.Hour, cfg.Sweep.Interval)
	assert.Equal(t, "apikey", cfg.Auth.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, filepath.Join(cfg.Data.Dir, memory.DBFileName), cfg.DatabasePath())
	assert.Equal(t, filepath.Join(cfg.Data.Dir, "policies"), cfg.PoliciesDir())
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".taskmail.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  dir: /tmp/taskmail-test
llm:
  provider: Anthropic
  timeoutSeconds: 30
dedup:
  threshold: 70
  onReceive: true
sweep:
  interval: 15m
budget:
  enabled: true
  depositNanoUSD: 500
`), 0600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, float64(70), cfg.Dedup.Threshold)
	assert.True(t, cfg.Dedup.OnReceive)
	assert.Equal(t, 15*time.Minute, cfg.Sweep.Interval)
	assert.True(t, cfg.Budget.Enabled)
	assert.Equal(t, int64(500), cfg.Budget.DepositNanoUSD)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
		want string
	}{
		{"unknown provider", "llm.provider", "acme", "LLM.Provider must be one of"},
		{"threshold above 100", "dedup.threshold", 150, "Dedup.Threshold out of range"},
		{"zero ratio", "mail.plainTextMinRatio", 0, "Mail.PlainTextMinRatio"},
		{"jwt without secret", "auth.backend", "jwt", "Auth.JWTSecret is required"},
		{"bad log format", "log.format", "xml", "Log.Format must be one of"},
		{"negative budget", "budget.depositNanoUSD", -1, "Budget.DepositNanoUSD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set("data.dir", t.TempDir())
			v.Set(tt.key, tt.val)

			_, err := LoadFrom(v)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolveDataDir(t *testing.T) {
	assert.Equal(t, "/explicit", ResolveDataDir("/explicit"))

	t.Setenv("XDG_DATA_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "taskmail"), ResolveDataDir(""))

	t.Setenv("XDG_DATA_HOME", "")
	orig := GetGlobalConfigDir
	GetGlobalConfigDir = func() (string, error) { return "/home/test/.taskmail", nil }
	t.Cleanup(func() { GetGlobalConfigDir = orig })
	assert.Equal(t, "/home/test/.taskmail", ResolveDataDir(""))
}

func TestLLMConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	tests := []struct {
		name      string
		settings  LLMSettings
		wantKey   string
		wantModel string
		wantURL   string
	}{
		{
			name:      "openai from env",
			settings:  LLMSettings{Provider: "openai"},
			wantKey:   "env-openai",
			wantModel: "gpt-4.1-mini",
		},
		{
			name:     "per provider key wins",
			settings: LLMSettings{Provider: "openai", APIKey: "legacy", APIKeys: map[string]string{"openai": "cfg-key"}},
			wantKey:  "cfg-key",
		},
		{
			name:     "legacy key is openai only",
			settings: LLMSettings{Provider: "anthropic", APIKey: "legacy"},
			wantKey:  "",
		},
		{
			name:     "gemini falls back to google key",
			settings: LLMSettings{Provider: "gemini"},
			wantKey:  "google-key",
		},
		{
			name:     "ollama default url",
			settings: LLMSettings{Provider: "ollama"},
			wantURL:  llm.DefaultOllamaURL,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LLM: tt.settings}
			got, err := cfg.LLMConfig()
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, got.APIKey)
			if tt.wantModel != "" {
				assert.Equal(t, tt.wantModel, got.Model)
			}
			if tt.wantURL != "" {
				assert.Equal(t, tt.wantURL, got.BaseURL)
			}
		})
	}

	_, err := (&Config{LLM: LLMSettings{Provider: "openai", Backend: "grpc"}}).LLMConfig()
	assert.Error(t, err)
}

func TestSaveValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".taskmail.yaml")

	require.NoError(t, SaveValue(path, "dedup.threshold", 65))
	require.NoError(t, SaveAPIKeyForProvider(path, "openai", "sk-test"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	assert.Equal(t, 65, v.GetInt("dedup.threshold"))
	assert.Equal(t, "sk-test", v.GetString("llm.apiKeys.openai"))

	assert.Error(t, SaveAPIKeyForProvider(path, "", "k"))
	assert.Error(t, SaveValue(path, "", 1))
}
