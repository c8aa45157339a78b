// Package config loads taskmail settings from viper into a validated Config.
// Defaults live here so the CLI, server and tests agree on them.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/josephgoksu/taskmail/internal/dedup"
	"github.com/josephgoksu/taskmail/internal/llm"
	"github.com/josephgoksu/taskmail/internal/mailbody"
)

// EnvPrefix is the prefix for environment overrides (TASKMAIL_LLM_MODEL).
const EnvPrefix = "TASKMAIL"

// ConfigFileName is the config file searched in the working and home directories.
const ConfigFileName = ".taskmail"

const (
	// DefaultServerAddr binds to loopback.
	DefaultServerAddr = "127.0.0.1:8025"

	// DefaultLLMTimeout bounds one extraction call.
	DefaultLLMTimeout = 60 * time.Second

	// DefaultSweepInterval matches the hourly consolidation job.
	DefaultSweepInterval = time.Hour

	// DefaultMaxEmailBytes caps an uploaded email.
	DefaultMaxEmailBytes int64 = 10 << 20

	// DefaultSettleDelay waits for a dropped .eml file to finish writing.
	DefaultSettleDelay = 500 * time.Millisecond

	// DefaultDepositNanoUSD is one dollar.
	DefaultDepositNanoUSD int64 = 1_000_000_000
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.maxEmailBytes", DefaultMaxEmailBytes)

	v.SetDefault("llm.provider", string(llm.DefaultProvider))
	v.SetDefault("llm.timeoutSeconds", int(DefaultLLMTimeout/time.Second))

	v.SetDefault("mail.plainTextMinRatio", mailbody.PlainTextMinRatio)

	v.SetDefault("dedup.threshold", dedup.DefaultThreshold)
	v.SetDefault("dedup.metric", "levenshtein")
	v.SetDefault("dedup.onReceive", false)

	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.interval", DefaultSweepInterval)

	v.SetDefault("auth.backend", "apikey")

	v.SetDefault("budget.enabled", false)
	v.SetDefault("budget.depositNanoUSD", DefaultDepositNanoUSD)
	v.SetDefault("budget.maxAccruedNanoUSD", 10*DefaultDepositNanoUSD)

	v.SetDefault("watch.settleDelay", DefaultSettleDelay)

	v.SetDefault("telemetry.enabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
