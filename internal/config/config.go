package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrInvalidConfig wraps every validation failure returned by Load.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full runtime configuration.
type Config struct {
	Data      DataConfig      `mapstructure:"data"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMSettings     `mapstructure:"llm"`
	Mail      MailConfig      `mapstructure:"mail"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Sweep     SweepConfig     `mapstructure:"sweep"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	Watch     WatchConfig     `mapstructure:"watch"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr" validate:"required"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
	MaxEmailBytes  int64    `mapstructure:"maxEmailBytes" validate:"gte=0"`
}

// LLMSettings is the raw llm block. LLMConfig turns it into an llm.Config.
type LLMSettings struct {
	Backend               string            `mapstructure:"backend" validate:"omitempty,oneof=structured eino"`
	Provider              string            `mapstructure:"provider" validate:"required,oneof=openai anthropic gemini ollama"`
	Model                 string            `mapstructure:"model"`
	APIKey                string            `mapstructure:"apiKey"`
	APIKeys               map[string]string `mapstructure:"apiKeys"`
	BaseURL               string            `mapstructure:"baseURL" validate:"omitempty,url"`
	InputNanoUSDPerToken  float64           `mapstructure:"inputNanoUSDPerToken" validate:"gte=0"`
	OutputNanoUSDPerToken float64           `mapstructure:"outputNanoUSDPerToken" validate:"gte=0"`
	TimeoutSeconds        int               `mapstructure:"timeoutSeconds" validate:"gte=0"`
}

type MailConfig struct {
	PlainTextMinRatio float64 `mapstructure:"plainTextMinRatio" validate:"gt=0,lte=1"`
}

type DedupConfig struct {
	Threshold float64 `mapstructure:"threshold" validate:"gte=0,lte=100"`
	Metric    string  `mapstructure:"metric" validate:"oneof=levenshtein"`
	OnReceive bool    `mapstructure:"onReceive"`
}

type SweepConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval" validate:"omitempty,min=1s"`
}

type AuthConfig struct {
	Backend   string `mapstructure:"backend" validate:"oneof=apikey jwt oauth none"`
	JWTSecret string `mapstructure:"jwtSecret" validate:"required_if=Backend jwt"`
}

type PolicyConfig struct {
	Dir string `mapstructure:"dir"`
}

type BudgetConfig struct {
	Enabled           bool  `mapstructure:"enabled"`
	DepositNanoUSD    int64 `mapstructure:"depositNanoUSD" validate:"gte=0"`
	MaxAccruedNanoUSD int64 `mapstructure:"maxAccruedNanoUSD" validate:"gte=0"`
}

// WatchConfig is the inbox directory watched by `taskmail watch`.
type WatchConfig struct {
	Dir         string        `mapstructure:"dir"`
	Owner       string        `mapstructure:"owner"`
	SettleDelay time.Duration `mapstructure:"settleDelay"`
}

// MCPConfig names the owner whose tasks the stdio tools act on.
type MCPConfig struct {
	Owner string `mapstructure:"owner"`
}

type TelemetryConfig struct {
	APIKey   string `mapstructure:"apiKey"`
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
	Enabled  bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

var validate = validator.New()

// Load reads the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals v into a Config, fills the data directory and validates.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Data.Dir = ResolveDataDir(cfg.Data.Dir)
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate runs the struct tags and reports every failing field at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatValidationError(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func formatValidationError(err validator.FieldError) string {
	field := strings.TrimPrefix(err.Namespace(), "Config.")
	switch err.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, err.Param())
	case "gte", "gt", "lte", "min":
		return fmt.Sprintf("%s out of range (%s %s)", field, err.Tag(), err.Param())
	case "url":
		return fmt.Sprintf("%s is not a valid url", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, err.Tag())
	}
}
