// Package llm provides a unified completion interface over LLM providers, either
// through CloudWeGo Eino chat models or a direct structured-output HTTP call.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// Provider identifies the LLM provider to use.
type Provider string

// ErrUnconfigured is returned at construction time when a backend lacks the
// credentials or settings it needs.
var ErrUnconfigured = errors.New("llm backend not configured")

// Config holds configuration for creating an LLM client.
type Config struct {
	Provider  Provider
	Backend   Backend // empty selects DefaultBackendForProvider
	Model     string
	APIKey    string
	BaseURL   string // Ollama server or OpenAI-compatible API root
	Timeout   time.Duration
	MaxTokens int

	// Rates override the pricing table (nano-USD per token). Zero means lookup.
	InputNanoUSDPerToken  float64
	OutputNanoUSDPerToken float64
}

// Validate checks that cfg can produce a working client.
func (cfg Config) Validate() error {
	if _, err := ValidateProvider(string(cfg.Provider)); err != nil {
		return err
	}
	if cfg.Model == "" {
		return fmt.Errorf("%w: no model set for provider %s", ErrUnconfigured, cfg.Provider)
	}
	if RequiresAPIKey(cfg.Provider) && cfg.APIKey == "" {
		return fmt.Errorf("%w: %s API key is required", ErrUnconfigured, cfg.Provider)
	}
	if cfg.backend() == BackendStructured && cfg.Provider != ProviderOpenAI {
		return fmt.Errorf("%w: structured backend supports openai only, got %s", ErrUnconfigured, cfg.Provider)
	}
	return nil
}

func (cfg Config) backend() Backend {
	if cfg.Backend == "" {
		return DefaultBackendForProvider(cfg.Provider)
	}
	return cfg.Backend
}

// Rates resolves the per-token pricing for cfg.Model.
func (cfg Config) Rates() Rates {
	r := RatesFor(cfg.Model)
	if cfg.InputNanoUSDPerToken > 0 {
		r.InputNanoUSD = cfg.InputNanoUSDPerToken
	}
	if cfg.OutputNanoUSDPerToken > 0 {
		r.OutputNanoUSD = cfg.OutputNanoUSDPerToken
	}
	return r
}

// NewChatModel creates a ChatModel instance based on the provider configuration.
// It returns an Eino BaseChatModel that can be used for Generate() or Stream() calls.
func NewChatModel(ctx context.Context, cfg Config) (model.BaseChatModel, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: OpenAI API key is required", ErrUnconfigured)
		}
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})

	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: baseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})

	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: anthropic API key is required", ErrUnconfigured)
		}
		maxTokens := cfg.MaxTokens
		if maxTokens <= 0 {
			maxTokens = DefaultMaxTokens
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: maxTokens,
		})

	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: gemini API key is required", ErrUnconfigured)
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  cfg.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: openai, ollama, anthropic, gemini)", cfg.Provider)
	}
}

// ValidateProvider checks if the given provider string is supported.
func ValidateProvider(p string) (Provider, error) {
	switch Provider(p) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderOllama:
		return ProviderOllama, nil
	case ProviderAnthropic:
		return ProviderAnthropic, nil
	case ProviderGemini:
		return ProviderGemini, nil
	default:
		return "", fmt.Errorf("unsupported provider: %s", p)
	}
}

// ValidateBackend checks if the given backend string is supported.
func ValidateBackend(b string) (Backend, error) {
	switch Backend(b) {
	case "", BackendStructured, BackendEino:
		return Backend(b), nil
	default:
		return "", fmt.Errorf("unsupported backend: %s (supported: structured, eino)", b)
	}
}

// NewCompleter builds the Completer selected by cfg. Missing credentials fail
// here rather than on first use.
func NewCompleter(ctx context.Context, cfg Config) (Completer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.backend() {
	case BackendStructured:
		return NewStructuredCompleter(cfg), nil
	case BackendEino:
		cm, err := NewChatModel(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewEinoCompleter(cm, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}
