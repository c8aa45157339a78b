package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/josephgoksu/taskmail/internal/llm"
)

// LLMConfig turns the llm block into an llm.Config.
// Precedence for the key: llm.apiKeys.<provider>, llm.apiKey (openai only),
// then the provider's environment variable.
func (c *Config) LLMConfig() (llm.Config, error) {
	provider, err := llm.ValidateProvider(c.LLM.Provider)
	if err != nil {
		return llm.Config{}, fmt.Errorf("invalid provider: %w", err)
	}

	var backend llm.Backend
	if c.LLM.Backend != "" {
		if backend, err = llm.ValidateBackend(c.LLM.Backend); err != nil {
			return llm.Config{}, err
		}
	}

	model := c.LLM.Model
	if model == "" {
		model = llm.DefaultModelForProvider(provider)
	}

	baseURL := c.LLM.BaseURL
	if baseURL == "" && provider == llm.ProviderOllama {
		baseURL = llm.DefaultOllamaURL
	}

	return llm.Config{
		Provider:              provider,
		Backend:               backend,
		Model:                 model,
		APIKey:                resolveAPIKey(provider, c.LLM.APIKeys, c.LLM.APIKey),
		BaseURL:               baseURL,
		Timeout:               time.Duration(c.LLM.TimeoutSeconds) * time.Second,
		InputNanoUSDPerToken:  c.LLM.InputNanoUSDPerToken,
		OutputNanoUSDPerToken: c.LLM.OutputNanoUSDPerToken,
	}, nil
}

// ResolveAPIKey reads the key for provider from the global viper instance.
func ResolveAPIKey(provider llm.Provider) string {
	return resolveAPIKey(provider, viper.GetStringMapString("llm.apiKeys"), viper.GetString("llm.apiKey"))
}

func resolveAPIKey(provider llm.Provider, perProvider map[string]string, legacy string) string {
	if key := strings.TrimSpace(perProvider[string(provider)]); key != "" {
		return key
	}
	// The bare llm.apiKey predates multi-provider support and is always an OpenAI key.
	if provider == llm.ProviderOpenAI {
		if key := strings.TrimSpace(legacy); key != "" {
			return key
		}
	}
	return providerEnvKey(provider)
}

func providerEnvKey(provider llm.Provider) string {
	switch provider {
	case llm.ProviderOpenAI:
		return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	case llm.ProviderAnthropic:
		return strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	case llm.ProviderGemini:
		key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		if key == "" {
			key = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
		}
		return key
	default:
		return ""
	}
}
