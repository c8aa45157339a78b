package llm

// Provider constants
const (
	// DefaultProvider is the default LLM provider
	DefaultProvider = ProviderOpenAI

	// ProviderOpenAI represents the OpenAI provider
	ProviderOpenAI Provider = "openai"

	// ProviderOllama represents the Ollama provider
	ProviderOllama Provider = "ollama"

	// ProviderAnthropic represents the Anthropic provider
	ProviderAnthropic Provider = "anthropic"

	// ProviderGemini represents the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// Backend selects how a completion request reaches the provider.
type Backend string

const (
	// BackendStructured calls the OpenAI Responses API directly with a
	// json_schema response format. OpenAI only.
	BackendStructured Backend = "structured"

	// BackendEino goes through a CloudWeGo Eino chat model and carries the
	// schema inside the system prompt. Works for every provider.
	BackendEino Backend = "eino"
)

// DefaultOllamaURL is the default URL for Ollama server
const DefaultOllamaURL = "http://localhost:11434"

// DefaultOpenAIBaseURL is the API root used by the structured backend.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// DefaultMaxTokens caps completion length for providers that require a limit.
const DefaultMaxTokens = 4096

// defaultModels maps providers to the model used when none is configured.
var defaultModels = map[Provider]string{
	ProviderOpenAI:    "gpt-4.1-mini",
	ProviderAnthropic: "claude-haiku-4.5",
	ProviderGemini:    "gemini-2.5-flash",
	ProviderOllama:    "llama3.1",
}

// DefaultModelForProvider returns the default model ID for a given provider.
func DefaultModelForProvider(provider Provider) string {
	return defaultModels[provider]
}

// DefaultBackendForProvider prefers native structured output where it exists.
func DefaultBackendForProvider(provider Provider) Backend {
	if provider == ProviderOpenAI {
		return BackendStructured
	}
	return BackendEino
}

// RequiresAPIKey reports whether the provider refuses anonymous calls.
func RequiresAPIKey(provider Provider) bool {
	return provider != ProviderOllama
}
