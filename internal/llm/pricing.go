package llm

import "math"

// ModelPricing holds pricing info for a model (per 1M tokens in USD)
type ModelPricing struct {
	Provider    string
	Model       string
	InputPer1M  float64 // $ per 1M input tokens
	OutputPer1M float64 // $ per 1M output tokens
}

// PricingTable contains known model pricing
// Prices last updated: 2025-12
var PricingTable = map[string]ModelPricing{
	// OpenAI
	"gpt-5-mini":              {Provider: "OpenAI", Model: "gpt-5-mini", InputPer1M: 0.25, OutputPer1M: 2.00},
	"gpt-5-nano":              {Provider: "OpenAI", Model: "gpt-5-nano", InputPer1M: 0.05, OutputPer1M: 0.40},
	"gpt-4.1-mini":            {Provider: "OpenAI", Model: "gpt-4.1-mini", InputPer1M: 0.40, OutputPer1M: 1.60},
	"gpt-4.1-mini-2025-04-14": {Provider: "OpenAI", Model: "gpt-4.1-mini", InputPer1M: 0.40, OutputPer1M: 1.60},
	"gpt-4.1-nano":            {Provider: "OpenAI", Model: "gpt-4.1-nano", InputPer1M: 0.10, OutputPer1M: 0.40},
	"gpt-4o":                  {Provider: "OpenAI", Model: "gpt-4o", InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":             {Provider: "OpenAI", Model: "gpt-4o-mini", InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4o-mini-2024-07-18":  {Provider: "OpenAI", Model: "gpt-4o-mini", InputPer1M: 0.15, OutputPer1M: 0.60},

	// Anthropic
	"claude-sonnet-4.5": {Provider: "Anthropic", Model: "claude-sonnet-4.5", InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-haiku-4.5":  {Provider: "Anthropic", Model: "claude-haiku-4.5", InputPer1M: 1.00, OutputPer1M: 5.00},
	"claude-3-haiku":    {Provider: "Anthropic", Model: "claude-3-haiku", InputPer1M: 0.25, OutputPer1M: 1.25},

	// Google
	"gemini-2.5-flash": {Provider: "Google", Model: "gemini-2.5-flash", InputPer1M: 0.30, OutputPer1M: 2.50},
	"gemini-1.5-flash": {Provider: "Google", Model: "gemini-1.5-flash", InputPer1M: 0.075, OutputPer1M: 0.30},
}

// Fallback rates for models missing from the table, in nano-USD per token.
const (
	DefaultInputNanoUSDPerToken  = 400
	DefaultOutputNanoUSDPerToken = 1600
)

// GetPricing returns pricing for a model, or nil if unknown
func GetPricing(model string) *ModelPricing {
	if p, ok := PricingTable[model]; ok {
		return &p
	}
	return nil
}

// Rates are per-token prices in nano-USD (1e-9 USD).
type Rates struct {
	InputNanoUSD  float64
	OutputNanoUSD float64
}

// RatesFor converts the table price of model to per-token nano-USD rates.
// Unknown models (local Ollama models included) use the fallback rates.
func RatesFor(model string) Rates {
	p := GetPricing(model)
	if p == nil {
		return Rates{InputNanoUSD: DefaultInputNanoUSDPerToken, OutputNanoUSD: DefaultOutputNanoUSDPerToken}
	}
	// $ per 1M tokens * 1e9 nano / 1e6 tokens
	return Rates{InputNanoUSD: p.InputPer1M * 1000, OutputNanoUSD: p.OutputPer1M * 1000}
}

// Cost is input tokens times the input rate plus output tokens times the
// output rate, rounded to whole nano-USD.
func (r Rates) Cost(u Usage) Cost {
	in := int64(math.Round(float64(u.PromptTokens) * r.InputNanoUSD))
	out := int64(math.Round(float64(u.CompletionTokens) * r.OutputNanoUSD))
	return Cost{InputNanoUSD: in, OutputNanoUSD: out}
}

// Cost is the price of one call split by direction.
type Cost struct {
	InputNanoUSD  int64 `json:"input_nano_usd"`
	OutputNanoUSD int64 `json:"output_nano_usd"`
}

// TotalNanoUSD sums both directions.
func (c Cost) TotalNanoUSD() int64 { return c.InputNanoUSD + c.OutputNanoUSD }

// USD returns the total as dollars for display.
func (c Cost) USD() float64 { return float64(c.TotalNanoUSD()) / 1e9 }
