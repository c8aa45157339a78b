package llm

import (
	"math"
	"testing"
)

func TestGetPricing(t *testing.T) {
	tests := []struct {
		model        string
		wantNil      bool
		wantProvider string
	}{
		{"gpt-4.1-mini", false, "OpenAI"},
		{"gpt-4o-mini-2024-07-18", false, "OpenAI"},
		{"claude-haiku-4.5", false, "Anthropic"},
		{"gemini-2.5-flash", false, "Google"},
		{"unknown-model", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			p := GetPricing(tt.model)
			if tt.wantNil {
				if p != nil {
					t.Errorf("GetPricing(%q) expected nil, got %+v", tt.model, p)
				}
				return
			}
			if p == nil {
				t.Errorf("GetPricing(%q) expected non-nil", tt.model)
				return
			}
			if p.Provider != tt.wantProvider {
				t.Errorf("GetPricing(%q).Provider = %q, want %q", tt.model, p.Provider, tt.wantProvider)
			}
		})
	}
}

func TestRatesFor(t *testing.T) {
	r := RatesFor("gpt-4.1-mini")
	if r.InputNanoUSD != 400 || r.OutputNanoUSD != 1600 {
		t.Errorf("gpt-4.1-mini rates = %+v, want 400/1600", r)
	}

	fallback := RatesFor("llama3.1")
	if fallback.InputNanoUSD != DefaultInputNanoUSDPerToken || fallback.OutputNanoUSD != DefaultOutputNanoUSDPerToken {
		t.Errorf("unknown model rates = %+v, want fallback", fallback)
	}
}

func TestRatesCost(t *testing.T) {
	r := Rates{InputNanoUSD: 400, OutputNanoUSD: 1600}
	c := r.Cost(Usage{PromptTokens: 1000, CompletionTokens: 250})

	if c.InputNanoUSD != 400_000 {
		t.Errorf("input cost = %d, want 400000", c.InputNanoUSD)
	}
	if c.OutputNanoUSD != 400_000 {
		t.Errorf("output cost = %d, want 400000", c.OutputNanoUSD)
	}
	if c.TotalNanoUSD() != 800_000 {
		t.Errorf("total = %d, want 800000", c.TotalNanoUSD())
	}
	if math.Abs(c.USD()-0.0008) > 1e-12 {
		t.Errorf("USD = %f, want 0.0008", c.USD())
	}
}

func TestConfigRatesOverride(t *testing.T) {
	cfg := Config{Model: "gpt-4o-mini", InputNanoUSDPerToken: 10}
	r := cfg.Rates()
	if r.InputNanoUSD != 10 {
		t.Errorf("override input = %v, want 10", r.InputNanoUSD)
	}
	if r.OutputNanoUSD != 600 {
		t.Errorf("table output = %v, want 600", r.OutputNanoUSD)
	}
}
