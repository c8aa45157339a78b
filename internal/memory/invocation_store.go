package memory

import (
	"context"
	"fmt"
	"time"
)

// Invocation is one call to the extraction model.
type Invocation struct {
	ID                int64         `json:"id"`
	Owner             string        `json:"owner"`
	EmailID           int64         `json:"email_id,omitempty"`
	Mode              string        `json:"mode"`
	Model             string        `json:"model"`
	PromptTokens      int           `json:"prompt_tokens"`
	CompletionTokens  int           `json:"completion_tokens"`
	InputCostNanoUSD  int64         `json:"input_cost_nano_usd"`
	OutputCostNanoUSD int64         `json:"output_cost_nano_usd"`
	Latency           time.Duration `json:"latency"`
	Succeeded         bool          `json:"succeeded"`
	CreatedAt         time.Time     `json:"created_at"`
}

// InvocationTotals aggregates an owner's spend.
type InvocationTotals struct {
	Calls             int   `json:"calls"`
	PromptTokens      int64 `json:"prompt_tokens"`
	CompletionTokens  int64 `json:"completion_tokens"`
	InputCostNanoUSD  int64 `json:"input_cost_nano_usd"`
	OutputCostNanoUSD int64 `json:"output_cost_nano_usd"`
}

// TotalNanoUSD is input plus output cost.
func (t InvocationTotals) TotalNanoUSD() int64 {
	return t.InputCostNanoUSD + t.OutputCostNanoUSD
}

// RecordInvocation appends to the AI invocation log.
func (s *SQLiteStore) RecordInvocation(ctx context.Context, inv Invocation) (Invocation, error) {
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	succeeded := 0
	if inv.Succeeded {
		succeeded = 1
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_invocations (owner, email_id, mode, model, prompt_tokens, completion_tokens,
			input_cost_nano_usd, output_cost_nano_usd, latency_ms, succeeded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, inv.Owner, nullInt64(inv.EmailID), inv.Mode, inv.Model, inv.PromptTokens, inv.CompletionTokens,
		inv.InputCostNanoUSD, inv.OutputCostNanoUSD, inv.Latency.Milliseconds(), succeeded, formatTime(inv.CreatedAt))
	if err != nil {
		return Invocation{}, fmt.Errorf("record invocation: %w", err)
	}
	if inv.ID, err = res.LastInsertId(); err != nil {
		return Invocation{}, fmt.Errorf("invocation id: %w", err)
	}
	return inv, nil
}

// Totals sums the invocation log for owner, or for everyone when owner is empty.
func (s *SQLiteStore) Totals(ctx context.Context, owner string) (InvocationTotals, error) {
	q := `SELECT COUNT(*), COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0),
		COALESCE(SUM(input_cost_nano_usd), 0), COALESCE(SUM(output_cost_nano_usd), 0)
		FROM ai_invocations`
	var args []any
	if owner != "" {
		q += ` WHERE owner = ?`
		args = append(args, owner)
	}
	var t InvocationTotals
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&t.Calls, &t.PromptTokens, &t.CompletionTokens,
		&t.InputCostNanoUSD, &t.OutputCostNanoUSD)
	if err != nil {
		return InvocationTotals{}, fmt.Errorf("invocation totals: %w", err)
	}
	return t, nil
}
