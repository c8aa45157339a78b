// Package extract turns resolved email text into candidate tasks through a
// schema-constrained completion call.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/josephgoksu/taskmail/internal/llm"
)

// ErrExtractionFailed covers transport failures and responses that break the
// schema contract.
var ErrExtractionFailed = errors.New("extraction failed")

// Mode distinguishes the two operations in logs and invocation records.
type Mode string

const (
	ModeExtract Mode = "extract"
	ModeMerge   Mode = "merge"
)

// Result is a validated candidate list plus accounting data for the call.
type Result struct {
	Tasks   []Candidate
	Mode    Mode
	Model   string
	Usage   llm.Usage
	Cost    llm.Cost
	Latency time.Duration
	Skipped bool // no call was made
}

// Client wraps a Completer with prompts, schema and strict validation.
type Client struct {
	completer llm.Completer
	rates     llm.Rates
	logger    *slog.Logger
	validate  *validator.Validate
}

// NewClient requires a configured completer; there is no lazy setup.
func NewClient(completer llm.Completer, rates llm.Rates, logger *slog.Logger) (*Client, error) {
	if completer == nil {
		return nil, fmt.Errorf("%w: no completion backend", llm.ErrUnconfigured)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		completer: completer,
		rates:     rates,
		logger:    logger,
		validate:  newValidator(),
	}, nil
}

// Extract returns the grouped, deduplicated actionable tasks found in text.
func (c *Client) Extract(ctx context.Context, text string) (*Result, error) {
	return c.run(ctx, ModeExtract, llm.Request{
		System:     ExtractSystemPrompt,
		User:       text,
		SchemaName: SchemaName,
		Schema:     TaskSchema(),
	})
}

// ExtractMerged returns the full consolidated list of existing plus newly
// found tasks. Blank text with no existing tasks returns an empty list
// without calling the model.
func (c *Client) ExtractMerged(ctx context.Context, text string, existing []Candidate) (*Result, error) {
	if strings.TrimSpace(text) == "" && len(existing) == 0 {
		return &Result{Tasks: []Candidate{}, Mode: ModeMerge, Model: c.completer.Model(), Skipped: true}, nil
	}
	user, err := mergeUserPrompt(text, existing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return c.run(ctx, ModeMerge, llm.Request{
		System:     MergeSystemPrompt,
		User:       user,
		SchemaName: SchemaName,
		Schema:     TaskSchema(),
	})
}

func (c *Client) run(ctx context.Context, mode Mode, req llm.Request) (*Result, error) {
	completion, err := c.completer.Complete(ctx, req)
	if err != nil {
		c.logger.Warn("extraction call failed", "mode", mode, "model", c.completer.Model(), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	cost := c.rates.Cost(completion.Usage)
	c.logger.Info("extraction cost",
		"mode", mode,
		"model", completion.Model,
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
		"cost_usd", fmt.Sprintf("%.6f", cost.USD()),
		"latency_ms", completion.Latency.Milliseconds(),
	)

	result := &Result{
		Mode:    mode,
		Model:   completion.Model,
		Usage:   completion.Usage,
		Cost:    cost,
		Latency: completion.Latency,
	}

	tasks, err := decodeResponse(c.validate, completion.Content)
	if err != nil {
		c.logger.Warn("extraction response rejected", "mode", mode, "error", err)
		// The call was still billed; callers may record the cost.
		return result, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	result.Tasks = tasks
	return result, nil
}
