package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoCompleter adapts any Eino chat model. Providers without a native
// json_schema mode get the schema appended to the system prompt.
type EinoCompleter struct {
	chat  model.BaseChatModel
	model string
}

// NewEinoCompleter wraps cm. modelName is used for pricing and logs.
func NewEinoCompleter(cm model.BaseChatModel, modelName string) *EinoCompleter {
	return &EinoCompleter{chat: cm, model: modelName}
}

// Model returns the configured model name.
func (c *EinoCompleter) Model() string { return c.model }

// Complete implements Completer.
func (c *EinoCompleter) Complete(ctx context.Context, req Request) (*Completion, error) {
	system := req.System
	if req.Schema != nil {
		raw, err := json.MarshalIndent(req.Schema, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal schema: %w", err)
		}
		system += "\n\nRespond with a single JSON object and nothing else. It must validate against this JSON Schema:\n" + string(raw)
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: system},
		{Role: schema.User, Content: req.User},
	}

	start := time.Now()
	resp, err := c.chat.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("generate: empty response")
	}

	out := &Completion{
		Content: stripCodeFence(resp.Content),
		Model:   c.model,
		Latency: time.Since(start),
	}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		out.Usage = Usage{
			PromptTokens:     resp.ResponseMeta.Usage.PromptTokens,
			CompletionTokens: resp.ResponseMeta.Usage.CompletionTokens,
		}
	}
	return out, nil
}

// stripCodeFence removes a single ```json ... ``` wrapper that chat models add
// despite instructions. Anything else is left for the strict decoder to judge.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
