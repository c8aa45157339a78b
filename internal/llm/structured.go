package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StructuredCompleter calls the OpenAI Responses API with a json_schema text
// format so the model output is constrained server side.
type StructuredCompleter struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

// NewStructuredCompleter builds a completer from cfg. Call cfg.Validate first.
func NewStructuredCompleter(cfg Config) *StructuredCompleter {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &StructuredCompleter{
		apiKey:    cfg.APIKey,
		baseURL:   baseURL,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		client:    &http.Client{Timeout: timeout},
	}
}

// Model returns the configured model name.
func (c *StructuredCompleter) Model() string { return c.model }

type responsesContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responsesOutput struct {
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []responsesContent `json:"content"`
}

type responsesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type responsesBody struct {
	Model      string            `json:"model"`
	Status     string            `json:"status"`
	Output     []responsesOutput `json:"output"`
	OutputText string            `json:"output_text"`
	Usage      responsesUsage    `json:"usage"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements Completer.
func (c *StructuredCompleter) Complete(ctx context.Context, req Request) (*Completion, error) {
	payload := map[string]any{
		"model": c.model,
		"input": []map[string]any{
			{
				"role":    "system",
				"content": []map[string]any{{"type": "input_text", "text": req.System}},
			},
			{
				"role":    "user",
				"content": []map[string]any{{"type": "input_text", "text": req.User}},
			},
		},
	}
	if c.maxTokens > 0 {
		payload["max_output_tokens"] = c.maxTokens
	}
	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		// strict mode would force every property to be required.
		payload["text"] = map[string]any{
			"format": map[string]any{
				"type":   "json_schema",
				"name":   name,
				"schema": req.Schema,
				"strict": false,
			},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call responses API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAI API error (%s): %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var parsed responsesBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, fmt.Errorf("OpenAI API error: %s", parsed.Error.Message)
	}

	text := parsed.OutputText
	if text == "" {
		var sb strings.Builder
		for _, o := range parsed.Output {
			if o.Type != "message" {
				continue
			}
			for _, part := range o.Content {
				if part.Type == "output_text" {
					sb.WriteString(part.Text)
				}
			}
		}
		text = sb.String()
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("OpenAI response has no output text (status %q)", parsed.Status)
	}

	modelName := parsed.Model
	if modelName == "" {
		modelName = c.model
	}
	return &Completion{
		Content: text,
		Model:   modelName,
		Usage: Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
		},
		Latency: time.Since(start),
	}, nil
}
