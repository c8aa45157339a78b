package extract

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/taskmail/internal/llm"
	"github.com/josephgoksu/taskmail/internal/task"
)

type fakeCompleter struct {
	reply string
	err   error
	calls []llm.Request
}

func (f *fakeCompleter) Model() string { return "fake-model" }

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (*llm.Completion, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{
		Content: f.reply,
		Model:   "fake-model",
		Usage:   llm.Usage{PromptTokens: 1000, CompletionTokens: 100},
	}, nil
}

// echoCompleter returns the existing tasks it was given, which is what a
// well-behaved model does for ExtractMerged with empty email text.
type echoCompleter struct{}

func (echoCompleter) Model() string { return "echo" }

func (echoCompleter) Complete(_ context.Context, req llm.Request) (*llm.Completion, error) {
	start := strings.Index(req.User, "{")
	end := strings.LastIndex(req.User, "}")
	return &llm.Completion{Content: req.User[start : end+1]}, nil
}

func newTestClient(t *testing.T, c llm.Completer) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient(c, llm.Rates{InputNanoUSD: 400, OutputNanoUSD: 1600}, logger)
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresCompleter(t *testing.T) {
	_, err := NewClient(nil, llm.Rates{}, nil)
	assert.ErrorIs(t, err, llm.ErrUnconfigured)
}

func TestExtract_Valid(t *testing.T) {
	fc := &fakeCompleter{reply: `{"tasks": [
		{"title": "Permission slip", "due_date": "2024-09-06", "parent_action": "SIGN", "parent_requirement_level": "MANDATORY"},
		{"title": "Snacks", "student_action": "BRING"}
	]}`}
	c := newTestClient(t, fc)

	res, err := c.Extract(context.Background(), "1. Submit the permission slip by Friday (2024-09-06). 2. Bring snacks.")
	require.NoError(t, err)
	require.Len(t, res.Tasks, 2)
	assert.Equal(t, "Permission slip", res.Tasks[0].Title)
	assert.Equal(t, task.ParentActionSign, res.Tasks[0].ParentAction)
	assert.Equal(t, int64(400_000+160_000), res.Cost.TotalNanoUSD())

	require.Len(t, fc.calls, 1)
	assert.Equal(t, SchemaName, fc.calls[0].SchemaName)
	assert.Equal(t, ExtractSystemPrompt, fc.calls[0].System)
}

func TestExtract_RejectsWholeResponse(t *testing.T) {
	tests := map[string]string{
		"unknown item key":   `{"tasks": [{"title": "A"}, {"title": "B", "priority": "high"}]}`,
		"unknown top key":    `{"tasks": [{"title": "A"}], "notes": "x"}`,
		"malformed date":     `{"tasks": [{"title": "A", "due_date": "next Friday"}]}`,
		"missing title":      `{"tasks": [{"description": "no title"}]}`,
		"blank title":        `{"tasks": [{"title": "   "}]}`,
		"bad enum":           `{"tasks": [{"title": "A", "parent_action": "DANCE"}]}`,
		"lowercase level":    `{"tasks": [{"title": "A", "parent_requirement_level": "mandatory"}]}`,
		"missing tasks":      `{}`,
		"null tasks":         `{"tasks": null}`,
		"not json":           `Here are your tasks!`,
		"trailing garbage":   `{"tasks": []} extra`,
		"wrong type for due": `{"tasks": [{"title": "A", "due_date": 20240906}]}`,
	}
	for name, reply := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, &fakeCompleter{reply: reply})
			res, err := c.Extract(context.Background(), "text")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrExtractionFailed))
			if res != nil {
				assert.Empty(t, res.Tasks)
			}
		})
	}
}

func TestExtract_CalendarInvalidDatePassesShapeCheck(t *testing.T) {
	c := newTestClient(t, &fakeCompleter{reply: `{"tasks": [{"title": "A", "due_date": "2024-02-30"}]}`})
	res, err := c.Extract(context.Background(), "text")
	require.NoError(t, err)
	require.Len(t, res.Tasks, 1)

	tk := res.Tasks[0].ToTask("alice")
	assert.Nil(t, tk.DueDate)
	assert.Equal(t, "A", tk.Title)
}

func TestExtract_TransportError(t *testing.T) {
	c := newTestClient(t, &fakeCompleter{err: errors.New("429 quota exceeded")})
	_, err := c.Extract(context.Background(), "text")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtractMerged_SkipsCallWhenNothingToMerge(t *testing.T) {
	fc := &fakeCompleter{}
	c := newTestClient(t, fc)
	res, err := c.ExtractMerged(context.Background(), "  ", nil)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, res.Tasks)
	assert.Empty(t, fc.calls)
}

func TestExtractMerged_PromptCarriesExistingTasks(t *testing.T) {
	fc := &fakeCompleter{reply: `{"tasks": [{"title": "Picture Day"}]}`}
	c := newTestClient(t, fc)
	_, err := c.ExtractMerged(context.Background(), "Picture day forms due", []Candidate{{Title: "Picture Day", DueDate: "2024-04-20"}})
	require.NoError(t, err)

	require.Len(t, fc.calls, 1)
	user := fc.calls[0].User
	assert.True(t, strings.HasPrefix(user, "Existing tasks:\n"))
	assert.Contains(t, user, `"title": "Picture Day"`)
	assert.True(t, strings.HasSuffix(user, "Email:\nPicture day forms due"))
	assert.Equal(t, MergeSystemPrompt, fc.calls[0].System)
}

func TestExtractMerged_IdempotentOnOwnOutput(t *testing.T) {
	c := newTestClient(t, echoCompleter{})
	existing := []Candidate{
		{Title: "Permission slip", DueDate: "2024-09-06", ParentAction: task.ParentActionSign},
		{Title: "Snacks"},
	}

	first, err := c.ExtractMerged(context.Background(), "", existing)
	require.NoError(t, err)
	second, err := c.ExtractMerged(context.Background(), "", first.Tasks)
	require.NoError(t, err)

	assert.ElementsMatch(t, titles(existing), titles(second.Tasks))
	assert.Len(t, second.Tasks, len(first.Tasks))
}

func TestTaskSchema_ClosedAtBothLevels(t *testing.T) {
	s := TaskSchema()
	assert.Equal(t, false, s["additionalProperties"])

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var decoded struct {
		Properties struct {
			Tasks struct {
				Items struct {
					AdditionalProperties bool     `json:"additionalProperties"`
					Required             []string `json:"required"`
				} `json:"items"`
			} `json:"tasks"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.False(t, decoded.Properties.Tasks.Items.AdditionalProperties)
	assert.Equal(t, []string{"title"}, decoded.Properties.Tasks.Items.Required)
}

func TestFromTaskRoundTrip(t *testing.T) {
	d := task.NewDate(2024, 9, 6)
	tk := task.Task{Title: "Permission slip", DueDate: &d, ParentRequirementLevel: task.RequirementMandatory}
	back := FromTask(tk).ToTask("bob")
	assert.Equal(t, "bob", back.Owner)
	assert.Equal(t, "2024-09-06", back.DueDate.String())
	assert.Equal(t, task.StatusPending, back.Status)
}

func titles(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Title
	}
	return out
}
