package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/josephgoksu/taskmail/internal/auth"
	"github.com/josephgoksu/taskmail/internal/config"
	"github.com/josephgoksu/taskmail/internal/llm"
	"github.com/josephgoksu/taskmail/internal/memory"
	"github.com/josephgoksu/taskmail/internal/pipeline"
	"github.com/josephgoksu/taskmail/internal/task"
)

type staticCompleter struct {
	reply string
	calls int
}

func (s *staticCompleter) Model() string { return "static" }

func (s *staticCompleter) Complete(context.Context, llm.Request) (*llm.Completion, error) {
	s.calls++
	return &llm.Completion{Content: s.reply, Model: "static", Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 5}}, nil
}

func authCreds(user, key string) auth.Credentials {
	return auth.Credentials{User: user, APIKey: key}
}

func bearer(token string) auth.Credentials {
	return auth.Credentials{BearerToken: token}
}

func newTestContext(t *testing.T, settings map[string]any) *Context {
	t.Helper()
	v := viper.New()
	v.Set("data.dir", t.TempDir())
	for k, val := range settings {
		v.Set(k, val)
	}
	cfg, err := config.LoadFrom(v)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	store, err := memory.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	c := NewContext(cfg, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func addTask(t *testing.T, c *Context, owner, title string, due *task.Date, level task.RequirementLevel) task.Task {
	t.Helper()
	created, err := c.Store.AddTask(context.Background(), owner, task.Task{
		Title: title, DueDate: due, ParentRequirementLevel: level,
	})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	return created
}

func TestTaskApp_ListAppliesPreferences(t *testing.T) {
	c := newTestContext(t, nil)
	ctx := context.Background()
	a := NewTaskApp(c)
	a.now = func() time.Time { return time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC) }

	soon := task.NewDate(2024, 9, 4)
	later := task.NewDate(2024, 12, 1)
	addTask(t, c, "mom", "Permission slip", &soon, task.RequirementMandatory)
	addTask(t, c, "mom", "Winter concert", &later, task.RequirementOptional)
	addTask(t, c, "mom", "Snacks", nil, task.RequirementNone)

	all, err := a.List(ctx, "mom", task.ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("default preferences should keep everything, got %d tasks", len(all))
	}

	if err := c.Store.SetPreferences(ctx, "mom", memory.Preferences{DueWindowDays: 7}); err != nil {
		t.Fatalf("set preferences: %v", err)
	}
	windowed, err := a.List(ctx, "mom", task.ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(windowed) != 1 || windowed[0].Title != "Permission slip" {
		t.Fatalf("expected only the task due this week, got %+v", windowed)
	}

	include := true
	overridden, err := a.List(ctx, "mom", task.ListQuery{IncludeNoDueDate: &include})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(overridden) != 2 {
		t.Fatalf("query should override preferences, got %d tasks", len(overridden))
	}
}

func TestTaskApp_SetStatusAndClear(t *testing.T) {
	c := newTestContext(t, nil)
	ctx := context.Background()
	a := NewTaskApp(c)

	created := addTask(t, c, "dad", "Picture day", nil, task.RequirementNone)

	updated, err := a.SetStatus(ctx, "dad", created.ID, task.StatusDone)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if updated.Status != task.StatusDone {
		t.Errorf("status = %s, want done", updated.Status)
	}

	if _, err := a.SetStatus(ctx, "mom", created.ID, task.StatusDone); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("another owner's task should be not found, got %v", err)
	}
	if _, err := a.Update(ctx, "dad", created.ID, task.Changes{}); !errors.Is(err, task.ErrValidation) {
		t.Errorf("empty update should fail validation, got %v", err)
	}

	n, err := a.Clear(ctx, "dad")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 1 {
		t.Errorf("cleared %d tasks, want 1", n)
	}
}

func TestUserApp(t *testing.T) {
	c := newTestContext(t, nil)
	ctx := context.Background()
	a := NewUserApp(c)
	a.hasher = auth.NewKeyHasherWithCost(bcrypt.MinCost)

	backend, err := c.Auth()
	if err != nil {
		t.Fatalf("auth backend: %v", err)
	}

	res, err := a.Add(ctx, "mom")
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	if res.APIKey == "" {
		t.Fatal("expected a generated api key")
	}
	if _, err := a.Add(ctx, "mom"); !errors.Is(err, memory.ErrAlreadyExists) {
		t.Errorf("second add should fail with ErrAlreadyExists, got %v", err)
	}

	// Preferences create a keyless row; adding the user later issues a key.
	if err := a.SetPreferences(ctx, "dad", memory.Preferences{IncludeNoDueDate: true}); err != nil {
		t.Fatalf("set preferences: %v", err)
	}
	dad, err := a.Add(ctx, "dad")
	if err != nil {
		t.Fatalf("add keyless user: %v", err)
	}

	owner, err := backend.Authenticate(ctx, authCreds("dad", dad.APIKey))
	if err != nil || owner != "dad" {
		t.Fatalf("authenticate dad: owner=%q err=%v", owner, err)
	}

	rotated, err := a.RotateKey(ctx, "mom")
	if err != nil {
		t.Fatalf("rotate key: %v", err)
	}
	if _, err := backend.Authenticate(ctx, authCreds("mom", res.APIKey)); err == nil {
		t.Error("old key should stop working after rotation")
	}
	if _, err := backend.Authenticate(ctx, authCreds("mom", rotated.APIKey)); err != nil {
		t.Errorf("rotated key rejected: %v", err)
	}

	if _, err := a.IssueToken(ctx, "mom", time.Hour); !errors.Is(err, ErrNoJWTSecret) {
		t.Errorf("token without secret: got %v", err)
	}
}

func TestUserApp_IssueToken(t *testing.T) {
	c := newTestContext(t, map[string]any{"auth.backend": "jwt", "auth.jwtSecret": "s3cret"})
	ctx := context.Background()
	a := NewUserApp(c)
	a.hasher = auth.NewKeyHasherWithCost(bcrypt.MinCost)

	if _, err := a.IssueToken(ctx, "ghost", time.Hour); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("unknown user: got %v", err)
	}
	if _, err := a.Add(ctx, "mom"); err != nil {
		t.Fatalf("add user: %v", err)
	}
	token, err := a.IssueToken(ctx, "mom", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	backend, err := c.Auth()
	if err != nil {
		t.Fatalf("auth backend: %v", err)
	}
	owner, err := backend.Authenticate(ctx, bearer(token))
	if err != nil || owner != "mom" {
		t.Fatalf("authenticate token: owner=%q err=%v", owner, err)
	}
}

func TestBudgetApp(t *testing.T) {
	c := newTestContext(t, map[string]any{
		"budget.enabled":           true,
		"budget.depositNanoUSD":    500,
		"budget.maxAccruedNanoUSD": 800,
	})
	ctx := context.Background()
	a := NewBudgetApp(c)

	balance, err := a.Deposit(ctx, "mom", 0)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if balance != 500 {
		t.Errorf("default deposit balance = %d, want 500", balance)
	}
	balance, err = a.Deposit(ctx, "mom", 0)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if balance != 800 {
		t.Errorf("balance should cap at 800, got %d", balance)
	}

	report, err := a.Show(ctx, "mom")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !report.Enabled || report.RemainingNanoUSD != 800 || report.Spend.Calls != 0 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestPipelineWith(t *testing.T) {
	c := newTestContext(t, nil)
	ctx := context.Background()
	completer := &staticCompleter{reply: `{"tasks": [{"title": "Permission slip", "parent_action": "SIGN"}]}`}

	orch, err := c.PipelineWith(completer, llm.Rates{InputNanoUSD: 400, OutputNanoUSD: 1600})
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}

	raw := []byte("From: office@school.example\r\nMessage-ID: <a@school>\r\nSubject: Trip\r\n\r\nPlease sign the permission slip.")
	res, err := orch.Ingest(ctx, "mom", raw)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.TaskCount != 1 || completer.calls != 1 {
		t.Fatalf("unexpected result %+v after %d calls", res, completer.calls)
	}

	_, err = orch.Ingest(ctx, "mom", raw)
	if pipeline.ReasonOf(err) != pipeline.ReasonDuplicateEmail {
		t.Errorf("second ingest of the same Message-ID: got %v", err)
	}
}

func TestPipelineWith_LoadsPolicies(t *testing.T) {
	c := newTestContext(t, nil)
	dir := c.Config.PoliciesDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	policy := `package taskmail.intake

import rego.v1

deny contains "newsletters are ignored" if contains(input.subject, "Newsletter")
`
	if err := os.WriteFile(filepath.Join(dir, "newsletters.rego"), []byte(policy), 0o644); err != nil {
		t.Fatal(err)
	}

	completer := &staticCompleter{reply: `{"tasks": []}`}
	orch, err := c.PipelineWith(completer, llm.Rates{})
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	raw := []byte("From: office@school.example\r\nSubject: Weekly Newsletter\r\n\r\nNews.")
	_, err = orch.Ingest(context.Background(), "mom", raw)
	if pipeline.ReasonOf(err) != pipeline.ReasonPolicyDenied {
		t.Fatalf("expected policy denial, got %v", err)
	}
	if completer.calls != 0 {
		t.Errorf("denied email reached the model %d times", completer.calls)
	}
}

func TestPipeline_FailsFastWithoutKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	c := newTestContext(t, map[string]any{"llm.provider": "openai"})

	if _, err := c.Pipeline(context.Background()); !errors.Is(err, llm.ErrUnconfigured) {
		t.Fatalf("expected ErrUnconfigured, got %v", err)
	}
}
