// Package pipeline drives an inbound email from raw bytes to persisted tasks:
// parse, policy check, body resolution, extraction, deduplication and storage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/josephgoksu/taskmail/internal/dedup"
	"github.com/josephgoksu/taskmail/internal/extract"
	"github.com/josephgoksu/taskmail/internal/llm"
	"github.com/josephgoksu/taskmail/internal/mailbody"
	"github.com/josephgoksu/taskmail/internal/memory"
	"github.com/josephgoksu/taskmail/internal/policy"
	"github.com/josephgoksu/taskmail/internal/task"
	"github.com/josephgoksu/taskmail/internal/telemetry"
)

// Store is the persistence the pipeline needs. *memory.SQLiteStore satisfies it.
type Store interface {
	ListTasks(ctx context.Context, owner string) ([]task.Task, error)
	AddTasks(ctx context.Context, owner string, tasks []task.Task) ([]task.Task, error)
	ReplaceTasks(ctx context.Context, owner string, tasks []task.Task) ([]task.Task, error)
	CountTasks(ctx context.Context, owner string) (int, error)
	ListOwners(ctx context.Context) ([]string, error)

	CreateEmail(ctx context.Context, e memory.EmailRecord) (memory.EmailRecord, error)
	ClaimEmail(ctx context.Context, id int64) (bool, error)
	ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int64, error)
	UpdateEmailOutcome(ctx context.Context, id int64, o memory.EmailOutcome) error
	ListEmails(ctx context.Context, owner string, status memory.EmailStatus) ([]memory.EmailRecord, error)

	RecordInvocation(ctx context.Context, inv memory.Invocation) (memory.Invocation, error)
	Remaining(ctx context.Context, owner string) (int64, error)
	Charge(ctx context.Context, owner string, cost int64) (int64, error)
}

// Extractor turns text into candidate tasks. *extract.Client satisfies it.
type Extractor interface {
	Extract(ctx context.Context, text string) (*extract.Result, error)
	ExtractMerged(ctx context.Context, text string, existing []extract.Candidate) (*extract.Result, error)
}

// IntakePolicy gates emails before any model call. *policy.Engine satisfies it.
type IntakePolicy interface {
	CheckIntake(ctx context.Context, in policy.IntakeInput) (*policy.Decision, error)
}

// Options tune the orchestrator. Zero values are usable.
type Options struct {
	Resolver mailbody.Resolver
	Dedup    *dedup.Deduplicator

	// DedupOnReceive merges each email into the owner's full task list with
	// one model call instead of filtering candidates one by one.
	DedupOnReceive bool

	// BudgetEnabled refuses model calls for owners with no remaining budget.
	BudgetEnabled bool

	Policy    IntakePolicy
	Telemetry telemetry.Client
	Logger    *slog.Logger
	Locks     *memory.OwnerLocks
}

// Orchestrator runs the email state machine.
type Orchestrator struct {
	store     Store
	extractor Extractor
	opts      Options
}

// New builds an orchestrator, filling unset options with defaults.
func New(store Store, extractor Extractor, opts Options) *Orchestrator {
	if opts.Dedup == nil {
		opts.Dedup = dedup.New(dedup.DefaultThreshold, nil)
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.NewNoopClient()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Locks == nil {
		opts.Locks = memory.NewOwnerLocks()
	}
	return &Orchestrator{store: store, extractor: extractor, opts: opts}
}

// Result describes a finished run.
type Result struct {
	EmailID int64       `json:"email_id,omitempty"`
	State   State       `json:"state"`
	Tasks   []task.Task `json:"tasks"`
	// TaskCount is the number of tasks resulting from the submission: the
	// persisted candidates, or the merged list size in merge mode.
	TaskCount int      `json:"task_count"`
	Cost      llm.Cost `json:"cost"`
}

// Ingest processes one raw email for owner.
func (o *Orchestrator) Ingest(ctx context.Context, owner string, raw []byte) (Result, error) {
	log := o.opts.Logger.With("owner", owner)
	res := Result{State: StateReceived}

	msg, err := mailbody.Parse(raw)
	if err != nil {
		return o.failed(res, log, fail(ReasonInvalidEmail, err))
	}

	if o.opts.Policy != nil {
		in := policy.IntakeInput{
			Owner: owner, MessageID: msg.MessageID, From: msg.From, To: msg.To, Subject: msg.Subject,
		}
		if !msg.Date.IsZero() {
			in.SentAt = msg.Date.UTC().Format(time.RFC3339)
		}
		decision, err := o.opts.Policy.CheckIntake(ctx, in)
		if errors.Is(err, policy.ErrDenied) {
			return o.failed(res, log, fail(ReasonPolicyDenied, err))
		}
		if err != nil {
			return o.failed(res, log, fail(ReasonStoreFailed, fmt.Errorf("evaluate intake policy: %w", err)))
		}
		for _, w := range decision.Warnings {
			log.Warn("intake policy warning", "decision_id", decision.DecisionID, "warning", w)
		}
	}

	text, err := o.opts.Resolver.Resolve(msg)
	if err != nil {
		return o.failed(res, log, fail(ReasonNoContent, err))
	}
	res.State = StateBodyResolved

	email, err := o.store.CreateEmail(ctx, memory.EmailRecord{
		Owner:     owner,
		MessageID: msg.MessageID,
		From:      msg.From,
		To:        msg.To,
		Subject:   msg.Subject,
		SentAt:    msg.Date,
		Body:      text,
		Status:    memory.EmailProcessing,
	})
	if errors.Is(err, memory.ErrAlreadyExists) {
		return o.failed(res, log, fail(ReasonDuplicateEmail, fmt.Errorf("%w: message-id %s", ErrDuplicateEmail, msg.MessageID)))
	}
	if err != nil {
		return o.failed(res, log, fail(ReasonStoreFailed, err))
	}
	res.EmailID = email.ID
	log = log.With("email_id", email.ID)
	log.Debug("email stored", "state", res.State, "subject", msg.Subject)

	return o.process(ctx, log, res, email)
}

// Reprocess retries a stored UNPROCESSED email, used by the sweep once budget
// is available again. It returns ErrEmailClaimed without calling the model
// when another run got to the email first.
func (o *Orchestrator) Reprocess(ctx context.Context, email memory.EmailRecord) (Result, error) {
	log := o.opts.Logger.With("owner", email.Owner, "email_id", email.ID)
	res := Result{EmailID: email.ID, State: StateBodyResolved}

	claimed, err := o.store.ClaimEmail(ctx, email.ID)
	if err != nil {
		return o.failed(res, log, fail(ReasonStoreFailed, err))
	}
	if !claimed {
		log.Debug("email claimed by another run")
		return res, ErrEmailClaimed
	}
	return o.process(ctx, log, res, email)
}

// process runs a claimed (PROCESSING) email through extraction and storage.
func (o *Orchestrator) process(ctx context.Context, log *slog.Logger, res Result, email memory.EmailRecord) (Result, error) {
	owner := email.Owner
	if err := o.checkBudget(ctx, owner); err != nil {
		o.release(ctx, log, email.ID)
		return o.failed(res, log, err)
	}

	unlock := o.opts.Locks.Lock(owner)
	defer unlock()

	current, err := o.store.ListTasks(ctx, owner)
	if err != nil {
		return o.failEmail(ctx, res, log, email.ID, fail(ReasonStoreFailed, err))
	}
	before := len(current)

	var xres *extract.Result
	if o.opts.DedupOnReceive {
		xres, err = o.extractor.ExtractMerged(ctx, email.Body, extract.FromTasks(current))
	} else {
		xres, err = o.extractor.Extract(ctx, email.Body)
	}
	res.Cost = o.account(ctx, log, owner, email.ID, xres, err == nil)
	if err != nil {
		return o.failEmail(ctx, res, log, email.ID, fail(ReasonExtractionFailed, err))
	}
	res.State = StateExtracted

	var stored []task.Task
	if o.opts.DedupOnReceive {
		stored, err = o.merge(ctx, log, owner, current, xres, email.ID)
	} else {
		stored, err = o.addNew(ctx, log, owner, current, xres, email.ID)
	}
	if err != nil {
		return o.failEmail(ctx, res, log, email.ID, fail(ReasonStoreFailed, err))
	}
	res.State = StatePersisted
	res.Tasks = stored
	res.TaskCount = len(stored)

	after, err := o.store.CountTasks(ctx, owner)
	if err != nil {
		after = before + len(stored)
	}
	err = o.store.UpdateEmailOutcome(ctx, email.ID, memory.EmailOutcome{
		Status:            memory.EmailUpdatedTasks,
		TasksBefore:       before,
		TasksAfter:        after,
		InputCostNanoUSD:  res.Cost.InputNanoUSD,
		OutputCostNanoUSD: res.Cost.OutputNanoUSD,
	})
	if err != nil {
		// Tasks are already persisted; the log row is secondary.
		log.Warn("record email outcome", "error", err)
	}

	log.Info("email processed", "task_count", res.TaskCount, "tasks_before", before, "tasks_after", after,
		"merge", o.opts.DedupOnReceive)
	o.opts.Telemetry.Track(telemetry.EventEmailIngested, map[string]any{
		"task_count": res.TaskCount,
		"merge":      o.opts.DedupOnReceive,
	})
	return res, nil
}

// addNew stores the candidates that do not duplicate a stored task or an
// earlier candidate, all in one transaction.
func (o *Orchestrator) addNew(ctx context.Context, log *slog.Logger, owner string, current []task.Task, xres *extract.Result, emailID int64) ([]task.Task, error) {
	seen := slices.Clone(current)
	fresh := []task.Task{}
	for _, c := range xres.Tasks {
		t := c.ToTask(owner)
		t.EmailID = emailID
		if m, score, dup := o.opts.Dedup.Match(t.Title, seen); dup {
			log.Debug("duplicate candidate skipped", "title", t.Title, "matches", m.ID, "score", score)
			continue
		}
		seen = append(seen, t)
		fresh = append(fresh, t)
	}
	if len(fresh) == 0 {
		return fresh, nil
	}
	return o.store.AddTasks(ctx, owner, fresh)
}

// merge swaps the owner's whole task set for the consolidated list the model
// returned, carrying status and provenance over from current.
func (o *Orchestrator) merge(ctx context.Context, log *slog.Logger, owner string, current []task.Task, xres *extract.Result, emailID int64) ([]task.Task, error) {
	if xres.Skipped {
		return current, nil
	}

	merged := make([]task.Task, 0, len(xres.Tasks))
	for _, c := range xres.Tasks {
		t := c.ToTask(owner)
		if prev, ok := o.carryOver(t.Title, current); ok {
			t.Status = prev.Status
			t.EmailID = prev.EmailID
		} else {
			t.EmailID = emailID
		}
		merged = append(merged, t)
	}

	stored, err := o.store.ReplaceTasks(ctx, owner, merged)
	if err != nil {
		return nil, err
	}
	log.Debug("tasks merged", "before", len(current), "after", len(stored))
	return stored, nil
}

// carryOver finds the previous task a merged task descends from, so status
// and provenance survive consolidation: an exact folded-title match first,
// else the closest title at or above the dedup threshold.
func (o *Orchestrator) carryOver(title string, previous []task.Task) (task.Task, bool) {
	folded := dedup.Normalize(title)
	for _, p := range previous {
		if dedup.Normalize(p.Title) == folded {
			return p, true
		}
	}
	best, score, ok := o.opts.Dedup.Best(title, previous)
	if !ok || score < o.opts.Dedup.Threshold {
		return task.Task{}, false
	}
	return best, true
}

// Consolidate merges the owner's stored tasks without new email text.
func (o *Orchestrator) Consolidate(ctx context.Context, owner string) (Result, error) {
	log := o.opts.Logger.With("owner", owner)
	res := Result{State: StateBodyResolved}

	if err := o.checkBudget(ctx, owner); err != nil {
		return o.failed(res, log, err)
	}

	unlock := o.opts.Locks.Lock(owner)
	defer unlock()

	current, err := o.store.ListTasks(ctx, owner)
	if err != nil {
		return o.failed(res, log, fail(ReasonStoreFailed, err))
	}
	if len(current) < 2 {
		res.State, res.Tasks, res.TaskCount = StatePersisted, current, len(current)
		return res, nil
	}

	xres, err := o.extractor.ExtractMerged(ctx, "", extract.FromTasks(current))
	res.Cost = o.account(ctx, log, owner, 0, xres, err == nil)
	if err != nil {
		return o.failed(res, log, fail(ReasonExtractionFailed, err))
	}
	res.State = StateExtracted

	stored, err := o.merge(ctx, log, owner, current, xres, 0)
	if err != nil {
		return o.failed(res, log, fail(ReasonStoreFailed, err))
	}
	res.State, res.Tasks, res.TaskCount = StatePersisted, stored, len(stored)

	log.Info("tasks consolidated", "before", len(current), "after", len(stored))
	o.opts.Telemetry.Track(telemetry.EventConsolidation, map[string]any{
		"before": len(current),
		"after":  len(stored),
	})
	return res, nil
}

func (o *Orchestrator) checkBudget(ctx context.Context, owner string) error {
	if !o.opts.BudgetEnabled {
		return nil
	}
	remaining, err := o.store.Remaining(ctx, owner)
	if err != nil {
		return fail(ReasonStoreFailed, err)
	}
	if remaining <= 0 {
		return fail(ReasonBudgetExhausted, fmt.Errorf("%w: %d nano-USD remaining", ErrBudgetExhausted, remaining))
	}
	return nil
}

// account logs the model call and charges its cost. Calls that were made but
// rejected are still billed.
func (o *Orchestrator) account(ctx context.Context, log *slog.Logger, owner string, emailID int64, xres *extract.Result, succeeded bool) llm.Cost {
	if xres == nil || xres.Skipped {
		return llm.Cost{}
	}
	_, err := o.store.RecordInvocation(ctx, memory.Invocation{
		Owner:             owner,
		EmailID:           emailID,
		Mode:              string(xres.Mode),
		Model:             xres.Model,
		PromptTokens:      xres.Usage.PromptTokens,
		CompletionTokens:  xres.Usage.CompletionTokens,
		InputCostNanoUSD:  xres.Cost.InputNanoUSD,
		OutputCostNanoUSD: xres.Cost.OutputNanoUSD,
		Latency:           xres.Latency,
		Succeeded:         succeeded,
	})
	if err != nil {
		log.Warn("record invocation", "error", err)
	}
	if o.opts.BudgetEnabled {
		if balance, err := o.store.Charge(ctx, owner, xres.Cost.TotalNanoUSD()); err != nil {
			log.Warn("charge budget", "error", err)
		} else {
			log.Debug("budget charged", "cost_nano_usd", xres.Cost.TotalNanoUSD(), "remaining_nano_usd", balance)
		}
	}
	return xres.Cost
}

// release hands a claimed email back to the sweep as UNPROCESSED.
func (o *Orchestrator) release(ctx context.Context, log *slog.Logger, emailID int64) {
	if err := o.store.UpdateEmailOutcome(ctx, emailID, memory.EmailOutcome{Status: memory.EmailUnprocessed}); err != nil {
		log.Warn("release email", "error", err)
	}
}

// failEmail marks a stored email FAILED before returning the failure.
func (o *Orchestrator) failEmail(ctx context.Context, res Result, log *slog.Logger, emailID int64, f *Failure) (Result, error) {
	err := o.store.UpdateEmailOutcome(ctx, emailID, memory.EmailOutcome{
		Status:            memory.EmailFailed,
		FailureReason:     string(f.Reason),
		InputCostNanoUSD:  res.Cost.InputNanoUSD,
		OutputCostNanoUSD: res.Cost.OutputNanoUSD,
	})
	if err != nil {
		log.Warn("record email failure", "error", err)
	}
	return o.failed(res, log, f)
}

func (o *Orchestrator) failed(res Result, log *slog.Logger, err error) (Result, error) {
	reason := ReasonOf(err)
	log.Warn("pipeline run failed", "reason", reason, "from_state", res.State, "error", err)
	o.opts.Telemetry.Track(telemetry.EventEmailFailed, map[string]any{"reason": string(reason)})
	res.State = StateFailed
	return res, err
}
