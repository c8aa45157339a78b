package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/josephgoksu/taskmail/internal/memory"
	"github.com/josephgoksu/taskmail/internal/telemetry"
)

// DefaultSweepInterval is the pause between consolidation sweeps.
const DefaultSweepInterval = time.Hour

// StaleClaimAge is how long an email may sit in PROCESSING before the sweep
// assumes its run died and hands it back as UNPROCESSED.
const StaleClaimAge = 30 * time.Minute

// SweepLockFile sits next to the database and admits one sweeping process.
const SweepLockFile = "sweep.lock"

// SweepReport summarizes one sweep.
type SweepReport struct {
	RunID        string        `json:"run_id"`
	Skipped      bool          `json:"skipped,omitempty"` // another process holds the lock
	Reprocessed  int           `json:"reprocessed"`
	Deferred     int           `json:"deferred"` // left UNPROCESSED, budget exhausted
	Claimed      int           `json:"claimed"`  // picked up by a concurrent run
	Released     int64         `json:"released"` // stale PROCESSING claims returned
	Consolidated int           `json:"consolidated"`
	Failed       int           `json:"failed"`
	Duration     time.Duration `json:"duration"`
}

// Sweeper periodically retries pending emails and consolidates every owner's
// task list.
type Sweeper struct {
	orch     *Orchestrator
	store    Store
	interval time.Duration
	lock     *flock.Flock
	logger   *slog.Logger
}

// NewSweeper creates a sweeper. lockPath may be empty to skip cross-process
// locking (in-memory stores).
func NewSweeper(orch *Orchestrator, interval time.Duration, lockPath string) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s := &Sweeper{
		orch:     orch,
		store:    orch.store,
		interval: interval,
		logger:   orch.opts.Logger.With("component", "sweeper"),
	}
	if lockPath != "" {
		s.lock = flock.New(lockPath)
	}
	return s
}

// Run sweeps every interval until ctx is cancelled. Cancellation is observed
// only between sweeps: a sweep in progress runs to completion.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return nil
		case <-ticker.C:
		}
		if _, err := s.RunOnce(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("sweep failed", "error", err)
		}
	}
}

// RunOnce performs a single sweep: UNPROCESSED emails first, oldest first,
// then consolidation of every owner that has tasks.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	report := SweepReport{RunID: uuid.New().String()}
	log := s.logger.With("run_id", report.RunID)

	if s.lock != nil {
		locked, err := s.lock.TryLock()
		if err != nil {
			return report, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !locked {
			report.Skipped = true
			log.Info("sweep skipped, another process holds the lock", "lock", s.lock.Path())
			return report, nil
		}
		defer func() { _ = s.lock.Unlock() }()
	}

	released, err := s.store.ReleaseStaleClaims(ctx, start.Add(-StaleClaimAge))
	if err != nil {
		return report, fmt.Errorf("release stale claims: %w", err)
	}
	report.Released = released

	pending, err := s.store.ListEmails(ctx, "", memory.EmailUnprocessed)
	if err != nil {
		return report, fmt.Errorf("list pending emails: %w", err)
	}
	for _, email := range pending {
		_, err := s.orch.Reprocess(ctx, email)
		switch {
		case err == nil:
			report.Reprocessed++
		case errors.Is(err, ErrBudgetExhausted):
			report.Deferred++
		case errors.Is(err, ErrEmailClaimed):
			report.Claimed++
		default:
			report.Failed++
		}
	}

	owners, err := s.store.ListOwners(ctx)
	if err != nil {
		return report, fmt.Errorf("list owners: %w", err)
	}
	for _, owner := range owners {
		if _, err := s.orch.Consolidate(ctx, owner); err != nil {
			if !errors.Is(err, ErrBudgetExhausted) {
				report.Failed++
			}
			continue
		}
		report.Consolidated++
	}

	report.Duration = time.Since(start)
	log.Info("sweep completed",
		"reprocessed", report.Reprocessed,
		"deferred", report.Deferred,
		"claimed", report.Claimed,
		"released", report.Released,
		"consolidated", report.Consolidated,
		"failed", report.Failed,
		"duration_ms", report.Duration.Milliseconds(),
	)
	s.orch.opts.Telemetry.Track(telemetry.EventSweepCompleted, map[string]any{
		"reprocessed":  report.Reprocessed,
		"consolidated": report.Consolidated,
		"failed":       report.Failed,
	})
	return report, nil
}
