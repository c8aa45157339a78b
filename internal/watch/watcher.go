// Package watch ingests .eml files dropped into an inbox directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/josephgoksu/taskmail/internal/pipeline"
)

// EmailExt is the only extension the watcher picks up.
const EmailExt = ".eml"

// DefaultSettleDelay waits for writers to finish before reading a file.
const DefaultSettleDelay = 500 * time.Millisecond

// Ingester runs the pipeline on one raw email.
type Ingester interface {
	Ingest(ctx context.Context, owner string, raw []byte) (pipeline.Result, error)
}

// Config holds watcher settings.
type Config struct {
	Dir         string
	Owner       string
	SettleDelay time.Duration
}

// Outcome is what happened to one file.
type Outcome struct {
	Path      string
	MovedTo   string
	TaskCount int
	Err       error
}

// Watcher monitors Dir and moves each file to processed/ or failed/ once ingested.
type Watcher struct {
	cfg          Config
	processedDir string
	failedDir    string
	ingester     Ingester
	logger       *slog.Logger
	fsw          *fsnotify.Watcher
	debouncer    *settleDebouncer
	queue        chan string
	onOutcome    func(Outcome)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher. Nothing is watched until Start.
func New(cfg Config, ingester Ingester, logger *slog.Logger) (*Watcher, error) {
	if cfg.Dir == "" || cfg.Owner == "" {
		return nil, fmt.Errorf("watch: dir and owner are required")
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:          cfg,
		processedDir: filepath.Join(cfg.Dir, "processed"),
		failedDir:    filepath.Join(cfg.Dir, "failed"),
		ingester:     ingester,
		logger:       logger.With("inbox", cfg.Dir, "owner", cfg.Owner),
		fsw:          fsw,
		queue:        make(chan string, 64),
	}
	w.debouncer = newSettleDebouncer(cfg.SettleDelay, w.enqueue)
	return w, nil
}

// OnOutcome registers a callback invoked after each file is handled.
func (w *Watcher) OnOutcome(fn func(Outcome)) {
	w.onOutcome = fn
}

// Start watches Dir and queues any .eml files already present. On error the
// watcher is closed and cannot be restarted.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range []string{w.processedDir, w.failedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			_ = w.fsw.Close()
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := w.fsw.Add(w.cfg.Dir); err != nil {
		_ = w.fsw.Close()
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(2)
	go w.eventLoop()
	go w.worker()

	backlog, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		w.Stop()
		return fmt.Errorf("read inbox: %w", err)
	}
	for _, e := range backlog {
		if !e.IsDir() && isEmail(e.Name()) {
			w.debouncer.Add(filepath.Join(w.cfg.Dir, e.Name()))
		}
	}

	w.logger.Info("watching inbox", "backlog", len(backlog))
	return nil
}

// Stop stops watching and waits for the file in progress.
func (w *Watcher) Stop() {
	w.debouncer.Stop()
	if w.cancel != nil {
		w.cancel()
	}
	_ = w.fsw.Close()
	w.wg.Wait()
}

// Run starts the watcher and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isEmail(event.Name) {
				continue
			}
			if filepath.Dir(event.Name) != filepath.Clean(w.cfg.Dir) {
				continue
			}
			w.debouncer.Add(event.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)

		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) enqueue(path string) {
	select {
	case w.queue <- path:
	case <-w.ctx.Done():
	}
}

// worker ingests files one at a time, in the order they settled.
func (w *Watcher) worker() {
	defer w.wg.Done()
	for {
		select {
		case path := <-w.queue:
			// Work already started finishes even when the watcher stops.
			out := w.Process(context.WithoutCancel(w.ctx), path)
			if w.onOutcome != nil {
				w.onOutcome(out)
			}
		case <-w.ctx.Done():
			return
		}
	}
}

// Process ingests one file and moves it out of the inbox.
func (w *Watcher) Process(ctx context.Context, path string) Outcome {
	out := Outcome{Path: path}
	log := w.logger.With("file", filepath.Base(path))

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		// Moved away by someone else, or handled by an earlier event.
		out.Err = err
		return out
	}
	if err != nil {
		out.Err = fmt.Errorf("read %s: %w", path, err)
		log.Error("read email file", "error", err)
		return out
	}

	res, err := w.ingester.Ingest(ctx, w.cfg.Owner, raw)
	out.TaskCount, out.Err = res.TaskCount, err

	dest := w.processedDir
	if err != nil && !accepted(err) {
		dest = w.failedDir
		log.Warn("email rejected", "reason", pipeline.ReasonOf(err), "error", err)
	} else {
		log.Info("email ingested", "task_count", res.TaskCount, "email_id", res.EmailID)
	}

	moved, mvErr := moveInto(path, dest)
	if mvErr != nil {
		log.Error("move email file", "error", mvErr)
		if out.Err == nil {
			out.Err = mvErr
		}
		return out
	}
	out.MovedTo = moved
	return out
}

// accepted reports failures that still leave the email handled: duplicates
// were processed before, and budget deferrals are retried by the sweep.
func accepted(err error) bool {
	switch pipeline.ReasonOf(err) {
	case pipeline.ReasonDuplicateEmail, pipeline.ReasonBudgetExhausted:
		return true
	}
	return false
}

func isEmail(name string) bool {
	return strings.EqualFold(filepath.Ext(name), EmailExt)
}

// moveInto renames path into dir, suffixing a timestamp when the name is taken.
func moveInto(path, dir string) (string, error) {
	dest := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(dest)
		dest = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(dest, ext), time.Now().UnixNano(), ext)
	}
	if err := os.Rename(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}
