package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/taskmail/internal/logger"
	"github.com/josephgoksu/taskmail/internal/mailbody"
	"github.com/josephgoksu/taskmail/internal/pipeline"
)

type fakeIngester struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (f *fakeIngester) Ingest(_ context.Context, owner string, raw []byte) (pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, owner+":"+string(raw))
	if err := f.errs[string(raw)]; err != nil {
		return pipeline.Result{State: pipeline.StateFailed}, err
	}
	return pipeline.Result{EmailID: int64(len(f.calls)), State: pipeline.StatePersisted, TaskCount: 1}, nil
}

func (f *fakeIngester) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestWatcher(t *testing.T, ing Ingester) (*Watcher, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := New(Config{Dir: dir, Owner: "mom", SettleDelay: 20 * time.Millisecond}, ing, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.fsw.Close() })
	return w, dir
}

func writeEmail(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestProcess(t *testing.T) {
	ing := &fakeIngester{errs: map[string]error{
		"empty": &pipeline.Failure{Reason: pipeline.ReasonNoContent, Err: mailbody.ErrNoContent},
		"again": &pipeline.Failure{Reason: pipeline.ReasonDuplicateEmail, Err: pipeline.ErrDuplicateEmail},
		"broke": &pipeline.Failure{Reason: pipeline.ReasonBudgetExhausted, Err: pipeline.ErrBudgetExhausted},
	}}
	w, dir := newTestWatcher(t, ing)
	require.NoError(t, os.MkdirAll(w.processedDir, 0755))
	require.NoError(t, os.MkdirAll(w.failedDir, 0755))
	ctx := context.Background()

	tests := []struct {
		name      string
		content   string
		wantDir   string
		wantErr   bool
		wantTasks int
	}{
		{"ok.eml", "hello", "processed", false, 1},
		{"empty.eml", "empty", "failed", true, 0},
		{"dup.eml", "again", "processed", true, 0},
		{"budget.eml", "broke", "processed", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeEmail(t, dir, tt.name, tt.content)
			out := w.Process(ctx, path)

			assert.Equal(t, tt.wantErr, out.Err != nil)
			assert.Equal(t, tt.wantTasks, out.TaskCount)
			assert.Equal(t, filepath.Join(dir, tt.wantDir, tt.name), out.MovedTo)
			assert.NoFileExists(t, path)
			assert.FileExists(t, out.MovedTo)
		})
	}

	out := w.Process(ctx, filepath.Join(dir, "gone.eml"))
	assert.True(t, errors.Is(out.Err, os.ErrNotExist))
}

func TestMoveIntoAvoidsCollisions(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dest, 0755))

	first, err := moveInto(writeEmail(t, dir, "a.eml", "1"), dest)
	require.NoError(t, err)
	second, err := moveInto(writeEmail(t, dir, "a.eml", "2"), dest)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, ".eml", filepath.Ext(second))
}

func TestWatcherPicksUpBacklogAndNewFiles(t *testing.T) {
	ing := &fakeIngester{}
	w, dir := newTestWatcher(t, ing)

	writeEmail(t, dir, "backlog.eml", "early")
	writeEmail(t, dir, "notes.txt", "ignored")

	var mu sync.Mutex
	var outcomes []Outcome
	w.OnOutcome(func(o Outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	writeEmail(t, dir, "new.EML", "late")

	require.Eventually(t, func() bool { return ing.count() == 2 }, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(outcomes) == 2
	}, 5*time.Second, 20*time.Millisecond)

	assert.FileExists(t, filepath.Join(dir, "processed", "backlog.eml"))
	assert.FileExists(t, filepath.Join(dir, "processed", "new.EML"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	assert.ElementsMatch(t, []string{"mom:early", "mom:late"}, ing.calls)
}

func TestStartFailureClosesWatcher(t *testing.T) {
	// A regular file where the inbox directory should be.
	inbox := writeEmail(t, t.TempDir(), "inbox", "not a directory")
	w, err := New(Config{Dir: inbox, Owner: "mom"}, &fakeIngester{}, logger.Discard())
	require.NoError(t, err)

	require.Error(t, w.Start(context.Background()))
	assert.ErrorIs(t, w.fsw.Add(t.TempDir()), fsnotify.ErrClosed)
}

func TestNewRequiresDirAndOwner(t *testing.T) {
	_, err := New(Config{Dir: t.TempDir()}, &fakeIngester{}, nil)
	assert.Error(t, err)
}

func TestSettleDebouncerCoalesces(t *testing.T) {
	var mu sync.Mutex
	fired := map[string]int{}
	d := newSettleDebouncer(30*time.Millisecond, func(p string) {
		mu.Lock()
		fired[p]++
		mu.Unlock()
	})

	for range 5 {
		d.Add("a.eml")
	}
	d.Add("b.eml")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired["a.eml"] == 1 && fired["b.eml"] == 1
	}, time.Second, 10*time.Millisecond)

	d.Stop()
	d.Add("c.eml")
	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, fired["c.eml"])
}
