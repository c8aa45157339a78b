package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func useMemFs(t *testing.T, base string) afero.Fs {
	t.Helper()
	orig := crashFs
	crashFs = afero.NewMemMapFs()
	SetBasePath(base)
	t.Cleanup(func() {
		crashFs = orig
		SetBasePath("")
	})
	return crashFs
}

func TestSetLastInputTrimsAndTruncates(t *testing.T) {
	SetLastInput("  queued.eml  ")
	if got := newCrashLog("x", nil).LastInput; got != "queued.eml" {
		t.Fatalf("got %q", got)
	}

	SetLastInput(strings.Repeat("a", 600))
	got := newCrashLog("x", nil).LastInput
	if !strings.HasPrefix(got, strings.Repeat("a", 500)) || !strings.HasSuffix(got, "[truncated]") {
		t.Fatalf("got %q", got)
	}
	SetLastInput("")
}

func TestWriteCrashLogPrunesOldest(t *testing.T) {
	fs := useMemFs(t, "/data")
	dir := filepath.Join("/data", CrashLogDir)

	for i := range MaxCrashLogs + 3 {
		name := fmt.Sprintf("crash-20240101T0000%02d.000.json", i)
		if err := afero.WriteFile(fs, filepath.Join(dir, name), []byte(`{"panic":"old"}`), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	SetVersion("test")
	SetCommand("taskmail serve")
	report := newCrashLog("kaboom", []byte("goroutine 1 [running]:"))
	path, err := writeCrashLog(report)
	if err != nil {
		t.Fatalf("writeCrashLog: %v", err)
	}

	logs, err := ListCrashLogs()
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != MaxCrashLogs {
		t.Fatalf("got %d crash logs, want %d", len(logs), MaxCrashLogs)
	}
	if logs[0].Path != path || logs[0].Panic != "kaboom" || logs[0].Command != "taskmail serve" {
		t.Fatalf("newest report should come first, got %+v", logs[0])
	}
	if ok, _ := afero.Exists(fs, filepath.Join(dir, "crash-20240101T000000.000.json")); ok {
		t.Error("oldest crash log should have been removed")
	}
}

func TestListCrashLogsSkipsJunk(t *testing.T) {
	fs := useMemFs(t, "/data")
	dir := filepath.Join("/data", CrashLogDir)
	_ = afero.WriteFile(fs, filepath.Join(dir, "crash-20240101T000000.000.json"), []byte("{not json"), 0o600)
	_ = afero.WriteFile(fs, filepath.Join(dir, "notes.txt"), []byte("x"), 0o600)
	_ = afero.WriteFile(fs, filepath.Join(dir, "crash-20240102T000000.000.json"),
		[]byte(`{"timestamp":"2024-01-02T00:00:00Z","panic":"nil map"}`), 0o600)

	logs, err := ListCrashLogs()
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Panic != "nil map" || !logs[0].Timestamp.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("got %+v", logs)
	}
}

func TestListCrashLogsMissingDir(t *testing.T) {
	useMemFs(t, "/nope")

	logs, err := ListCrashLogs()
	if err != nil || len(logs) != 0 {
		t.Fatalf("got %v, %v", logs, err)
	}
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "warn", "json")
	if err != nil {
		t.Fatal(err)
	}
	log.Info("hidden")
	log.Warn("shown", "owner", "mom")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected one json line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "shown" || line["owner"] != "mom" {
		t.Errorf("unexpected record: %v", line)
	}

	if _, err := NewWithWriter(&buf, "loud", "text"); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := NewWithWriter(&buf, "info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
