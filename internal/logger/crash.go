// Package logger builds the structured logger and captures CLI panics into
// crash reports under the data directory.
package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const (
	// CrashLogDir holds crash reports inside the data directory.
	CrashLogDir = "crash_logs"

	// MaxCrashLogs is how many reports survive pruning.
	MaxCrashLogs = 10

	crashPrefix = "crash-"
	crashSuffix = ".json"
	crashStamp  = "20060102T150405.000"
)

// crashFs is swapped for a MemMapFs in tests.
var crashFs afero.Fs = afero.NewOsFs()

type crashContext struct {
	mu        sync.RWMutex
	lastInput string
	command   string
	version   string
	basePath  string
}

var current = &crashContext{}

// SetBasePath sets the data directory crash reports are written under.
func SetBasePath(path string) {
	current.mu.Lock()
	current.basePath = path
	current.mu.Unlock()
}

func SetVersion(version string) {
	current.mu.Lock()
	current.version = version
	current.mu.Unlock()
}

// SetCommand records the command path, e.g. "taskmail ingest".
func SetCommand(cmd string) {
	current.mu.Lock()
	current.command = cmd
	current.mu.Unlock()
}

// SetLastInput records what the command was working on, such as the email
// file being ingested. Never pass message bodies.
func SetLastInput(input string) {
	input = strings.TrimSpace(input)
	if len(input) > 500 {
		input = input[:500] + "... [truncated]"
	}
	current.mu.Lock()
	current.lastInput = input
	current.mu.Unlock()
}

// CrashLog is one crash report.
type CrashLog struct {
	Path      string    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Command   string    `json:"command"`
	Panic     string    `json:"panic"`
	Stack     string    `json:"stack"`
	LastInput string    `json:"last_input,omitempty"`
	GoVersion string    `json:"go_version"`
	OS        string    `json:"os"`
	Arch      string    `json:"arch"`
}

// HandlePanic recovers a panic, saves a crash report and exits with status 1.
// Usage: defer logger.HandlePanic()
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}
	report := newCrashLog(r, debug.Stack())
	path, err := writeCrashLog(report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n[CRASH] could not save crash report: %v\n[CRASH] %v\n%s\n", err, r, report.Stack)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "\ntaskmail crashed unexpectedly. Details were saved to:\n  %s\n\n", path)
	os.Exit(1)
}

func newCrashLog(panicValue any, stack []byte) CrashLog {
	current.mu.RLock()
	defer current.mu.RUnlock()
	return CrashLog{
		Timestamp: time.Now().UTC(),
		Version:   current.version,
		Command:   current.command,
		Panic:     fmt.Sprint(panicValue),
		Stack:     string(stack),
		LastInput: current.lastInput,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

func crashDir() string {
	current.mu.RLock()
	base := current.basePath
	current.mu.RUnlock()
	if base == "" {
		base = "."
	}
	return filepath.Join(base, CrashLogDir)
}

func isCrashFile(name string) bool {
	return strings.HasPrefix(name, crashPrefix) && strings.HasSuffix(name, crashSuffix)
}

// writeCrashLog prunes old reports to make room, then writes report.
func writeCrashLog(report CrashLog) (string, error) {
	dir := crashDir()
	if err := crashFs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}
	if err := pruneCrashLogs(dir, MaxCrashLogs-1); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] pruning crash reports: %v\n", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, crashPrefix+report.Timestamp.Format(crashStamp)+crashSuffix)
	if err := afero.WriteFile(crashFs, path, data, 0o600); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

func crashFiles(dir string) ([]string, error) {
	entries, err := afero.ReadDir(crashFs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && isCrashFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	// Names embed a sortable timestamp.
	slices.Sort(names)
	return names, nil
}

// pruneCrashLogs keeps the newest keep reports.
func pruneCrashLogs(dir string, keep int) error {
	names, err := crashFiles(dir)
	if err != nil || len(names) <= keep {
		return err
	}
	for _, name := range names[:len(names)-keep] {
		if err := crashFs.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

// ListCrashLogs returns saved crash reports, newest first. Unreadable files
// are skipped.
func ListCrashLogs() ([]CrashLog, error) {
	dir := crashDir()
	names, err := crashFiles(dir)
	if err != nil {
		return nil, err
	}
	logs := make([]CrashLog, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		path := filepath.Join(dir, names[i])
		data, err := afero.ReadFile(crashFs, path)
		if err != nil {
			continue
		}
		var report CrashLog
		if err := json.Unmarshal(data, &report); err != nil {
			continue
		}
		report.Path = path
		logs = append(logs, report)
	}
	return logs, nil
}
