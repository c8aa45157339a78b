package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/josephgoksu/taskmail/internal/llm"
	"github.com/josephgoksu/taskmail/internal/memory"
	"github.com/josephgoksu/taskmail/internal/pipeline"
)

type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	original := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stderr = w
	fn()
	_ = w.Close()
	os.Stderr = original

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	return strings.TrimSpace(buf.String())
}

func TestPrintError(t *testing.T) {
	tests := []struct {
		name         string
		userMsg      string
		technicalErr error
		verbose      bool
		expectedOut  string
	}{
		{
			name:        "normal mode without error",
			userMsg:     "User friendly message",
			expectedOut: "User friendly message",
		},
		{
			name:         "verbose mode with error",
			userMsg:      "User friendly message",
			technicalErr: &testError{msg: "technical details"},
			verbose:      true,
			expectedOut:  "Error: technical details",
		},
		{
			name:         "normal mode hides technical error",
			userMsg:      "User friendly message",
			technicalErr: &testError{msg: "technical details"},
			expectedOut:  "User friendly message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Set("verbose", tt.verbose)
			defer viper.Set("verbose", false)

			output := captureStderr(t, func() { PrintError(tt.userMsg, tt.technicalErr) })
			if !strings.Contains(output, tt.expectedOut) {
				t.Errorf("PrintError() output = %q, want to contain %q", output, tt.expectedOut)
			}
		})
	}
}

func TestLogErrorQuietUnlessVerbose(t *testing.T) {
	viper.Set("verbose", false)
	if out := captureStderr(t, func() { LogError("lookup", errors.New("boom")) }); out != "" {
		t.Fatalf("expected no output, got %q", out)
	}

	viper.Set("verbose", true)
	defer viper.Set("verbose", false)
	out := captureStderr(t, func() { LogError("lookup", errors.New("boom")) })
	if out != "[DEBUG] lookup: boom" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("open completer: %w", llm.ErrUnconfigured), "no API key"},
		{fmt.Errorf("task 9: %w", memory.ErrNotFound), "not found."},
		{pipeline.ErrDuplicateEmail, "already processed"},
		{fmt.Errorf("ingest: %w", pipeline.ErrBudgetExhausted), "taskmail budget deposit"},
		{errors.New("disk full"), "disk full"},
	}
	for _, tt := range tests {
		if got := userMessage(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("userMessage(%v) = %q, want to contain %q", tt.err, got, tt.want)
		}
	}
}
