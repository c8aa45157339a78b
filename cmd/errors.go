package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/josephgoksu/taskmail/internal/app"
	"github.com/josephgoksu/taskmail/internal/config"
	"github.com/josephgoksu/taskmail/internal/llm"
	"github.com/josephgoksu/taskmail/internal/memory"
	"github.com/josephgoksu/taskmail/internal/pipeline"
	"github.com/josephgoksu/taskmail/internal/task"
)

// errMissingOwner is returned by commands that act for an owner when none was given.
var errMissingOwner = errors.New("no owner given: pass --owner or set TASKMAIL_OWNER")

// HandleFatalError handles unrecoverable errors that should terminate the application.
func HandleFatalError(userMsg string, technicalErr error) {
	PrintError(userMsg, technicalErr)
	os.Exit(1)
}

// PrintError prints an error message without exiting, allowing for recovery.
func PrintError(userMsg string, technicalErr error) {
	if viper.GetBool("verbose") && technicalErr != nil {
		// In verbose mode, print the detailed, underlying technical error.
		fmt.Fprintf(os.Stderr, "Error: %v\n", technicalErr)
	} else {
		fmt.Fprintln(os.Stderr, userMsg)
	}
}

// LogError logs an error without printing to stderr if verbose mode is off.
func LogError(msg string, err error) {
	if viper.GetBool("verbose") {
		if err != nil {
			fmt.Fprintf(os.Stderr, "[DEBUG] %s: %v\n", msg, err)
		} else {
			fmt.Fprintf(os.Stderr, "[DEBUG] %s\n", msg)
		}
	}
}

// userMessage explains the errors a user can act on. Anything else is shown as is.
func userMessage(err error) string {
	switch {
	case errors.Is(err, llm.ErrUnconfigured):
		return "no API key for the model provider. Set llm.apiKeys.<provider> with 'taskmail config set-key' or export the provider's API key variable."
	case errors.Is(err, config.ErrInvalidConfig):
		return err.Error()
	case errors.Is(err, app.ErrNoJWTSecret):
		return "set auth.jwtSecret before issuing tokens."
	case errors.Is(err, memory.ErrAlreadyExists):
		return "that user already has an API key. Use 'taskmail user rotate-key' to replace it."
	case errors.Is(err, memory.ErrNotFound):
		return "not found."
	case errors.Is(err, pipeline.ErrDuplicateEmail):
		return "this email was already processed."
	case errors.Is(err, pipeline.ErrBudgetExhausted):
		return "processing budget exhausted. Top it up with 'taskmail budget deposit'."
	case errors.Is(err, task.ErrInvalidRange):
		return "--due-from must not be after --due-to."
	default:
		return err.Error()
	}
}
