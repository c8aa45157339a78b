package pipeline

import (
	"errors"

	"github.com/josephgoksu/taskmail/internal/extract"
	"github.com/josephgoksu/taskmail/internal/mailbody"
	"github.com/josephgoksu/taskmail/internal/policy"
)

// State is the position of one email in the processing state machine.
type State string

const (
	StateReceived     State = "received"
	StateBodyResolved State = "body_resolved"
	StateExtracted    State = "extracted"
	StatePersisted    State = "persisted"
	StateFailed       State = "failed"
)

// Reason explains a Failed state.
type Reason string

const (
	ReasonInvalidEmail     Reason = "InvalidEmail"
	ReasonNoContent        Reason = "NoContent"
	ReasonExtractionFailed Reason = "ExtractionFailed"
	ReasonDuplicateEmail   Reason = "DuplicateEmail"
	ReasonPolicyDenied     Reason = "PolicyDenied"
	ReasonBudgetExhausted  Reason = "BudgetExhausted"
	ReasonStoreFailed      Reason = "StoreFailed"
)

var (
	// ErrDuplicateEmail is returned when the owner already submitted an
	// email with the same Message-ID.
	ErrDuplicateEmail = errors.New("email already processed")
	// ErrBudgetExhausted is returned when the owner's processing budget is
	// spent. The email is kept and retried by the sweep.
	ErrBudgetExhausted = errors.New("processing budget exhausted")
	// ErrEmailClaimed is returned by Reprocess when the email is no longer
	// UNPROCESSED: another run is working on it or already finished it.
	ErrEmailClaimed = errors.New("email claimed by another run")
)

// Failure is the terminal error of a failed run. Err wraps the package
// sentinel, so errors.Is works against mailbody, extract and policy errors.
type Failure struct {
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	return string(f.Reason) + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(reason Reason, err error) *Failure {
	return &Failure{Reason: reason, Err: err}
}

// ReasonOf extracts the failure reason from err, classifying bare sentinels
// too. Unknown errors are reported as StoreFailed.
func ReasonOf(err error) Reason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	switch {
	case errors.Is(err, mailbody.ErrInvalidEmail):
		return ReasonInvalidEmail
	case errors.Is(err, mailbody.ErrNoContent):
		return ReasonNoContent
	case errors.Is(err, extract.ErrExtractionFailed):
		return ReasonExtractionFailed
	case errors.Is(err, ErrDuplicateEmail):
		return ReasonDuplicateEmail
	case errors.Is(err, policy.ErrDenied):
		return ReasonPolicyDenied
	case errors.Is(err, ErrBudgetExhausted):
		return ReasonBudgetExhausted
	}
	return ReasonStoreFailed
}
