// Package policy evaluates Rego intake rules that decide whether an inbound
// email may be processed for an owner.
package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/spf13/afero"
)

// DefaultPolicyPackage is the Rego package queried for intake rules.
const DefaultPolicyPackage = "taskmail.intake"

// ErrDenied is returned when at least one deny rule fires.
var ErrDenied = errors.New("denied by intake policy")

// Result constants.
const (
	ResultAllow = "allow"
	ResultDeny  = "deny"
)

// IntakeInput is what Rego policies receive as `input`.
type IntakeInput struct {
	Owner     string `json:"owner"`
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	SentAt    string `json:"sent_at"`
}

// Decision is the outcome of one evaluation.
type Decision struct {
	DecisionID  string      `json:"decisionId"`
	PolicyPath  string      `json:"policyPath"`
	Result      string      `json:"result"`
	Violations  []string    `json:"violations,omitempty"`
	Warnings    []string    `json:"warnings,omitempty"`
	Input       IntakeInput `json:"input"`
	EvaluatedAt time.Time   `json:"evaluatedAt"`
}

// IsAllowed returns true if no deny rule fired.
func (d *Decision) IsAllowed() bool {
	return d.Result == ResultAllow
}

// Err returns ErrDenied carrying the violations, or nil when allowed.
func (d *Decision) Err() error {
	if d.IsAllowed() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrDenied, strings.Join(d.Violations, "; "))
}

// Engine holds loaded policies. Evaluation is local; nothing leaves the process.
type Engine struct {
	policies      []*PolicyFile
	policyPackage string
}

// EngineConfig holds configuration for creating an Engine.
type EngineConfig struct {
	// PoliciesDir is the directory containing .rego files. A missing directory
	// means no policies, which allows everything.
	PoliciesDir string

	// PolicyPackage defaults to DefaultPolicyPackage.
	PolicyPackage string

	// Fs defaults to the OS filesystem.
	Fs afero.Fs
}

// NewEngine loads and compiles every policy under cfg.PoliciesDir. A policy
// with a syntax error fails construction rather than the first email.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	var policies []*PolicyFile
	if cfg.PoliciesDir != "" {
		loaded, err := NewLoader(cfg.Fs, cfg.PoliciesDir).LoadAll()
		if err != nil {
			return nil, fmt.Errorf("load policies: %w", err)
		}
		policies = loaded
	}
	for _, p := range policies {
		if err := ValidatePolicy(p.Content); err != nil {
			return nil, fmt.Errorf("policy %s: %w", p.Name, err)
		}
	}
	return NewEngineWithPolicies(cfg.PolicyPackage, policies), nil
}

// NewEngineWithPolicies builds an engine from in-memory policies.
func NewEngineWithPolicies(pkg string, policies []*PolicyFile) *Engine {
	if pkg == "" {
		pkg = DefaultPolicyPackage
	}
	return &Engine{policies: policies, policyPackage: pkg}
}

// PolicyCount returns the number of loaded policies.
func (e *Engine) PolicyCount() int {
	return len(e.policies)
}

// PolicyNames returns the names of all loaded policies.
func (e *Engine) PolicyNames() []string {
	names := make([]string, len(e.policies))
	for i, p := range e.policies {
		names[i] = p.Name
	}
	return names
}

// Evaluate queries the deny and warn sets of the policy package. Strings
// produced by deny block the email; warn strings are reported only.
func (e *Engine) Evaluate(ctx context.Context, input IntakeInput) (*Decision, error) {
	decision := &Decision{
		DecisionID:  uuid.New().String(),
		PolicyPath:  e.policyPackage,
		Result:      ResultAllow,
		Input:       input,
		EvaluatedAt: time.Now().UTC(),
	}
	if len(e.policies) == 0 {
		return decision, nil
	}

	modules := make([]func(*rego.Rego), len(e.policies))
	for i, p := range e.policies {
		modules[i] = rego.Module(p.Path, p.Content)
	}

	violations, err := e.querySet(ctx, input, "deny", modules)
	if err != nil {
		return nil, fmt.Errorf("query deny rules: %w", err)
	}
	// warn is optional
	warnings, _ := e.querySet(ctx, input, "warn", modules)

	decision.Warnings = warnings
	if len(violations) > 0 {
		decision.Result = ResultDeny
		decision.Violations = violations
	}
	return decision, nil
}

// CheckIntake evaluates input and folds a deny into ErrDenied.
func (e *Engine) CheckIntake(ctx context.Context, input IntakeInput) (*Decision, error) {
	decision, err := e.Evaluate(ctx, input)
	if err != nil {
		return nil, err
	}
	return decision, decision.Err()
}

// querySet evaluates a set-generating rule and returns its string members.
func (e *Engine) querySet(ctx context.Context, input IntakeInput, ruleName string, modules []func(*rego.Rego)) ([]string, error) {
	opts := []func(*rego.Rego){
		rego.Query(fmt.Sprintf("data.%s.%s", e.policyPackage, ruleName)),
		rego.Input(input),
	}
	opts = append(opts, modules...)

	rs, err := rego.New(opts...).Eval(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "undefined") {
			return nil, nil
		}
		return nil, err
	}

	var results []string
	for _, result := range rs {
		for _, expr := range result.Expressions {
			set, ok := expr.Value.([]any)
			if !ok {
				continue
			}
			for _, item := range set {
				if s, ok := item.(string); ok {
					results = append(results, s)
				}
			}
		}
	}
	return results, nil
}

// ValidatePolicy checks that content compiles as Rego.
func ValidatePolicy(content string) error {
	_, err := rego.New(
		rego.Query("data"),
		rego.Module("validation.rego", content),
	).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	return nil
}
