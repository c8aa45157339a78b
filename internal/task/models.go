// Package task defines the household task model shared by extraction, storage and transport.
package task

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a task
type Status string

const (
	StatusPending Status = "pending" // Default for every new task
	StatusDone    Status = "done"    // Parent marked it handled
	StatusSnoozed Status = "snoozed" // Hidden until the parent revisits it
)

// ParentAction is the single action a parent must take for a task.
type ParentAction string

const (
	ParentActionNone      ParentAction = "NONE"
	ParentActionSubmit    ParentAction = "SUBMIT"
	ParentActionSign      ParentAction = "SIGN"
	ParentActionPay       ParentAction = "PAY"
	ParentActionPurchase  ParentAction = "PURCHASE"
	ParentActionAttend    ParentAction = "ATTEND"
	ParentActionTransport ParentAction = "TRANSPORT"
	ParentActionVolunteer ParentAction = "VOLUNTEER"
	ParentActionOther     ParentAction = "OTHER"
)

// StudentAction is the single action a student must take for a task.
type StudentAction string

const (
	StudentActionNone    StudentAction = "NONE"
	StudentActionSubmit  StudentAction = "SUBMIT"
	StudentActionAttend  StudentAction = "ATTEND"
	StudentActionSetup   StudentAction = "SETUP"
	StudentActionBring   StudentAction = "BRING"
	StudentActionPrepare StudentAction = "PREPARE"
	StudentActionWear    StudentAction = "WEAR"
	StudentActionCollect StudentAction = "COLLECT"
	StudentActionOther   StudentAction = "OTHER"
)

// RequirementLevel says how binding an action is for its actor.
type RequirementLevel string

const (
	RequirementNone                 RequirementLevel = "NONE"
	RequirementOptional             RequirementLevel = "OPTIONAL"
	RequirementVolunteerOpportunity RequirementLevel = "VOLUNTEER_OPPORTUNITY"
	RequirementMandatory            RequirementLevel = "MANDATORY"
)

// Enumerations in the order presented to the extraction model. ParentActions and
// StudentActions are listed by priority: when one email asks for several actions
// the earliest entry wins.
var (
	Statuses = []Status{StatusPending, StatusDone, StatusSnoozed}

	ParentActions = []ParentAction{
		ParentActionAttend, ParentActionPay, ParentActionSubmit, ParentActionSign,
		ParentActionPurchase, ParentActionTransport, ParentActionVolunteer,
		ParentActionOther, ParentActionNone,
	}

	StudentActions = []StudentAction{
		StudentActionAttend, StudentActionSubmit, StudentActionSetup, StudentActionWear,
		StudentActionBring, StudentActionCollect, StudentActionPrepare,
		StudentActionOther, StudentActionNone,
	}

	RequirementLevels = []RequirementLevel{
		RequirementNone, RequirementOptional, RequirementVolunteerOpportunity, RequirementMandatory,
	}
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus normalizes user input ("Done", " snoozed ") into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q (want pending, done or snoozed)", ErrValidation, s)
	}
	return st, nil
}

// Valid reports whether a is empty (not populated) or a known parent action.
func (a ParentAction) Valid() bool {
	if a == "" {
		return true
	}
	for _, v := range ParentActions {
		if a == v {
			return true
		}
	}
	return false
}

// Valid reports whether a is empty (not populated) or a known student action.
func (a StudentAction) Valid() bool {
	if a == "" {
		return true
	}
	for _, v := range StudentActions {
		if a == v {
			return true
		}
	}
	return false
}

// Valid reports whether l is empty (not populated) or a known requirement level.
func (l RequirementLevel) Valid() bool {
	if l == "" {
		return true
	}
	for _, v := range RequirementLevels {
		if l == v {
			return true
		}
	}
	return false
}

// ParseRequirementLevels splits a comma separated list ("MANDATORY,optional").
func ParseRequirementLevels(s string) ([]RequirementLevel, error) {
	var out []RequirementLevel
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		lvl := RequirementLevel(part)
		if !lvl.Valid() {
			return nil, fmt.Errorf("%w: unknown requirement level %q", ErrValidation, part)
		}
		out = append(out, lvl)
	}
	return out, nil
}

// DateLayout is the wire format for due dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day, always held at UTC midnight.
type Date struct {
	time.Time
}

// NewDate builds a Date from its calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a strict YYYY-MM-DD string. Out-of-range days such as
// 2024-02-30 are rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q", ErrValidation, s)
	}
	return Date{t}, nil
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML renders the date in wire format.
func (d Date) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Task is a persisted, actionable item for one owner.
// Empty optional fields mean "not populated" and are omitted on output.
type Task struct {
	ID                      int64            `json:"id" yaml:"id"`
	Owner                   string           `json:"owner" yaml:"owner"`
	Title                   string           `json:"title" yaml:"title"`
	Description             string           `json:"description,omitempty" yaml:"description,omitempty"`
	DueDate                 *Date            `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	ConsequenceIfIgnore     string           `json:"consequence_if_ignore,omitempty" yaml:"consequence_if_ignore,omitempty"`
	ParentAction            ParentAction     `json:"parent_action,omitempty" yaml:"parent_action,omitempty"`
	ParentRequirementLevel  RequirementLevel `json:"parent_requirement_level,omitempty" yaml:"parent_requirement_level,omitempty"`
	StudentAction           StudentAction    `json:"student_action,omitempty" yaml:"student_action,omitempty"`
	StudentRequirementLevel RequirementLevel `json:"student_requirement_level,omitempty" yaml:"student_requirement_level,omitempty"`
	Status                  Status           `json:"status" yaml:"status"`
	EmailID                 int64            `json:"email_id,omitempty" yaml:"email_id,omitempty"`
	CreatedAt               time.Time        `json:"created_at" yaml:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at" yaml:"updated_at"`
}

// Validate checks the fields a caller controls.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: task title required", ErrValidation)
	}
	if t.Status != "" && !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, t.Status)
	}
	if !t.ParentAction.Valid() {
		return fmt.Errorf("%w: unknown parent_action %q", ErrValidation, t.ParentAction)
	}
	if !t.StudentAction.Valid() {
		return fmt.Errorf("%w: unknown student_action %q", ErrValidation, t.StudentAction)
	}
	if !t.ParentRequirementLevel.Valid() || !t.StudentRequirementLevel.Valid() {
		return fmt.Errorf("%w: unknown requirement level", ErrValidation)
	}
	return nil
}

// Changes lists the fields UpdateTask should touch. Nil fields are left alone.
type Changes struct {
	Title                   *string
	Description             *string
	DueDate                 *Date
	ClearDueDate            bool
	ConsequenceIfIgnore     *string
	ParentAction            *ParentAction
	ParentRequirementLevel  *RequirementLevel
	StudentAction           *StudentAction
	StudentRequirementLevel *RequirementLevel
	Status                  *Status
}

// IsEmpty reports whether no field is set.
func (c Changes) IsEmpty() bool {
	return c.Title == nil && c.Description == nil && c.DueDate == nil && !c.ClearDueDate &&
		c.ConsequenceIfIgnore == nil && c.ParentAction == nil && c.ParentRequirementLevel == nil &&
		c.StudentAction == nil && c.StudentRequirementLevel == nil && c.Status == nil
}

// Apply writes the set fields onto t after validating them.
func (c Changes) Apply(t *Task) error {
	if c.Title != nil {
		t.Title = *c.Title
	}
	if c.Description != nil {
		t.Description = *c.Description
	}
	if c.ClearDueDate {
		t.DueDate = nil
	} else if c.DueDate != nil {
		d := *c.DueDate
		t.DueDate = &d
	}
	if c.ConsequenceIfIgnore != nil {
		t.ConsequenceIfIgnore = *c.ConsequenceIfIgnore
	}
	if c.ParentAction != nil {
		t.ParentAction = *c.ParentAction
	}
	if c.ParentRequirementLevel != nil {
		t.ParentRequirementLevel = *c.ParentRequirementLevel
	}
	if c.StudentAction != nil {
		t.StudentAction = *c.StudentAction
	}
	if c.StudentRequirementLevel != nil {
		t.StudentRequirementLevel = *c.StudentRequirementLevel
	}
	if c.Status != nil {
		t.Status = *c.Status
	}
	return t.Validate()
}
