package extract

import (
	"github.com/josephgoksu/taskmail/internal/task"
)

// Candidate is an unpersisted task proposed by the model. DueDate stays a
// string here; turning it into a calendar date is the caller's decision.
type Candidate struct {
	Title                   string                `json:"title" validate:"notblank"`
	Description             string                `json:"description,omitempty"`
	DueDate                 string                `json:"due_date,omitempty" validate:"omitempty,isodate"`
	ConsequenceIfIgnore     string                `json:"consequence_if_ignore,omitempty"`
	ParentAction            task.ParentAction     `json:"parent_action,omitempty" validate:"parent_action"`
	ParentRequirementLevel  task.RequirementLevel `json:"parent_requirement_level,omitempty" validate:"requirement_level"`
	StudentAction           task.StudentAction    `json:"student_action,omitempty" validate:"student_action"`
	StudentRequirementLevel task.RequirementLevel `json:"student_requirement_level,omitempty" validate:"requirement_level"`
}

// envelope is the top-level response object.
type envelope struct {
	Tasks []Candidate `json:"tasks" validate:"required,dive"`
}

// ToTask converts c into a task for owner. A due date that does not parse as
// a real calendar date is dropped; the task itself is kept.
func (c Candidate) ToTask(owner string) task.Task {
	t := task.Task{
		Owner:                   owner,
		Title:                   c.Title,
		Description:             c.Description,
		ConsequenceIfIgnore:     c.ConsequenceIfIgnore,
		ParentAction:            c.ParentAction,
		ParentRequirementLevel:  c.ParentRequirementLevel,
		StudentAction:           c.StudentAction,
		StudentRequirementLevel: c.StudentRequirementLevel,
		Status:                  task.StatusPending,
	}
	if c.DueDate != "" {
		if d, err := task.ParseDate(c.DueDate); err == nil {
			t.DueDate = &d
		}
	}
	return t
}

// FromTask renders a stored task in the shape the model returns.
func FromTask(t task.Task) Candidate {
	c := Candidate{
		Title:                   t.Title,
		Description:             t.Description,
		ConsequenceIfIgnore:     t.ConsequenceIfIgnore,
		ParentAction:            t.ParentAction,
		ParentRequirementLevel:  t.ParentRequirementLevel,
		StudentAction:           t.StudentAction,
		StudentRequirementLevel: t.StudentRequirementLevel,
	}
	if t.DueDate != nil {
		c.DueDate = t.DueDate.String()
	}
	return c
}

// FromTasks converts a slice with FromTask.
func FromTasks(tasks []task.Task) []Candidate {
	out := make([]Candidate, len(tasks))
	for i, t := range tasks {
		out[i] = FromTask(t)
	}
	return out
}
