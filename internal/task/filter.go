package task

// FilterOptions narrows a task list. Zero values mean "no constraint" except
// IncludeNoDueDate, which must be set explicitly to keep undated tasks.
type FilterOptions struct {
	DueFrom                 *Date
	DueTo                   *Date
	IncludeNoDueDate        bool
	ParentRequirementLevels []RequirementLevel
	Statuses                []Status
}

// Filter keeps the tasks matching opts, preserving input order. It is pure:
// the input slice is not modified.
//
// A dated task is kept when it falls inside [DueFrom, DueTo] (missing bounds are
// open). An undated task is kept only when IncludeNoDueDate is set. When
// ParentRequirementLevels is non-empty the task's parent level must be one of them.
func Filter(tasks []Task, opts FilterOptions) ([]Task, error) {
	if opts.DueFrom != nil && opts.DueTo != nil && opts.DueFrom.After(opts.DueTo.Time) {
		return nil, ErrInvalidRange
	}

	levels := make(map[RequirementLevel]struct{}, len(opts.ParentRequirementLevels))
	for _, l := range opts.ParentRequirementLevels {
		levels[l] = struct{}{}
	}
	statuses := make(map[Status]struct{}, len(opts.Statuses))
	for _, s := range opts.Statuses {
		statuses[s] = struct{}{}
	}

	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.DueDate == nil {
			if !opts.IncludeNoDueDate {
				continue
			}
		} else {
			if opts.DueFrom != nil && t.DueDate.Before(opts.DueFrom.Time) {
				continue
			}
			if opts.DueTo != nil && t.DueDate.After(opts.DueTo.Time) {
				continue
			}
		}
		if len(levels) > 0 {
			if _, ok := levels[t.ParentRequirementLevel]; !ok {
				continue
			}
		}
		if len(statuses) > 0 {
			if _, ok := statuses[t.Status]; !ok {
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// ListQuery is what a caller asked for. Nil fields fall back to the defaults
// passed to Resolve, which come from the owner's preferences.
type ListQuery struct {
	DueFrom                 *Date
	DueTo                   *Date
	IncludeNoDueDate        *bool
	ParentRequirementLevels []RequirementLevel
	Statuses                []Status
}

// Resolve overlays q on defaults. The due window is replaced as a unit: once
// q sets either bound, neither default bound applies.
func (q ListQuery) Resolve(defaults FilterOptions) FilterOptions {
	opts := defaults
	if q.DueFrom != nil || q.DueTo != nil {
		opts.DueFrom, opts.DueTo = q.DueFrom, q.DueTo
	}
	if q.IncludeNoDueDate != nil {
		opts.IncludeNoDueDate = *q.IncludeNoDueDate
	}
	if len(q.ParentRequirementLevels) > 0 {
		opts.ParentRequirementLevels = q.ParentRequirementLevels
	}
	if len(q.Statuses) > 0 {
		opts.Statuses = q.Statuses
	}
	return opts
}
