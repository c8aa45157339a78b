package task

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datePtr(y int, m time.Month, d int) *Date {
	dt := NewDate(y, m, d)
	return &dt
}

func sampleTasks() []Task {
	return []Task{
		{ID: 1, Title: "Permission slip", DueDate: datePtr(2024, 5, 3), ParentRequirementLevel: RequirementMandatory},
		{ID: 2, Title: "Bake sale", DueDate: datePtr(2024, 5, 10), ParentRequirementLevel: RequirementVolunteerOpportunity},
		{ID: 3, Title: "Spirit week", ParentRequirementLevel: RequirementOptional},
		{ID: 4, Title: "Picture day", DueDate: datePtr(2024, 4, 20), ParentRequirementLevel: RequirementMandatory, Status: StatusDone},
	}
}

func ids(tasks []Task) []int64 {
	out := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		opts FilterOptions
		want []int64
	}{
		{
			name: "no constraints drops undated tasks",
			opts: FilterOptions{},
			want: []int64{1, 2, 4},
		},
		{
			name: "include undated",
			opts: FilterOptions{IncludeNoDueDate: true},
			want: []int64{1, 2, 3, 4},
		},
		{
			name: "window is inclusive on both ends",
			opts: FilterOptions{DueFrom: datePtr(2024, 5, 3), DueTo: datePtr(2024, 5, 10)},
			want: []int64{1, 2},
		},
		{
			name: "open lower bound",
			opts: FilterOptions{DueTo: datePtr(2024, 5, 3)},
			want: []int64{1, 4},
		},
		{
			name: "mandatory only",
			opts: FilterOptions{IncludeNoDueDate: true, ParentRequirementLevels: []RequirementLevel{RequirementMandatory}},
			want: []int64{1, 4},
		},
		{
			name: "status filter",
			opts: FilterOptions{IncludeNoDueDate: true, Statuses: []Status{StatusDone}},
			want: []int64{4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Filter(sampleTasks(), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFilter_InvalidRange(t *testing.T) {
	_, err := Filter(sampleTasks(), FilterOptions{DueFrom: datePtr(2024, 5, 10), DueTo: datePtr(2024, 5, 1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestFilter_PermissionSlipScenario(t *testing.T) {
	tasks := []Task{
		{ID: 1, Title: "Permission slip", DueDate: datePtr(2024, 5, 3), ParentRequirementLevel: RequirementMandatory},
		{ID: 2, Title: "Spirit week"},
	}
	got, err := Filter(tasks, FilterOptions{
		DueFrom:          datePtr(2024, 5, 1),
		DueTo:            datePtr(2024, 5, 31),
		IncludeNoDueDate: false,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(got))
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	in := sampleTasks()
	_, err := Filter(in, FilterOptions{ParentRequirementLevels: []RequirementLevel{RequirementMandatory}})
	require.NoError(t, err)
	assert.Len(t, in, 4)
	assert.Equal(t, int64(2), in[1].ID)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-05-03")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-03", d.String())

	for _, bad := range []string{"2024-02-30", "2024-5-3", "May 3", "", "2024/05/03"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" Done ")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, st)

	_, err = ParseStatus("archived")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseRequirementLevels(t *testing.T) {
	levels, err := ParseRequirementLevels("mandatory, OPTIONAL,,")
	require.NoError(t, err)
	assert.Equal(t, []RequirementLevel{RequirementMandatory, RequirementOptional}, levels)

	_, err = ParseRequirementLevels("URGENT")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestChangesApply(t *testing.T) {
	tk := Task{Title: "Field trip", DueDate: datePtr(2024, 5, 3), Status: StatusPending}
	done := StatusDone
	require.NoError(t, Changes{Status: &done, ClearDueDate: true}.Apply(&tk))
	assert.Equal(t, StatusDone, tk.Status)
	assert.Nil(t, tk.DueDate)

	bad := ParentAction("DANCE")
	assert.ErrorIs(t, Changes{ParentAction: &bad}.Apply(&tk), ErrValidation)
}

func TestListQueryResolve(t *testing.T) {
	defaults := FilterOptions{
		DueFrom:                 datePtr(2024, 5, 1),
		IncludeNoDueDate:        true,
		ParentRequirementLevels: []RequirementLevel{RequirementMandatory},
	}

	got := ListQuery{}.Resolve(defaults)
	assert.Equal(t, defaults, got)

	no := false
	got = ListQuery{
		DueTo:            datePtr(2024, 5, 31),
		IncludeNoDueDate: &no,
		Statuses:         []Status{StatusPending},
	}.Resolve(defaults)
	assert.Nil(t, got.DueFrom, "a query bound replaces the whole default window")
	assert.Equal(t, datePtr(2024, 5, 31), got.DueTo)
	assert.False(t, got.IncludeNoDueDate)
	assert.Equal(t, []RequirementLevel{RequirementMandatory}, got.ParentRequirementLevels)
	assert.Equal(t, []Status{StatusPending}, got.Statuses)
}

func TestListQueryResolve_DueWindowIsOneUnit(t *testing.T) {
	// A seven-day preference window starting 2024-09-01.
	defaults := FilterOptions{DueFrom: datePtr(2024, 9, 1), DueTo: datePtr(2024, 9, 8), IncludeNoDueDate: true}
	tasks := []Task{
		{ID: 1, Title: "Picture day", DueDate: datePtr(2024, 9, 5)},
		{ID: 2, Title: "Field trip", DueDate: datePtr(2024, 10, 15)},
	}

	opts := ListQuery{DueFrom: datePtr(2024, 10, 1)}.Resolve(defaults)
	assert.Nil(t, opts.DueTo)
	got, err := Filter(tasks, opts)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(got))

	opts = ListQuery{DueTo: datePtr(2024, 8, 15)}.Resolve(defaults)
	assert.Nil(t, opts.DueFrom)
	_, err = Filter(tasks, opts)
	require.NoError(t, err)

	// Both bounds from the caller can still be inverted.
	_, err = Filter(tasks, ListQuery{DueFrom: datePtr(2024, 10, 1), DueTo: datePtr(2024, 9, 1)}.Resolve(defaults))
	assert.ErrorIs(t, err, ErrInvalidRange)
}
