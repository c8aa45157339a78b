package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/josephgoksu/taskmail/internal/app"
	"github.com/josephgoksu/taskmail/internal/task"
	"github.com/josephgoksu/taskmail/internal/ui"
)

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"task", "t"},
	Short:   "List and manage an owner's tasks",
}

var tasksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks, filtered by the owner's preferences unless overridden",
	Example: `  taskmail tasks list --owner mom
  taskmail tasks list --owner mom --due-from 2024-09-01 --due-to 2024-09-30 --level MANDATORY
  taskmail tasks list --owner mom --include-no-due-date=false --status pending`,
	Args: cobra.NoArgs,
	RunE: runTasksList,
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show every field of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksShow,
}

var tasksDoneCmd = &cobra.Command{
	Use:   "done <id>...",
	Short: "Mark tasks as done",
	Args:  cobra.MinimumNArgs(1),
	RunE:  statusSetter(task.StatusDone),
}

var tasksSnoozeCmd = &cobra.Command{
	Use:   "snooze <id>...",
	Short: "Snooze tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  statusSetter(task.StatusSnoozed),
}

var tasksReopenCmd = &cobra.Command{
	Use:   "reopen <id>...",
	Short: "Set tasks back to pending",
	Args:  cobra.MinimumNArgs(1),
	RunE:  statusSetter(task.StatusPending),
}

var tasksUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Edit a task's fields",
	Long: `Edit a task. Only the flags you pass are changed.
Pass --due "" to remove a due date.`,
	Example: `  taskmail tasks update 12 --owner mom --due 2024-10-04 --parent-level MANDATORY`,
	Args:    cobra.ExactArgs(1),
	RunE:    runTasksUpdate,
}

var tasksClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all of an owner's tasks",
	Args:  cobra.NoArgs,
	RunE:  runTasksClear,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksListCmd, tasksShowCmd, tasksDoneCmd, tasksSnoozeCmd, tasksReopenCmd, tasksUpdateCmd, tasksClearCmd)

	addListFlags(tasksListCmd.Flags())
	addUpdateFlags(tasksUpdateCmd.Flags())

	tasksClearCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
}

func addListFlags(f *pflag.FlagSet) {
	f.String("due-from", "", "earliest due date, YYYY-MM-DD")
	f.String("due-to", "", "latest due date, YYYY-MM-DD")
	f.Bool("include-no-due-date", true, "keep tasks without a due date")
	f.StringSlice("level", nil, "parent requirement levels to keep (NONE, OPTIONAL, VOLUNTEER_OPPORTUNITY, MANDATORY)")
	f.StringSlice("status", nil, "statuses to keep (pending, done, snoozed)")
}

func addUpdateFlags(u *pflag.FlagSet) {
	u.String("title", "", "new title")
	u.String("description", "", "new description")
	u.String("due", "", "due date YYYY-MM-DD, empty to clear")
	u.String("consequence", "", "what happens if the task is ignored")
	u.String("parent-action", "", "parent action (SIGN, PAY, ATTEND, ...)")
	u.String("parent-level", "", "parent requirement level")
	u.String("student-action", "", "student action (BRING, WEAR, SUBMIT, ...)")
	u.String("student-level", "", "student requirement level")
	u.String("status", "", "pending, done or snoozed")
}

// listQuery turns the list flags into a query. Flags the user did not pass
// stay nil so the owner's preferences apply.
func listQuery(cmd *cobra.Command) (task.ListQuery, error) {
	var q task.ListQuery
	f := cmd.Flags()

	if v, _ := f.GetString("due-from"); v != "" {
		d, err := task.ParseDate(v)
		if err != nil {
			return q, err
		}
		q.DueFrom = &d
	}
	if v, _ := f.GetString("due-to"); v != "" {
		d, err := task.ParseDate(v)
		if err != nil {
			return q, err
		}
		q.DueTo = &d
	}
	if f.Changed("include-no-due-date") {
		v, _ := f.GetBool("include-no-due-date")
		q.IncludeNoDueDate = &v
	}
	levels, _ := f.GetStringSlice("level")
	for _, l := range levels {
		parsed, err := task.ParseRequirementLevels(l)
		if err != nil {
			return q, err
		}
		q.ParentRequirementLevels = append(q.ParentRequirementLevels, parsed...)
	}
	statuses, _ := f.GetStringSlice("status")
	for _, s := range statuses {
		st, err := task.ParseStatus(s)
		if err != nil {
			return q, err
		}
		q.Statuses = append(q.Statuses, st)
	}
	return q, nil
}

func runTasksList(cmd *cobra.Command, _ []string) error {
	owner, err := requireOwner()
	if err != nil {
		return err
	}
	q, err := listQuery(cmd)
	if err != nil {
		return err
	}
	a, err := openApp("tasks list")
	if err != nil {
		return err
	}
	defer a.Close()

	tasks, err := app.NewTaskApp(a).List(cmd.Context(), owner, q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if isJSON() {
		return printJSON(out, tasks)
	}
	if len(tasks) == 0 {
		if !isQuiet() {
			fmt.Fprintln(out, ui.StyleSubtle.Render("No tasks match."))
		}
		return nil
	}
	fmt.Fprint(out, ui.TaskTable(tasks, ui.ColumnLimit(out)).Render())
	if !isQuiet() {
		fmt.Fprintln(out, ui.StyleSubtle.Render(fmt.Sprintf("\n%d task(s) for %s", len(tasks), owner)))
	}
	return nil
}

func runTasksShow(cmd *cobra.Command, args []string) error {
	owner, err := requireOwner()
	if err != nil {
		return err
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	a, err := openApp("tasks show")
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := app.NewTaskApp(a).Get(cmd.Context(), owner, ids[0])
	if err != nil {
		return fmt.Errorf("task %d: %w", ids[0], err)
	}
	if isJSON() {
		return printJSON(cmd.OutOrStdout(), t)
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.TaskDetail(t))
	return nil
}

func statusSetter(status task.Status) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		a, err := openApp("tasks " + string(status))
		if err != nil {
			return err
		}
		defer a.Close()

		svc := app.NewTaskApp(a)
		updated := make([]task.Task, 0, len(ids))
		for _, id := range ids {
			t, err := svc.SetStatus(cmd.Context(), owner, id, status)
			if err != nil {
				return fmt.Errorf("task %d: %w", id, err)
			}
			updated = append(updated, t)
			if !isJSON() && !isQuiet() {
				fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("#%d %s → %s", t.ID, t.Title, t.Status)))
			}
		}
		if isJSON() {
			return printJSON(cmd.OutOrStdout(), updated)
		}
		return nil
	}
}

// updateChanges collects the update flags the user actually passed.
func updateChanges(cmd *cobra.Command) (task.Changes, error) {
	var c task.Changes
	f := cmd.Flags()
	str := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetString(name)
		return &v
	}

	c.Title = str("title")
	c.Description = str("description")
	c.ConsequenceIfIgnore = str("consequence")
	if v := str("due"); v != nil {
		if strings.TrimSpace(*v) == "" {
			c.ClearDueDate = true
		} else {
			d, err := task.ParseDate(*v)
			if err != nil {
				return c, err
			}
			c.DueDate = &d
		}
	}
	if v := str("parent-action"); v != nil {
		pa := task.ParentAction(strings.ToUpper(*v))
		c.ParentAction = &pa
	}
	if v := str("student-action"); v != nil {
		sa := task.StudentAction(strings.ToUpper(*v))
		c.StudentAction = &sa
	}
	if v := str("parent-level"); v != nil {
		l := task.RequirementLevel(strings.ToUpper(*v))
		c.ParentRequirementLevel = &l
	}
	if v := str("student-level"); v != nil {
		l := task.RequirementLevel(strings.ToUpper(*v))
		c.StudentRequirementLevel = &l
	}
	if v := str("status"); v != nil {
		st, err := task.ParseStatus(*v)
		if err != nil {
			return c, err
		}
		c.Status = &st
	}
	return c, nil
}

func runTasksUpdate(cmd *cobra.Command, args []string) error {
	owner, err := requireOwner()
	if err != nil {
		return err
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	changes, err := updateChanges(cmd)
	if err != nil {
		return err
	}
	a, err := openApp("tasks update")
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := app.NewTaskApp(a).Update(cmd.Context(), owner, ids[0], changes)
	if err != nil {
		return fmt.Errorf("task %d: %w", ids[0], err)
	}
	if isJSON() {
		return printJSON(cmd.OutOrStdout(), t)
	}
	if !isQuiet() {
		fmt.Fprint(cmd.OutOrStdout(), ui.TaskDetail(t))
	}
	return nil
}

func runTasksClear(cmd *cobra.Command, _ []string) error {
	owner, err := requireOwner()
	if err != nil {
		return err
	}
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && !confirmOrAbort(cmd, fmt.Sprintf("Delete every task for %s? [y/N] ", owner)) {
		return nil
	}
	a, err := openApp("tasks clear")
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := app.NewTaskApp(a).Clear(cmd.Context(), owner)
	if err != nil {
		return err
	}
	if isJSON() {
		return printJSON(cmd.OutOrStdout(), map[string]int64{"deleted": n})
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Deleted %d task(s) for %s", n, owner)))
	return nil
}
