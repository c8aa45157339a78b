package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskmail/internal/ui"
	"github.com/josephgoksu/taskmail/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest .eml files dropped into a directory",
	Long: `Watch a directory for .eml files and ingest each one for the owner.
Files already in the directory are picked up at start. Ingested files move to
processed/, files that fail move to failed/.

The directory and owner default to watch.dir and watch.owner.`,
	Example: `  taskmail watch ~/Mail/school --owner mom`,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp("watch")
	if err != nil {
		return err
	}
	defer a.Close()

	dir := a.Config.Watch.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no directory given: pass one or set watch.dir")
	}
	owner, err := ownerOrDefault(a.Config.Watch.Owner)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := a.Pipeline(ctx)
	if err != nil {
		return err
	}
	w, err := watch.New(watch.Config{
		Dir:         dir,
		Owner:       owner,
		SettleDelay: a.Config.Watch.SettleDelay,
	}, orch, a.Logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w.OnOutcome(func(o watch.Outcome) {
		name := filepath.Base(o.Path)
		switch {
		case isJSON():
			_ = printJSON(out, map[string]any{
				"file": o.Path, "moved_to": o.MovedTo, "task_count": o.TaskCount, "error": errString(o.Err),
			})
		case o.Err != nil:
			fmt.Fprintln(out, ui.Failure(fmt.Sprintf("%s: %s", name, userMessage(o.Err))))
		case !isQuiet():
			fmt.Fprintln(out, ui.Success(fmt.Sprintf("%s: %d task(s)", name, o.TaskCount)))
		}
	})

	if !isQuiet() && !isJSON() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for %s (Ctrl+C to stop)\n", dir, owner)
	}
	return w.Run(ctx)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
