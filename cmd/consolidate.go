package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskmail/internal/ui"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge duplicate tasks with one model call",
	Long: `Ask the model to merge an owner's task list, the same job the server's
hourly sweep runs. With --all, run one full sweep instead: retry deferred
emails, then consolidate every owner.`,
	Args: cobra.NoArgs,
	RunE: runConsolidate,
}

func init() {
	rootCmd.AddCommand(consolidateCmd)
	consolidateCmd.Flags().Bool("all", false, "sweep every owner")
}

func runConsolidate(cmd *cobra.Command, _ []string) error {
	all, _ := cmd.Flags().GetBool("all")
	owner := ""
	if !all {
		var err error
		if owner, err = requireOwner(); err != nil {
			return err
		}
	}

	a, err := openApp("consolidate")
	if err != nil {
		return err
	}
	defer a.Close()

	orch, err := a.Pipeline(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if all {
		report, err := a.Sweeper(orch).RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(out, report)
		}
		if report.Skipped {
			fmt.Fprintln(out, ui.Warning("Another process is sweeping; nothing done."))
			return nil
		}
		fmt.Fprintln(out, ui.Success(fmt.Sprintf("Sweep %s: %d reprocessed, %d deferred, %d consolidated, %d failed (%s)",
			report.RunID[:8], report.Reprocessed, report.Deferred, report.Consolidated, report.Failed, report.Duration.Round(time.Millisecond))))
		return nil
	}

	res, err := orch.Consolidate(cmd.Context(), owner)
	if err != nil {
		return err
	}
	if isJSON() {
		return printJSON(out, res)
	}
	fmt.Fprintln(out, ui.Success(fmt.Sprintf("%s now has %d task(s)", owner, res.TaskCount)))
	return nil
}
