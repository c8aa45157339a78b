package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskmail/internal/logger"
	"github.com/josephgoksu/taskmail/internal/ui"
)

var crashesCmd = &cobra.Command{
	Use:   "crashes",
	Short: "List saved crash reports",
	Long:  `taskmail saves a report under <data dir>/crash_logs whenever it panics. The newest ten are kept.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		logs, err := logger.ListCrashLogs()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if isJSON() {
			return printJSON(out, logs)
		}
		if len(logs) == 0 {
			fmt.Fprintln(out, ui.StyleSubtle.Render("No crash reports."))
			return nil
		}
		rows := make([][]string, len(logs))
		for i, l := range logs {
			rows[i] = []string{l.Timestamp.Local().Format(time.DateTime), l.Version, l.Command, ui.Truncate(l.Panic, 60), l.Path}
		}
		t := &ui.Table{Headers: []string{"WHEN", "VERSION", "COMMAND", "PANIC", "FILE"}, Rows: rows, MaxWidth: ui.ColumnLimit(out)}
		fmt.Fprint(out, t.Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(crashesCmd)
}
