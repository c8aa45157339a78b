package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskmail/internal/pipeline"
	"github.com/josephgoksu/taskmail/internal/ui"
)

// ingestOutcome is one file's result in --json output.
type ingestOutcome struct {
	File      string          `json:"file"`
	EmailID   int64           `json:"email_id,omitempty"`
	State     pipeline.State  `json:"state"`
	TaskCount int             `json:"task_count"`
	Reason    pipeline.Reason `json:"reason,omitempty"`
	Error     string          `json:"error,omitempty"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.eml>...",
	Short: "Extract tasks from raw email files",
	Long: `Run each raw RFC 5322 email through the pipeline for --owner.
Use "-" to read one email from stdin.

Every file is attempted; the command fails if any of them failed.`,
	Example: `  taskmail ingest --owner mom field-trip.eml
  cat message.eml | taskmail ingest --owner mom -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	owner, err := requireOwner()
	if err != nil {
		return err
	}
	a, err := openApp("ingest")
	if err != nil {
		return err
	}
	defer a.Close()

	orch, err := a.Pipeline(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	outcomes := make([]ingestOutcome, 0, len(args))
	failed := 0
	for _, path := range args {
		o := ingestOutcome{File: path}
		raw, err := readEmail(cmd, path)
		if err == nil {
			var res pipeline.Result
			res, err = orch.Ingest(cmd.Context(), owner, raw)
			o.EmailID, o.State, o.TaskCount = res.EmailID, res.State, res.TaskCount
		}
		if err != nil {
			failed++
			o.Reason = pipeline.ReasonOf(err)
			o.Error = err.Error()
		}
		outcomes = append(outcomes, o)

		if isJSON() {
			continue
		}
		switch {
		case err != nil:
			fmt.Fprintln(out, ui.Failure(fmt.Sprintf("%s: %s", path, userMessage(err))))
		case !isQuiet():
			fmt.Fprintln(out, ui.Success(fmt.Sprintf("%s: email #%d, %d task(s)", path, o.EmailID, o.TaskCount)))
		}
	}

	if isJSON() {
		if err := printJSON(out, outcomes); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d email(s) failed", failed, len(args))
	}
	return nil
}
