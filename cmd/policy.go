package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskmail/internal/policy"
	"github.com/josephgoksu/taskmail/internal/ui"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the Rego intake policies",
	Long: `Intake policies are .rego files in package taskmail.intake under policy.dir
(default <data dir>/policies). A "deny" rule rejects an email before any model
call; "warn" rules are logged. Input fields: owner, message_id, from, to,
subject, sent_at.`,
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate [file.rego|dir]...",
	Short: "Check policies for syntax errors",
	Long:  `Validate the given files, or every policy under policy.dir when none are given.`,
	RunE:  runPolicyValidate,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyValidateCmd)
}

func runPolicyValidate(cmd *cobra.Command, args []string) error {
	var files []*policy.PolicyFile
	if len(args) == 0 {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		files, err = policy.NewLoader(appFs, cfg.PoliciesDir()).LoadAll()
		if err != nil {
			return err
		}
		if len(files) == 0 && !isJSON() {
			fmt.Fprintln(cmd.OutOrStdout(), ui.StyleSubtle.Render("No policies in "+cfg.PoliciesDir()))
			return nil
		}
	} else {
		var err error
		files, err = policy.NewLoader(appFs, "").LoadPaths(args...)
		if err != nil {
			return err
		}
	}

	type result struct {
		Name  string `json:"name"`
		Valid bool   `json:"valid"`
		Error string `json:"error,omitempty"`
	}
	results := make([]result, 0, len(files))
	invalid := 0
	for _, f := range files {
		r := result{Name: f.Name, Valid: true}
		if err := policy.ValidatePolicy(f.Content); err != nil {
			r.Valid, r.Error = false, err.Error()
			invalid++
		}
		results = append(results, r)
		if isJSON() {
			continue
		}
		if r.Valid {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Success(r.Name))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Failure(r.Name+": "+r.Error))
		}
	}
	if isJSON() {
		if err := printJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d invalid policy file(s)", invalid)
	}
	return nil
}
