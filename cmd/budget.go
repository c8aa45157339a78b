package cmd

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskmail/internal/app"
	"github.com/josephgoksu/taskmail/internal/ui"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Top up and inspect per-owner model spend",
	Long: `Each model call is charged against the owner's budget when budget.enabled is
true. An owner with nothing left has new emails deferred until the next deposit;
the sweep retries them.`,
}

var budgetDepositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Add funds to an owner's budget",
	Example: `  taskmail budget deposit --owner mom --usd 2.50
  taskmail budget deposit --owner mom   # budget.depositNanoUSD`,
	Args: cobra.NoArgs,
	RunE: runBudgetDeposit,
}

var budgetShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show an owner's balance and lifetime spend",
	Args:  cobra.NoArgs,
	RunE:  runBudgetShow,
}

func init() {
	rootCmd.AddCommand(budgetCmd)
	budgetCmd.AddCommand(budgetDepositCmd, budgetShowCmd)
	budgetDepositCmd.Flags().Float64("usd", 0, "amount in US dollars")
}

func runBudgetDeposit(cmd *cobra.Command, _ []string) error {
	owner, err := requireOwner()
	if err != nil {
		return err
	}
	usd, _ := cmd.Flags().GetFloat64("usd")
	if usd < 0 {
		return fmt.Errorf("--usd must not be negative")
	}
	a, err := openApp("budget deposit")
	if err != nil {
		return err
	}
	defer a.Close()

	balance, err := app.NewBudgetApp(a).Deposit(cmd.Context(), owner, int64(math.Round(usd*1e9)))
	if err != nil {
		return err
	}
	if isJSON() {
		return printJSON(cmd.OutOrStdout(), map[string]any{"owner": owner, "remaining_nano_usd": balance})
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("%s now has %s", owner, formatUSD(balance))))
	if !a.Config.Budget.Enabled && !isQuiet() {
		fmt.Fprintln(cmd.OutOrStdout(), ui.Warning("budget.enabled is false, so the balance is not enforced."))
	}
	return nil
}

func runBudgetShow(cmd *cobra.Command, _ []string) error {
	owner, err := requireOwner()
	if err != nil {
		return err
	}
	a, err := openApp("budget show")
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := app.NewBudgetApp(a).Show(cmd.Context(), owner)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if isJSON() {
		return printJSON(out, report)
	}

	enforced := "not enforced"
	if report.Enabled {
		enforced = "enforced"
	}
	fmt.Fprintln(out, ui.StyleTitle.Render(fmt.Sprintf("Budget for %s (%s)", owner, enforced)))
	t := &ui.Table{
		Headers: []string{"REMAINING", "CALLS", "PROMPT TOKENS", "COMPLETION TOKENS", "SPENT"},
		Rows: [][]string{{
			formatUSD(report.RemainingNanoUSD),
			fmt.Sprint(report.Spend.Calls),
			fmt.Sprint(report.Spend.PromptTokens),
			fmt.Sprint(report.Spend.CompletionTokens),
			formatUSD(report.Spend.TotalNanoUSD()),
		}},
	}
	fmt.Fprint(out, t.Render())
	return nil
}

func formatUSD(nano int64) string {
	return fmt.Sprintf("$%.4f", float64(nano)/1e9)
}
