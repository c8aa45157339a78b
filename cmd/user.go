package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskmail/internal/app"
	"github.com/josephgoksu/taskmail/internal/memory"
	"github.com/josephgoksu/taskmail/internal/task"
	"github.com/josephgoksu/taskmail/internal/ui"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage mailbox owners, their credentials and preferences",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register an owner and print a new API key",
	Long: `Register an owner for the HTTP API. The API key is printed once and only its
bcrypt hash is stored; keep it somewhere safe.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUserApp("user add", func(svc *app.UserApp) error {
			res, err := svc.Add(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printCredential(cmd, res, "Registered")
		})
	},
}

var userRotateCmd = &cobra.Command{
	Use:   "rotate-key <username>",
	Short: "Replace an owner's API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUserApp("user rotate-key", func(svc *app.UserApp) error {
			res, err := svc.RotateKey(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printCredential(cmd, res, "New key for")
		})
	},
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered owners",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withUserApp("user list", func(svc *app.UserApp) error {
			users, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), users)
			}
			rows := make([][]string, len(users))
			for i, u := range users {
				key := "no"
				if u.APIKeyHash != "" {
					key = "yes"
				}
				rows[i] = []string{u.Username, key, formatPreferences(u.Preferences), u.CreatedAt.Format(time.DateOnly)}
			}
			t := &ui.Table{Headers: []string{"USER", "API KEY", "PREFERENCES", "CREATED"}, Rows: rows}
			fmt.Fprint(cmd.OutOrStdout(), t.Render())
			return nil
		})
	},
}

var userPrefsCmd = &cobra.Command{
	Use:   "prefs <username>",
	Short: "Show or change an owner's listing defaults",
	Long: `Without flags, print the owner's preferences. With flags, change the ones
given and keep the rest.

Preferences apply whenever a task listing leaves a filter unset.`,
	Example: `  taskmail user prefs mom --include-no-due-date=false --levels MANDATORY,OPTIONAL --window-days 14`,
	Args:    cobra.ExactArgs(1),
	RunE:    runUserPrefs,
}

var userTokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Issue a bearer token for the JWT auth backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		return withUserApp("user token", func(svc *app.UserApp) error {
			token, err := svc.IssueToken(cmd.Context(), args[0], ttl)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), map[string]string{"user": args[0], "token": token})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd, userRotateCmd, userListCmd, userPrefsCmd, userTokenCmd)

	f := userPrefsCmd.Flags()
	f.Bool("include-no-due-date", true, "list tasks without a due date")
	f.StringSlice("levels", nil, "parent requirement levels to list; empty keeps all")
	f.Int("window-days", 0, "only list tasks due within this many days (0 disables)")

	userTokenCmd.Flags().Duration("ttl", 0, "token lifetime (default 30 days)")
}

func withUserApp(command string, fn func(*app.UserApp) error) error {
	a, err := openApp(command)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(app.NewUserApp(a))
}

func printCredential(cmd *cobra.Command, res *app.UserResult, verb string) error {
	out := cmd.OutOrStdout()
	if isJSON() {
		return printJSON(out, res)
	}
	fmt.Fprintln(out, ui.Success(fmt.Sprintf("%s %s", verb, res.User.Username)))
	fmt.Fprintf(out, "API key: %s\n", res.APIKey)
	fmt.Fprintln(out, ui.StyleSubtle.Render("This key is shown once. Send it as X-API-Key with X-User."))
	return nil
}

func runUserPrefs(cmd *cobra.Command, args []string) error {
	username := args[0]
	f := cmd.Flags()
	changing := f.Changed("include-no-due-date") || f.Changed("levels") || f.Changed("window-days")

	return withUserApp("user prefs", func(svc *app.UserApp) error {
		prefs, err := svc.Preferences(cmd.Context(), username)
		if err != nil {
			return err
		}
		if changing {
			if f.Changed("include-no-due-date") {
				prefs.IncludeNoDueDate, _ = f.GetBool("include-no-due-date")
			}
			if f.Changed("levels") {
				raw, _ := f.GetStringSlice("levels")
				levels, err := task.ParseRequirementLevels(strings.Join(raw, ","))
				if err != nil {
					return err
				}
				prefs.ParentRequirementLevels = levels
			}
			if f.Changed("window-days") {
				prefs.DueWindowDays, _ = f.GetInt("window-days")
			}
			if err := svc.SetPreferences(cmd.Context(), username, prefs); err != nil {
				return err
			}
		}

		if isJSON() {
			return printJSON(cmd.OutOrStdout(), prefs)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", username, formatPreferences(prefs))
		return nil
	})
}

func formatPreferences(p memory.Preferences) string {
	parts := []string{fmt.Sprintf("undated=%t", p.IncludeNoDueDate)}
	if len(p.ParentRequirementLevels) > 0 {
		levels := make([]string, len(p.ParentRequirementLevels))
		for i, l := range p.ParentRequirementLevels {
			levels[i] = string(l)
		}
		parts = append(parts, "levels="+strings.Join(levels, ","))
	}
	if p.DueWindowDays > 0 {
		parts = append(parts, fmt.Sprintf("window=%dd", p.DueWindowDays))
	}
	return strings.Join(parts, " ")
}
