package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cashflow/internal/backend"
	"cashflow/internal/config"
	"cashflow/internal/core"
	"cashflow/internal/storage"
)

// opener yields the service graph and a cleanup for it.
type opener func(ctx context.Context) (*backend.App, func() error, error)

func newRootCmd(cfg *config.Config, open opener) *cobra.Command {
	root := &cobra.Command{
		Use:          "cashflowctl",
		Short:        "Inspect and maintain the cashflow ledger",
		SilenceUsage: true,
	}
	root.AddCommand(
		newReconcileCmd(open),
		newSummaryCmd(open),
		newMonthlyCmd(open),
		newCapitalCmd(open),
		newMigrateCmd(cfg),
	)
	return root
}

func withApp(cmd *cobra.Command, open opener, fn func(*backend.App) error) error {
	app, cleanup, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(app)
}

func money(cents int64) string {
	return core.Money{Cents: cents}.Decimal().StringFixed(2)
}

func newReconcileCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Materialize every due occurrence of the active recurring rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(app *backend.App) error {
				n, err := app.Processor.ReconcileAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Materialized %d occurrences\n", n)
				return nil
			})
		},
	}
}

func newSummaryCmd(open opener) *cobra.Command {
	var disabled bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize the recurring rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter *bool
			if cmd.Flags().Changed("disabled") {
				filter = &disabled
			}
			return withApp(cmd, open, func(app *backend.App) error {
				sum, err := app.Reports.ScheduledSummary(cmd.Context(), filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Rules:    %d\n", sum.TotalCount)
				fmt.Fprintf(out, "Income:   %s\n", sum.TotalIncome.Decimal().StringFixed(2))
				fmt.Fprintf(out, "Expenses: %s\n", sum.TotalExpense.Decimal().StringFixed(2))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&disabled, "disabled", false, "only count rules with this disabled state")
	return cmd
}

func newMonthlyCmd(open opener) *cobra.Command {
	var year, month int
	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Print income and expense totals per month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var m *int
			if month != 0 {
				m = &month
			}
			return withApp(cmd, open, func(app *backend.App) error {
				if !cmd.Flags().Changed("year") {
					year = app.Reports.Today().Year()
				}
				totals, err := app.Reports.MonthlyTotals(cmd.Context(), year, m)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
				fmt.Fprintln(w, "MONTH\tINCOME\tEXPENSE\tNET\t")
				for _, t := range totals {
					fmt.Fprintf(w, "%04d-%02d\t%s\t%s\t%s\t\n", t.Year, t.Month,
						money(t.Income.Cents), money(t.Expense.Cents), money(t.Net()))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "calendar year, defaults to the current one")
	cmd.Flags().IntVar(&month, "month", 0, "single month 1-12, 0 for the whole year")
	return cmd
}

func newCapitalCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "capital",
		Short: "Print the capital left after this month's obligations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(app *backend.App) error {
				rep, err := app.Reports.AvailableCapital(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "As of:      %s\n", rep.AsOf)
				fmt.Fprintf(out, "Balance:    %s\n", money(rep.Balance))
				fmt.Fprintf(out, "Due:        %s\n", money(rep.DueObligations))
				fmt.Fprintf(out, "Available:  %s\n", money(rep.AvailableCapital))
				return nil
			})
		},
	}
}

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				dialect storage.Dialect
				dsn     string
			)
			switch cfg.DataBackend {
			case string(backend.SQLiteBackend):
				dialect, dsn = storage.SQLite, cfg.SQLiteDBPath
				if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
					return fmt.Errorf("create db directory: %w", err)
				}
			case string(backend.PostgresBackend):
				dialect, dsn = storage.Postgres, cfg.DatabaseURL
			default:
				return fmt.Errorf("migrate needs a sqlite or postgres backend, got %q", cfg.DataBackend)
			}
			if err := storage.RunMigrations(dialect, dsn); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s)\n", dialect)
			return nil
		},
	}
}
