package commands

import (
	"github.com/spf13/cobra"

	"github.com/stockbridge/zinv/internal/journal"
	"github.com/stockbridge/zinv/internal/output"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled stock reconciliations",
		Long: `Show stock reconciliations recorded in the local journal, newest first.

Every "stock set" and "sync" outcome is journaled, including no-ops.`,
		Example: `  zinv history --limit 10
  zinv history --run 6f1c2a9e-4b7d-4e0f-9a51-2d3c8b7e1f00`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return output.ErrUsage("--limit must not be negative")
			}

			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			j, err := app.Journal()
			if err != nil {
				return err
			}

			var entries []journal.Entry
			if runID != "" {
				entries, err = j.ListRun(cmd.Context(), runID)
			} else {
				entries, err = j.List(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			return app.OK(entries, output.WithSummary(plural(len(entries), "entry", "entries")))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", journal.DefaultLimit, "Maximum entries to show")
	cmd.Flags().StringVar(&runID, "run", "", "Only entries from this sync run")

	return cmd
}
