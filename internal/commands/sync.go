package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stockbridge/zinv/internal/output"
	"github.com/stockbridge/zinv/internal/sheetsync"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	var sheetID, baseURL, mappingFile string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile stock against the stock spreadsheet",
		Long: `Reconcile stock against the stock spreadsheet.

Rows are summed per SKU and warehouse (QTY + ADJ), sheet locations are
translated to warehouse names, and each total is applied as an absolute
target. A target that fails is reported and the run continues.

Location names map to warehouses through a built-in table. Extend or
override it with a YAML file:

  warehouses:
    "STOCK IN WAREHOUSE - DE": Berlin Warehouse`,
		Example: `  zinv sync --dry-run
  zinv sync --sheet-id 1AbC --mapping warehouses.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			cfg := app.Config

			if sheetID == "" {
				sheetID = cfg.SyncSheetID
			}
			if baseURL == "" {
				baseURL = cfg.SyncBaseURL
			}
			source, err := sheetsync.NewSource(baseURL, sheetID, app.HTTPClient())
			if err != nil {
				return err
			}

			mapping := sheetsync.DefaultMapping()
			if mappingFile == "" {
				mappingFile = cfg.WarehouseMappingFile
			}
			if mappingFile != "" {
				if mapping, err = sheetsync.LoadMapping(mappingFile); err != nil {
					return err
				}
			}

			var rec sheetsync.Reconciler
			if !dryRun {
				svc, err := app.Service(cmd.Context())
				if err != nil {
					return err
				}
				rec = svc
			}

			runner := sheetsync.NewRunner(source, rec,
				sheetsync.WithMapping(mapping),
				sheetsync.WithLogger(app.Logger.Named("sync")))
			report, err := runner.Run(cmd.Context(), dryRun)
			if err != nil {
				return err
			}

			return app.OK(report,
				output.WithSummary(syncSummary(report)),
				output.WithMeta("run_id", report.RunID))
		},
	}

	cmd.Flags().StringVar(&sheetID, "sheet-id", "", "Spreadsheet ID (INVENTORY_SHEET_ID)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Sheets service base URL (INVENTORY_API_BASE_URL)")
	cmd.Flags().StringVar(&mappingFile, "mapping", "", "YAML file of location to warehouse names")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show targets without submitting adjustments")

	return cmd
}

func syncSummary(r *sheetsync.Report) string {
	if r.DryRun {
		return fmt.Sprintf("Dry run: %s from %s", plural(r.Targets, "target", "targets"), plural(r.Rows, "row", "rows"))
	}
	s := fmt.Sprintf("%d adjusted, %d unchanged, %d failed", r.Adjusted, r.NoOp, r.Failed)
	if len(r.Skipped) > 0 {
		s += fmt.Sprintf(", %s skipped", plural(len(r.Skipped), "row", "rows"))
	}
	return s
}
