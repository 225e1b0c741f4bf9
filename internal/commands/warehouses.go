package commands

import (
	"github.com/spf13/cobra"

	"github.com/stockbridge/zinv/internal/inventory"
	"github.com/stockbridge/zinv/internal/output"
)

// NewWarehousesCmd creates the warehouses command group.
func NewWarehousesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "warehouses",
		Aliases: []string{"warehouse", "wh"},
		Short:   "List and inspect warehouses",
	}
	cmd.AddCommand(newWarehousesListCmd(), newWarehousesShowCmd())
	return cmd
}

func newWarehousesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all warehouses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			warehouses, err := svc.ListWarehouses(cmd.Context())
			if err != nil {
				return err
			}
			return app.OK(warehouses, output.WithSummary(plural(len(warehouses), "warehouse", "warehouses")))
		},
	}
}

func newWarehousesShowCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "show [NAME]",
		Short: "Show a warehouse by exact name or --id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case len(args) == 0 && id == "":
				return output.ErrUsage("Warehouse name or --id required")
			case len(args) > 0 && id != "":
				return output.ErrUsage("Use a warehouse name or --id, not both")
			}

			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			var wh *inventory.Warehouse
			if id != "" {
				wh, err = svc.GetWarehouse(cmd.Context(), inventory.ID(id))
			} else {
				wh, err = resolveWarehouse(cmd.Context(), svc, args[0])
			}
			if err != nil {
				return err
			}
			return app.OK(wh, output.WithSummary(wh.WarehouseName))
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Warehouse ID")
	return cmd
}
