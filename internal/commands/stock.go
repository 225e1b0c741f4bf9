package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stockbridge/zinv/internal/inventory"
	"github.com/stockbridge/zinv/internal/output"
)

// NewStockCmd creates the stock command group.
func NewStockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Read and reconcile stock levels",
		Long: `Read and reconcile stock levels.

"stock set" takes an absolute quantity and submits only the difference as an
inventory adjustment. When the item already holds that quantity nothing is
submitted.`,
	}
	cmd.AddCommand(
		newStockGetCmd(),
		newStockSetCmd(),
		newStockAdjustCmd(),
		newStockPutCmd(),
	)
	return cmd
}

type stockLevel struct {
	ItemID        inventory.ID `json:"item_id"`
	Name          string       `json:"name"`
	SKU           string       `json:"sku"`
	WarehouseID   inventory.ID `json:"warehouse_id,omitempty"`
	WarehouseName string       `json:"warehouse_name,omitempty"`
	Quantity      int64        `json:"quantity"`
}

func newStockGetCmd() *cobra.Command {
	var sel itemSelector
	var warehouse string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show available stock for an item",
		Example: `  zinv stock get --sku W-1
  zinv stock get --sku W-1 --warehouse "Spain Warehouse"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			item, err := sel.resolve(cmd.Context(), svc)
			if err != nil {
				return err
			}
			level := stockLevel{ItemID: item.ItemID, Name: item.Name, SKU: item.SKU}
			if warehouse != "" {
				wh, err := resolveWarehouse(cmd.Context(), svc, warehouse)
				if err != nil {
					return err
				}
				level.WarehouseID = wh.WarehouseID
				level.WarehouseName = wh.WarehouseName
			}
			level.Quantity = item.QuantityAt(level.WarehouseID)

			where := "overall"
			if level.WarehouseName != "" {
				where = "at " + level.WarehouseName
			}
			return app.OK(level, output.WithSummary(fmt.Sprintf("%s: %d available %s", sel.String(), level.Quantity, where)))
		},
	}
	sel.register(cmd)
	cmd.Flags().StringVar(&warehouse, "warehouse", "", "Warehouse name (exact match)")
	return cmd
}

func newStockSetCmd() *cobra.Command {
	var sel itemSelector
	var warehouse, reason string
	cmd := &cobra.Command{
		Use:   "set QTY",
		Short: "Reconcile an item to an absolute quantity",
		Example: `  zinv stock set 40 --sku W-1
  zinv stock set 12 --name "Oak Desk" --warehouse "Final Step Logistics" --reason "cycle count"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseQuantity(args[0], "Quantity")
			if err != nil {
				return err
			}

			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var res *inventory.AdjustmentResult
			switch {
			case sel.sku != "":
				res, err = svc.OverrideBySKU(ctx, sel.sku, target, warehouse, reason)
			case sel.name != "":
				res, err = svc.OverrideByName(ctx, sel.name, target, warehouse, reason)
			default:
				opts := inventory.OverrideOptions{Reason: reason}
				if warehouse != "" {
					wh, werr := resolveWarehouse(ctx, svc, warehouse)
					if werr != nil {
						return werr
					}
					opts.WarehouseID = wh.WarehouseID
				}
				res, err = svc.OverrideTo(ctx, inventory.ID(sel.id), target, opts)
			}
			if err != nil {
				return err
			}
			return app.OK(res, output.WithSummary(adjustmentSummary(sel.String(), res)))
		},
	}
	sel.register(cmd)
	cmd.Flags().StringVar(&warehouse, "warehouse", "", "Warehouse name (exact match)")
	cmd.Flags().StringVar(&reason, "reason", "", "Adjustment reason (default \""+inventory.DefaultReason+"\")")
	return cmd
}

func adjustmentSummary(key string, res *inventory.AdjustmentResult) string {
	if res.NoOp {
		return fmt.Sprintf("%s unchanged at %d", key, res.CurrentQuantity)
	}
	return fmt.Sprintf("%s adjusted by %+d (%d to %d)", key, res.Delta, res.CurrentQuantity, res.TargetQuantity)
}

func newStockAdjustCmd() *cobra.Command {
	var id, warehouseID, reason string
	cmd := &cobra.Command{
		Use:   "adjust DELTA",
		Short: "Submit a raw signed adjustment",
		Long: `Submit a raw signed adjustment for an item.

Negative deltas must follow -- so they are not read as flags.`,
		Example: `  zinv stock adjust 5 --id 4600000038080
  zinv stock adjust --id 4600000038080 --warehouse-id 4600000000123 -- -3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := parseQuantity(args[0], "Delta")
			if err != nil {
				return err
			}

			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			adj, err := svc.Adjust(cmd.Context(), inventory.ID(id), delta, inventory.ID(warehouseID), reason)
			if err != nil {
				return err
			}
			return app.OK(adj, output.WithSummary(fmt.Sprintf("Adjusted item %s by %+d", id, delta)))
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Item ID")
	cmd.Flags().StringVar(&warehouseID, "warehouse-id", "", "Warehouse ID")
	cmd.Flags().StringVar(&reason, "reason", "", "Adjustment reason")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newStockPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "put NAME QTY",
		Short:  "Write stock_on_hand directly (legacy)",
		Long:   "Write stock_on_hand directly on an item. Superseded by \"stock set\"; kept for accounts without adjustment access.",
		Hidden: true,
		Args:   cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseQuantity(args[1], "Quantity")
			if err != nil {
				return err
			}

			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			item, err := svc.SetStockOnHand(cmd.Context(), args[0], qty)
			if err != nil {
				return err
			}
			return app.OK(item, output.WithSummary(fmt.Sprintf("%s stock on hand set to %d", item.Name, qty)))
		},
	}
}
