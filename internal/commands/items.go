package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stockbridge/zinv/internal/output"
)

// NewItemsCmd creates the items command group.
func NewItemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"item"},
		Short:   "List and inspect inventory items",
	}
	cmd.AddCommand(newItemsListCmd(), newItemsShowCmd())
	return cmd
}

func newItemsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all items",
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

			items, err := svc.ListItems(cmd.Context())
			if err != nil {
				return err
			}
			return app.OK(items, output.WithSummary(plural(len(items), "item", "items")))
		},
	}
}

func newItemsShowCmd() *cobra.Command {
	var sel itemSelector
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one item with per-warehouse stock",
		Example: `  zinv items show --sku W-1
  zinv items show --name "Oak Desk"
  zinv items show --id 4600000038080`,
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
			return app.OK(item,
				output.WithSummary(fmt.Sprintf("%s (%s): %d available", item.Name, item.SKU, item.AvailableStock)))
		},
	}
	sel.register(cmd)
	return cmd
}
