// Package commands implements the CLI commands.
package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stockbridge/zinv/internal/appctx"
	"github.com/stockbridge/zinv/internal/inventory"
	"github.com/stockbridge/zinv/internal/output"
)

func appFrom(cmd *cobra.Command) (*appctx.App, error) {
	app := appctx.FromContext(cmd.Context())
	if app == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	return app, nil
}

// itemSelector identifies an item by exactly one of name, SKU or ID.
type itemSelector struct {
	name string
	sku  string
	id   string
}

func (s *itemSelector) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.name, "name", "", "Item name (exact match)")
	cmd.Flags().StringVar(&s.sku, "sku", "", "Item SKU (exact match)")
	cmd.Flags().StringVar(&s.id, "id", "", "Item ID")
	cmd.MarkFlagsMutuallyExclusive("name", "sku", "id")
	cmd.MarkFlagsOneRequired("name", "sku", "id")
}

func (s *itemSelector) String() string {
	switch {
	case s.sku != "":
		return s.sku
	case s.name != "":
		return s.name
	default:
		return s.id
	}
}

// resolve returns the full item, including its warehouse breakdown.
func (s *itemSelector) resolve(ctx context.Context, svc *inventory.Service) (*inventory.Item, error) {
	if s.id != "" {
		return svc.GetItem(ctx, inventory.ID(s.id))
	}

	var (
		found *inventory.Item
		err   error
	)
	if s.sku != "" {
		found, err = svc.FindItemBySKU(ctx, s.sku)
		if err == nil && found == nil {
			err = output.ErrNotFoundHint("Item with SKU", s.sku, "List items with: zinv items list")
		}
	} else {
		found, err = svc.FindItemByName(ctx, s.name)
		if err == nil && found == nil {
			err = output.ErrNotFoundHint("Item", s.name, "List items with: zinv items list")
		}
	}
	if err != nil {
		return nil, err
	}
	return svc.GetItem(ctx, found.ItemID)
}

func resolveWarehouse(ctx context.Context, svc *inventory.Service, name string) (*inventory.Warehouse, error) {
	wh, err := svc.FindWarehouseByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if wh == nil {
		return nil, output.ErrNotFoundHint("Warehouse", name, "List warehouses with: zinv warehouses list")
	}
	return wh, nil
}

func parseQuantity(arg, what string) (int64, error) {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, output.ErrUsage(fmt.Sprintf("%s must be a whole number, got %q", what, arg))
	}
	return n, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
