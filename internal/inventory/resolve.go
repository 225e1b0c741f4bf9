package inventory

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/stockbridge/zinv/internal/output"
)

const (
	pageSize = 200
	maxPages = 50
)

type pageContext struct {
	Page        int  `json:"page"`
	HasMorePage bool `json:"has_more_page"`
}

type itemsEnvelope struct {
	Items       []Item       `json:"items"`
	PageContext *pageContext `json:"page_context,omitempty"`
}

type itemEnvelope struct {
	Item *Item `json:"item"`
}

type warehousesEnvelope struct {
	Warehouses []Warehouse `json:"warehouses"`
}

type warehouseEnvelope struct {
	Warehouse *Warehouse `json:"warehouse"`
}

// ListItems returns every item, following page_context until the last page.
func (s *Service) ListItems(ctx context.Context) ([]Item, error) {
	var all []Item
	for page := 1; page <= maxPages; page++ {
		env, err := s.searchItems(ctx, url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(pageSize)},
		})
		if err != nil {
			return nil, err
		}
		all = append(all, env.Items...)
		if env.PageContext == nil || !env.PageContext.HasMorePage {
			return all, nil
		}
	}
	s.log.Warn("item listing truncated", zap.Int("pages", maxPages), zap.Int("items", len(all)))
	return all, nil
}

// FindItemByName returns the first item whose name equals name exactly, or
// nil when none does.
func (s *Service) FindItemByName(ctx context.Context, name string) (*Item, error) {
	if name == "" {
		return nil, output.ErrUsage("Item name cannot be empty")
	}
	env, err := s.searchItems(ctx, url.Values{"name": {name}})
	if err != nil {
		return nil, err
	}
	for i := range env.Items {
		if env.Items[i].Name == name {
			s.log.Debug("resolved item by name", zap.String("name", name), zap.String("item_id", string(env.Items[i].ItemID)))
			return &env.Items[i], nil
		}
	}
	return nil, nil
}

// FindItemBySKU returns the first item whose SKU equals sku exactly, or nil
// when none does.
func (s *Service) FindItemBySKU(ctx context.Context, sku string) (*Item, error) {
	if sku == "" {
		return nil, output.ErrUsage("Item SKU cannot be empty")
	}
	env, err := s.searchItems(ctx, url.Values{"sku": {sku}})
	if err != nil {
		return nil, err
	}
	for i := range env.Items {
		if env.Items[i].SKU == sku {
			s.log.Debug("resolved item by sku", zap.String("sku", sku), zap.String("item_id", string(env.Items[i].ItemID)))
			return &env.Items[i], nil
		}
	}
	return nil, nil
}

// GetItem reads one item including its per-warehouse stock.
func (s *Service) GetItem(ctx context.Context, id ID) (*Item, error) {
	if id == "" {
		return nil, output.ErrUsage("Item ID cannot be empty")
	}
	resp, err := s.api.Get(ctx, itemPath(id), nil)
	if err != nil {
		return nil, err
	}
	var env itemEnvelope
	if err := resp.UnmarshalData(&env); err != nil {
		return nil, err
	}
	if env.Item == nil {
		return nil, output.ErrNotFound("Item", string(id))
	}
	return env.Item, nil
}

// ListWarehouses returns all warehouses.
func (s *Service) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	resp, err := s.api.Get(ctx, "warehouses", nil)
	if err != nil {
		return nil, err
	}
	var env warehousesEnvelope
	if err := resp.UnmarshalData(&env); err != nil {
		return nil, err
	}
	return env.Warehouses, nil
}

// GetWarehouse reads one warehouse.
func (s *Service) GetWarehouse(ctx context.Context, id ID) (*Warehouse, error) {
	if id == "" {
		return nil, output.ErrUsage("Warehouse ID cannot be empty")
	}
	resp, err := s.api.Get(ctx, warehousePath(id), nil)
	if err != nil {
		return nil, err
	}
	var env warehouseEnvelope
	if err := resp.UnmarshalData(&env); err != nil {
		return nil, err
	}
	if env.Warehouse == nil {
		return nil, output.ErrNotFound("Warehouse", string(id))
	}
	return env.Warehouse, nil
}

// FindWarehouseByName returns the first warehouse whose name equals name
// exactly, or nil when none does.
func (s *Service) FindWarehouseByName(ctx context.Context, name string) (*Warehouse, error) {
	if name == "" {
		return nil, output.ErrUsage("Warehouse name cannot be empty")
	}
	warehouses, err := s.ListWarehouses(ctx)
	if err != nil {
		return nil, err
	}
	for i := range warehouses {
		if warehouses[i].WarehouseName == name {
			return &warehouses[i], nil
		}
	}
	return nil, nil
}

func (s *Service) searchItems(ctx context.Context, query url.Values) (*itemsEnvelope, error) {
	resp, err := s.api.Get(ctx, "items", query)
	if err != nil {
		return nil, err
	}
	var env itemsEnvelope
	if err := resp.UnmarshalData(&env); err != nil {
		return nil, err
	}
	return &env, nil
}
