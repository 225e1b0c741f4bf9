package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ID is an upstream identifier. Zoho sends ids as strings, but some
// endpoints return them as bare numbers; both decode to the same value.
type ID string

// UnmarshalJSON accepts a JSON string, number, or null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("invalid id %s: %w", b, err)
		}
		*id = ID(n.String())
	}
	return nil
}

// Quantity is a stock count. Upstream values may be numbers, numeric
// strings, fractional, or null; they decode truncated toward zero with
// null and "" reading as 0.
type Quantity int64

// UnmarshalJSON implements the coercion rules above.
func (q *Quantity) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*q = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*q = 0
			return nil
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid quantity %s: %w", b, err)
	}
	*q = Quantity(d.IntPart())
	return nil
}

// Item is an inventory item. The per-warehouse breakdown is only present on
// single-item reads.
type Item struct {
	ItemID         ID               `json:"item_id"`
	Name           string           `json:"name"`
	SKU            string           `json:"sku"`
	Status         string           `json:"status,omitempty"`
	Unit           string           `json:"unit,omitempty"`
	AvailableStock Quantity         `json:"available_stock"`
	StockOnHand    Quantity         `json:"stock_on_hand"`
	Warehouses     []WarehouseStock `json:"warehouses,omitempty"`
}

// WarehouseStock is one warehouse's share of an item's stock.
type WarehouseStock struct {
	WarehouseID    ID       `json:"warehouse_id"`
	WarehouseName  string   `json:"warehouse_name"`
	AvailableStock Quantity `json:"warehouse_available_stock"`
	StockOnHand    Quantity `json:"warehouse_stock_on_hand"`
}

// QuantityAt returns the available stock at warehouseID, or the item's
// overall available stock when warehouseID is empty. A warehouse missing
// from the breakdown holds zero.
func (i Item) QuantityAt(warehouseID ID) int64 {
	if warehouseID == "" {
		return int64(i.AvailableStock)
	}
	for _, w := range i.Warehouses {
		if w.WarehouseID == warehouseID {
			return int64(w.AvailableStock)
		}
	}
	return 0
}

// Warehouse is a stock location.
type Warehouse struct {
	WarehouseID   ID     `json:"warehouse_id"`
	WarehouseName string `json:"warehouse_name"`
	Status        string `json:"status,omitempty"`
	IsPrimary     bool   `json:"is_primary"`
	Email         string `json:"email,omitempty"`
	City          string `json:"city,omitempty"`
	Country       string `json:"country,omitempty"`
}

// AdjustmentRequest is the inventoryadjustments POST payload.
type AdjustmentRequest struct {
	AdjustmentType  string           `json:"adjustment_type"`
	Reason          string           `json:"reason"`
	Date            string           `json:"date"`
	ReferenceNumber string           `json:"reference_number,omitempty"`
	LineItems       []AdjustmentLine `json:"line_items"`
}

// AdjustmentLine adjusts one item, optionally at one warehouse.
type AdjustmentLine struct {
	ItemID           ID    `json:"item_id"`
	QuantityAdjusted int64 `json:"quantity_adjusted"`
	WarehouseID      ID    `json:"warehouse_id,omitempty"`
}

// Adjustment is the upstream record of a submitted adjustment.
type Adjustment struct {
	InventoryAdjustmentID ID                 `json:"inventory_adjustment_id"`
	Date                  string             `json:"date"`
	Reason                string             `json:"reason"`
	ReferenceNumber       string             `json:"reference_number,omitempty"`
	AdjustmentType        string             `json:"adjustment_type"`
	LineItems             []AdjustedLineItem `json:"line_items,omitempty"`
}

// AdjustedLineItem is a line of a recorded adjustment.
type AdjustedLineItem struct {
	ItemID           ID       `json:"item_id"`
	Name             string   `json:"name,omitempty"`
	QuantityAdjusted Quantity `json:"quantity_adjusted"`
	WarehouseID      ID       `json:"warehouse_id,omitempty"`
	WarehouseName    string   `json:"warehouse_name,omitempty"`
}

// AdjustmentResult is the outcome of setting an item to a target quantity.
type AdjustmentResult struct {
	ItemID          ID          `json:"item_id"`
	SKU             string      `json:"sku,omitempty"`
	Name            string      `json:"name,omitempty"`
	WarehouseID     ID          `json:"warehouse_id,omitempty"`
	WarehouseName   string      `json:"warehouse_name,omitempty"`
	CurrentQuantity int64       `json:"current_quantity"`
	TargetQuantity  int64       `json:"target_quantity"`
	Delta           int64       `json:"delta"`
	NoOp            bool        `json:"noop"`
	Warning         string      `json:"warning,omitempty"`
	Reason          string      `json:"reason"`
	Reference       string      `json:"reference_number,omitempty"`
	RunID           string      `json:"run_id,omitempty"`
	Adjustment      *Adjustment `json:"adjustment,omitempty"`
}
