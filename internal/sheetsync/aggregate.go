package sheetsync

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Sheet columns.
const (
	ColumnSKU        = "SBS SKU"
	ColumnLocation   = "CURRENT LOCATION"
	ColumnQuantity   = "QTY"
	ColumnAdjustment = "ADJ"
)

// Mapping translates sheet locations to warehouse names.
type Mapping map[string]string

// DefaultMapping is the built-in location table.
func DefaultMapping() Mapping {
	return Mapping{
		"STOCK IN WAREHOUSE - ES":        "Spain Warehouse",
		"STOCK IN WAREHOUSE - UK - MAR":  "Marone Solutions Ltd",
		"STOCK IN WAREHOUSE - UK - FSL":  "Final Step Logistics",
		"STOCK IN WAREHOUSE - UK - PRIM": "Primary Office Furniture Services",
	}
}

// Translate returns the warehouse for location; unmapped locations pass
// through unchanged.
func (m Mapping) Translate(location string) string {
	if w, ok := m[location]; ok {
		return w
	}
	return location
}

type mappingFile struct {
	Warehouses map[string]string `yaml:"warehouses"`
}

// LoadMapping reads a YAML file of the form
//
//	warehouses:
//	  "STOCK IN WAREHOUSE - ES": Spain Warehouse
//
// Entries are layered over DefaultMapping.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading warehouse mapping: %w", err)
	}
	var f mappingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing warehouse mapping %s: %w", path, err)
	}
	m := DefaultMapping()
	maps.Copy(m, f.Warehouses)
	return m, nil
}

// Target is the quantity one SKU should hold at one warehouse.
type Target struct {
	SKU       string `json:"sku"`
	Warehouse string `json:"warehouse,omitempty"`
	Quantity  int64  `json:"quantity"`
}

// Skipped is a row that could not be aggregated.
type Skipped struct {
	Row    int    `json:"row"`
	SKU    string `json:"sku"`
	Reason string `json:"reason"`
}

var errNotInteger = errors.New("not an integer")

// Aggregate sums QTY+ADJ per (SKU, warehouse). Rows without a SKU are
// ignored; rows with a non-integer quantity are reported as skipped.
// Targets are sorted by SKU then warehouse.
func Aggregate(rows []Row, m Mapping) ([]Target, []Skipped) {
	type key struct{ sku, warehouse string }
	totals := map[key]int64{}
	var skipped []Skipped

	for i, row := range rows {
		sku, _ := row[ColumnSKU].(string)
		if strings.TrimSpace(sku) == "" {
			continue
		}
		location, _ := row[ColumnLocation].(string)

		qty, err := cellInt(row[ColumnQuantity])
		if err != nil {
			skipped = append(skipped, Skipped{Row: i + 1, SKU: sku, Reason: fmt.Sprintf("%s: %v", ColumnQuantity, err)})
			continue
		}
		adj, err := cellInt(row[ColumnAdjustment])
		if err != nil {
			skipped = append(skipped, Skipped{Row: i + 1, SKU: sku, Reason: fmt.Sprintf("%s: %v", ColumnAdjustment, err)})
			continue
		}
		totals[key{sku, m.Translate(location)}] += qty + adj
	}

	targets := make([]Target, 0, len(totals))
	for k, q := range totals {
		targets = append(targets, Target{SKU: k.sku, Warehouse: k.warehouse, Quantity: q})
	}
	slices.SortFunc(targets, func(a, b Target) int {
		return cmp.Or(cmp.Compare(a.SKU, b.SKU), cmp.Compare(a.Warehouse, b.Warehouse))
	})
	return targets, skipped
}

// cellInt reads a quantity cell. Missing, null and blank cells are 0.
// Numbers are truncated toward zero; strings must hold an integer.
func cellInt(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return 0, errNotInteger
		}
		return d.IntPart(), nil
	case float64:
		return decimal.NewFromFloat(x).IntPart(), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errNotInteger, x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %v", errNotInteger, v)
	}
}
