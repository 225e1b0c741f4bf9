package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"go.uber.org/zap"

	"github.com/stockbridge/zinv/internal/output"
)

const (
	adjustmentTypeQuantity = "quantity"
	dateLayout             = "2006-01-02"
)

// An upstream 400 is a zero-quantity rejection only when it names the
// adjustment, states the quantity must be non-zero, and says nothing about a
// stock shortfall.
var (
	nonZeroRequirement = regexp.MustCompile(`(?i)\b(cannot|can not|must not|should not|may not)\s+be\s+(zero|0)\b|\bother than (zero|0)\b|\bnon-?zero\b`)
	adjustmentSubject  = regexp.MustCompile(`(?i)adjust`)
	stockShortfall     = regexp.MustCompile(`(?i)less than|exceed|insufficient|below`)
)

// OverrideOptions scopes an override.
type OverrideOptions struct {
	WarehouseID ID
	Reason      string
}

type runIDKey struct{}

// WithRunID tags results produced under ctx with a run id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run id set by WithRunID, or "".
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// ReadQuantity returns the item's available stock, at warehouseID when one
// is given.
func (s *Service) ReadQuantity(ctx context.Context, itemID, warehouseID ID) (int64, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return 0, err
	}
	return item.QuantityAt(warehouseID), nil
}

// OverrideTo sets the item's stock to target by submitting the difference
// as an adjustment. A zero difference submits nothing and returns a no-op
// result.
func (s *Service) OverrideTo(ctx context.Context, itemID ID, target int64, opts OverrideOptions) (*AdjustmentResult, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return s.overrideItem(ctx, item, target, opts)
}

// OverrideBySKU resolves sku and, when given, warehouseName before
// overriding.
func (s *Service) OverrideBySKU(ctx context.Context, sku string, target int64, warehouseName, reason string) (*AdjustmentResult, error) {
	found, err := s.FindItemBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, output.ErrNotFoundHint("Item with SKU", sku, "List items with: zinv items list")
	}
	return s.overrideResolved(ctx, found, target, warehouseName, reason)
}

// OverrideByName is OverrideBySKU keyed by item name.
func (s *Service) OverrideByName(ctx context.Context, name string, target int64, warehouseName, reason string) (*AdjustmentResult, error) {
	found, err := s.FindItemByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, output.ErrNotFoundHint("Item", name, "List items with: zinv items list")
	}
	return s.overrideResolved(ctx, found, target, warehouseName, reason)
}

func (s *Service) overrideResolved(ctx context.Context, found *Item, target int64, warehouseName, reason string) (*AdjustmentResult, error) {
	opts := OverrideOptions{Reason: reason}
	var wh *Warehouse
	if warehouseName != "" {
		var err error
		wh, err = s.FindWarehouseByName(ctx, warehouseName)
		if err != nil {
			return nil, err
		}
		if wh == nil {
			return nil, output.ErrNotFoundHint("Warehouse", warehouseName, "List warehouses with: zinv warehouses list")
		}
		opts.WarehouseID = wh.WarehouseID
	}

	// Listings omit the warehouse breakdown, so re-read the item.
	item, err := s.GetItem(ctx, found.ItemID)
	if err != nil {
		return nil, err
	}
	res, err := s.overrideItem(ctx, item, target, opts)
	if err != nil {
		return nil, err
	}
	if wh != nil {
		res.WarehouseName = wh.WarehouseName
	}
	return res, nil
}

func (s *Service) overrideItem(ctx context.Context, item *Item, target int64, opts OverrideOptions) (*AdjustmentResult, error) {
	reason := opts.Reason
	if reason == "" {
		reason = DefaultReason
	}
	current := item.QuantityAt(opts.WarehouseID)
	res := &AdjustmentResult{
		ItemID:          item.ItemID,
		SKU:             item.SKU,
		Name:            item.Name,
		WarehouseID:     opts.WarehouseID,
		CurrentQuantity: current,
		TargetQuantity:  target,
		Delta:           target - current,
		Reason:          reason,
		RunID:           RunIDFrom(ctx),
	}
	for _, w := range item.Warehouses {
		if w.WarehouseID == opts.WarehouseID {
			res.WarehouseName = w.WarehouseName
		}
	}

	log := s.log.With(
		zap.String("item_id", string(item.ItemID)),
		zap.String("warehouse_id", string(opts.WarehouseID)),
		zap.Int64("current", current),
		zap.Int64("target", target),
	)

	if res.Delta == 0 {
		markNoOp(res, fmt.Sprintf("Stock already at %d; no adjustment submitted", current))
		log.Warn("stock already at target; no adjustment submitted")
		s.record(ctx, res)
		return res, nil
	}

	res.Reference = s.newRef()
	adj, err := s.submit(ctx, item.ItemID, res.Delta, opts.WarehouseID, reason, res.Reference)
	if err != nil {
		if isZeroQuantityRejection(err) {
			markNoOp(res, fmt.Sprintf("Upstream rejected the adjustment as zero-quantity; stock left at %d (target %d)", current, target))
			log.Warn("upstream rejected zero-quantity adjustment; treating as no-op", zap.Error(err))
			s.record(ctx, res)
			return res, nil
		}
		return nil, err
	}
	res.Adjustment = adj
	log.Info("stock adjusted", zap.Int64("delta", res.Delta), zap.String("reference", res.Reference))
	s.record(ctx, res)
	return res, nil
}

// Adjust submits a raw signed delta.
func (s *Service) Adjust(ctx context.Context, itemID ID, delta int64, warehouseID ID, reason string) (*Adjustment, error) {
	if itemID == "" {
		return nil, output.ErrUsage("Item ID cannot be empty")
	}
	if delta == 0 {
		return nil, output.ErrUsageHint("Adjustment quantity must be non-zero", "Use: zinv stock set to reconcile to an absolute quantity")
	}
	if reason == "" {
		reason = DefaultReason
	}
	return s.submit(ctx, itemID, delta, warehouseID, reason, s.newRef())
}

// SetStockOnHand writes stock_on_hand directly on the item named name.
// Accounts with adjustments enabled should use OverrideByName instead.
func (s *Service) SetStockOnHand(ctx context.Context, name string, quantity int64) (*Item, error) {
	found, err := s.FindItemByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, output.ErrNotFoundHint("Item", name, "List items with: zinv items list")
	}
	resp, err := s.api.Put(ctx, itemPath(found.ItemID), map[string]int64{"stock_on_hand": quantity})
	if err != nil {
		return nil, err
	}
	var env itemEnvelope
	if err := resp.UnmarshalData(&env); err != nil {
		return nil, err
	}
	if env.Item == nil {
		return nil, fmt.Errorf("item update for %s returned no item", found.ItemID)
	}
	s.log.Info("stock on hand set", zap.String("item_id", string(found.ItemID)), zap.Int64("quantity", quantity))
	return env.Item, nil
}

func (s *Service) submit(ctx context.Context, itemID ID, delta int64, warehouseID ID, reason, reference string) (*Adjustment, error) {
	req := AdjustmentRequest{
		AdjustmentType:  adjustmentTypeQuantity,
		Reason:          reason,
		Date:            s.now().Format(dateLayout),
		ReferenceNumber: reference,
		LineItems: []AdjustmentLine{{
			ItemID:           itemID,
			QuantityAdjusted: delta,
			WarehouseID:      warehouseID,
		}},
	}
	resp, err := s.api.Post(ctx, "inventoryadjustments", req)
	if err != nil {
		return nil, err
	}
	var env struct {
		InventoryAdjustment *Adjustment `json:"inventory_adjustment"`
		Legacy              *Adjustment `json:"inventoryadjustment"`
	}
	if err := resp.UnmarshalData(&env); err != nil {
		return nil, err
	}
	switch {
	case env.InventoryAdjustment != nil:
		return env.InventoryAdjustment, nil
	case env.Legacy != nil:
		return env.Legacy, nil
	}
	return &Adjustment{
		Date:            req.Date,
		Reason:          req.Reason,
		ReferenceNumber: req.ReferenceNumber,
		AdjustmentType:  req.AdjustmentType,
	}, nil
}

func (s *Service) record(ctx context.Context, res *AdjustmentResult) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, *res); err != nil {
		s.log.Warn("could not journal adjustment", zap.String("item_id", string(res.ItemID)), zap.Error(err))
	}
}

func markNoOp(res *AdjustmentResult, warning string) {
	res.NoOp = true
	res.Delta = 0
	res.Warning = warning
}

func isZeroQuantityRejection(err error) bool {
	var e *output.Error
	if !errors.As(err, &e) {
		return false
	}
	if e.Code != output.CodeAPI || e.HTTPStatus != http.StatusBadRequest {
		return false
	}
	return adjustmentSubject.MatchString(e.Message) &&
		nonZeroRequirement.MatchString(e.Message) &&
		!stockShortfall.MatchString(e.Message)
}
