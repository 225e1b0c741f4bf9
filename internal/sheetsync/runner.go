package sheetsync

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stockbridge/zinv/internal/inventory"
	"github.com/stockbridge/zinv/internal/output"
)

// Reason is recorded on every adjustment a sync submits.
const Reason = "Inventory sync from spreadsheet"

// Outcome statuses.
const (
	StatusAdjusted = "adjusted"
	StatusNoOp     = "noop"
	StatusFailed   = "failed"
	StatusPlanned  = "planned"
)

// Fetcher supplies sheet rows.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Row, error)
	URL() string
}

// Reconciler sets a SKU to a target quantity.
type Reconciler interface {
	OverrideBySKU(ctx context.Context, sku string, target int64, warehouseName, reason string) (*inventory.AdjustmentResult, error)
}

// Outcome is the result for one target.
type Outcome struct {
	Target
	Status  string `json:"status"`
	Current int64  `json:"current_quantity,omitempty"`
	Delta   int64  `json:"delta,omitempty"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report summarizes a run.
type Report struct {
	RunID    string    `json:"run_id"`
	Source   string    `json:"source"`
	DryRun   bool      `json:"dry_run"`
	Rows     int       `json:"rows"`
	Targets  int       `json:"targets"`
	Adjusted int       `json:"adjusted"`
	NoOp     int       `json:"noop"`
	Failed   int       `json:"failed"`
	Outcomes []Outcome `json:"outcomes"`
	Skipped  []Skipped `json:"skipped,omitempty"`
}

// Runner drives one sync.
type Runner struct {
	source   Fetcher
	rec      Reconciler
	mapping  Mapping
	log      *zap.Logger
	newRunID func() string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMapping replaces DefaultMapping.
func WithMapping(m Mapping) RunnerOption {
	return func(r *Runner) { r.mapping = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.log = l }
}

// WithRunID fixes the run id.
func WithRunID(id string) RunnerOption {
	return func(r *Runner) { r.newRunID = func() string { return id } }
}

// NewRunner creates a Runner. rec may be nil for dry runs.
func NewRunner(source Fetcher, rec Reconciler, opts ...RunnerOption) *Runner {
	r := &Runner{
		source:   source,
		rec:      rec,
		mapping:  DefaultMapping(),
		log:      zap.NewNop(),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run fetches the sheet and reconciles every target. A failed target is
// recorded in the report and the run continues. With dryRun nothing is
// submitted.
func (r *Runner) Run(ctx context.Context, dryRun bool) (*Report, error) {
	if !dryRun && r.rec == nil {
		return nil, output.ErrUsage("Sync needs an inventory connection unless --dry-run is set")
	}

	report := &Report{
		RunID:  r.newRunID(),
		Source: r.source.URL(),
		DryRun: dryRun,
	}
	log := r.log.With(zap.String("run_id", report.RunID))

	rows, err := r.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	targets, skipped := Aggregate(rows, r.mapping)
	report.Rows = len(rows)
	report.Targets = len(targets)
	report.Skipped = skipped
	log.Info("sheet aggregated", zap.Int("rows", len(rows)), zap.Int("targets", len(targets)), zap.Int("skipped", len(skipped)))

	ctx = inventory.WithRunID(ctx, report.RunID)
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if dryRun {
			report.Outcomes = append(report.Outcomes, Outcome{Target: t, Status: StatusPlanned})
			continue
		}

		res, err := r.rec.OverrideBySKU(ctx, t.SKU, t.Quantity, t.Warehouse, Reason)
		if err != nil {
			e := output.AsError(err)
			log.Warn("sync target failed", zap.String("sku", t.SKU), zap.String("warehouse", t.Warehouse), zap.Error(err))
			report.Failed++
			report.Outcomes = append(report.Outcomes, Outcome{Target: t, Status: StatusFailed, Code: e.Code, Error: e.Message})
			continue
		}

		o := Outcome{Target: t, Current: res.CurrentQuantity, Delta: res.Delta}
		if res.NoOp {
			o.Status = StatusNoOp
			report.NoOp++
		} else {
			o.Status = StatusAdjusted
			report.Adjusted++
		}
		report.Outcomes = append(report.Outcomes, o)
	}
	log.Info("sync finished", zap.Int("adjusted", report.Adjusted), zap.Int("noop", report.NoOp), zap.Int("failed", report.Failed))
	return report, nil
}
