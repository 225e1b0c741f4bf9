// Package journal keeps a local SQLite ledger of stock reconciliations.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stockbridge/zinv/internal/inventory"
)

// DefaultLimit bounds List when the caller passes no limit.
const DefaultLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS adjustments (
    id           INTEGER PRIMARY KEY,
    run_id       TEXT NOT NULL DEFAULT '',
    reference    TEXT NOT NULL DEFAULT '',
    item_id      TEXT NOT NULL,
    sku          TEXT NOT NULL DEFAULT '',
    warehouse_id TEXT NOT NULL DEFAULT '',
    previous     INTEGER NOT NULL,
    target       INTEGER NOT NULL,
    delta        INTEGER NOT NULL,
    noop         INTEGER NOT NULL CHECK (noop IN (0, 1)),
    reason       TEXT NOT NULL,
    created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_adjustments_item ON adjustments(item_id);
CREATE INDEX IF NOT EXISTS idx_adjustments_run ON adjustments(run_id) WHERE run_id != '';
`

// Entry is one journaled reconciliation.
type Entry struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id,omitempty"`
	Reference   string    `json:"reference_number,omitempty"`
	ItemID      string    `json:"item_id"`
	SKU         string    `json:"sku,omitempty"`
	WarehouseID string    `json:"warehouse_id,omitempty"`
	Previous    int64     `json:"previous"`
	Target      int64     `json:"target"`
	Delta       int64     `json:"delta"`
	NoOp        bool      `json:"noop"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

// Journal records reconciliation outcomes. It implements inventory.Recorder.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Journal.
type Option func(*Journal)

// WithClock overrides time.Now for created_at.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// Open opens (creating if needed) the journal at path. ":memory:" gives a
// private in-memory journal.
func Open(path string, opts ...Option) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}

	j := &Journal{db: db, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends res.
func (j *Journal) Record(ctx context.Context, res inventory.AdjustmentResult) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO adjustments (run_id, reference, item_id, sku, warehouse_id, previous, target, delta, noop, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Reference, string(res.ItemID), res.SKU, string(res.WarehouseID),
		res.CurrentQuantity, res.TargetQuantity, res.Delta, res.NoOp, res.Reason,
		j.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording adjustment: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, run_id, reference, item_id, sku, warehouse_id, previous, target, delta, noop, reason, created_at
		 FROM adjustments ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing adjustments: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListRun returns the entries recorded under runID, oldest first.
func (j *Journal) ListRun(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, run_id, reference, item_id, sku, warehouse_id, previous, target, delta, noop, reason, created_at
		 FROM adjustments WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing run %s: %w", runID, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Reference, &e.ItemID, &e.SKU, &e.WarehouseID,
			&e.Previous, &e.Target, &e.Delta, &e.NoOp, &e.Reason, &created); err != nil {
			return nil, fmt.Errorf("scanning adjustment: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", created, err)
		}
		e.CreatedAt = t
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ inventory.Recorder = (*Journal)(nil)
