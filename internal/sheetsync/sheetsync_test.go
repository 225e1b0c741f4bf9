package sheetsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockbridge/zinv/internal/inventory"
	"github.com/stockbridge/zinv/internal/output"
)

func rowsFrom(t *testing.T, raw string) []Row {
	t.Helper()
	var rows []Row
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&rows))
	return rows
}

func TestAggregate(t *testing.T) {
	rows := rowsFrom(t, `[
		{"SBS SKU":"W-1","CURRENT LOCATION":"STOCK IN WAREHOUSE - ES","QTY":5,"ADJ":1},
		{"SBS SKU":"W-1","CURRENT LOCATION":"STOCK IN WAREHOUSE - ES","QTY":"3","ADJ":""},
		{"SBS SKU":"W-1","CURRENT LOCATION":"STOCK IN WAREHOUSE - UK - FSL","QTY":2,"ADJ":null},
		{"SBS SKU":"A-9","CURRENT LOCATION":"Somewhere Else","QTY":4},
		{"SBS SKU":"  ","CURRENT LOCATION":"STOCK IN WAREHOUSE - ES","QTY":100},
		{"CURRENT LOCATION":"STOCK IN WAREHOUSE - ES","QTY":100},
		{"SBS SKU":"B-2","CURRENT LOCATION":"STOCK IN WAREHOUSE - ES","QTY":"lots"}
	]`)

	targets, skipped := Aggregate(rows, DefaultMapping())
	assert.Equal(t, []Target{
		{SKU: "A-9", Warehouse: "Somewhere Else", Quantity: 4},
		{SKU: "W-1", Warehouse: "Final Step Logistics", Quantity: 2},
		{SKU: "W-1", Warehouse: "Spain Warehouse", Quantity: 9},
	}, targets)
	require.Len(t, skipped, 1)
	assert.Equal(t, "B-2", skipped[0].SKU)
	assert.Equal(t, 7, skipped[0].Row)
}

func TestCellInt(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    int64
		wantErr bool
	}{
		{"nil", nil, 0, false},
		{"number", json.Number("12"), 12, false},
		{"fractional number truncates", json.Number("2.9"), 2, false},
		{"negative number", json.Number("-3"), -3, false},
		{"float", 4.0, 4, false},
		{"string", " 7 ", 7, false},
		{"blank string", "", 0, false},
		{"fractional string", "2.5", 0, true},
		{"word", "n/a", 0, true},
		{"bool", true, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cellInt(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, errNotInteger)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadMappingLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`warehouses:
  "STOCK IN WAREHOUSE - ES": Madrid Hub
  "STOCK IN WAREHOUSE - DE": Berlin Warehouse
`), 0600))

	m, err := LoadMapping(path)
	require.NoError(t, err)
	assert.Equal(t, "Madrid Hub", m.Translate("STOCK IN WAREHOUSE - ES"))
	assert.Equal(t, "Berlin Warehouse", m.Translate("STOCK IN WAREHOUSE - DE"))
	assert.Equal(t, "Marone Solutions Ltd", m.Translate("STOCK IN WAREHOUSE - UK - MAR"))
	assert.Equal(t, "Unmapped", m.Translate("Unmapped"))
}

func TestLoadMappingErrors(t *testing.T) {
	_, err := LoadMapping(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("warehouses: [unclosed"), 0600))
	_, err = LoadMapping(path)
	assert.ErrorContains(t, err, "parsing warehouse mapping")
}

func TestSourceFetch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sheets", r.URL.Path)
		gotQuery = r.URL.Query().Get("sheet_id")
		_, _ = w.Write([]byte(`[{"SBS SKU":"W-1","QTY":3}]`))
	}))
	defer srv.Close()

	src, err := NewSource(srv.URL+"/", "sheet-7", srv.Client())
	require.NoError(t, err)

	rows, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sheet-7", gotQuery)
	require.Len(t, rows, 1)
	assert.Equal(t, json.Number("3"), rows[0]["QTY"])
}

func TestSourceFetchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such sheet", http.StatusNotFound)
	}))
	defer srv.Close()

	src, err := NewSource(srv.URL, "missing", srv.Client())
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	e := output.AsError(err)
	assert.Equal(t, output.CodeAPI, e.Code)
	assert.Equal(t, http.StatusNotFound, e.HTTPStatus)
	assert.Contains(t, e.Body, "no such sheet")
}

func TestNewSourceRequiresConfig(t *testing.T) {
	_, err := NewSource("", "sheet", nil)
	assert.True(t, output.HasCode(err, output.CodeConfig))
	_, err = NewSource("https://sheets.example", "", nil)
	assert.True(t, output.HasCode(err, output.CodeConfig))
}

type staticSource struct {
	rows []Row
	err  error
}

func (s staticSource) Fetch(context.Context) ([]Row, error) { return s.rows, s.err }
func (s staticSource) URL() string                          { return "https://sheets.example/api/sheets?sheet_id=1" }

type scriptedReconciler struct {
	calls   []Target
	runIDs  []string
	results map[string]*inventory.AdjustmentResult
	errs    map[string]error
}

func (s *scriptedReconciler) OverrideBySKU(ctx context.Context, sku string, target int64, warehouse, reason string) (*inventory.AdjustmentResult, error) {
	s.calls = append(s.calls, Target{SKU: sku, Warehouse: warehouse, Quantity: target})
	s.runIDs = append(s.runIDs, inventory.RunIDFrom(ctx))
	if reason != Reason {
		return nil, errors.New("unexpected reason " + reason)
	}
	if err := s.errs[sku]; err != nil {
		return nil, err
	}
	return s.results[sku], nil
}

func TestRunnerContinuesPastFailures(t *testing.T) {
	rows := rowsFrom(t, `[
		{"SBS SKU":"A","CURRENT LOCATION":"STOCK IN WAREHOUSE - ES","QTY":1},
		{"SBS SKU":"B","CURRENT LOCATION":"STOCK IN WAREHOUSE - ES","QTY":2},
		{"SBS SKU":"C","CURRENT LOCATION":"STOCK IN WAREHOUSE - ES","QTY":3}
	]`)
	rec := &scriptedReconciler{
		results: map[string]*inventory.AdjustmentResult{
			"A": {CurrentQuantity: 0, Delta: 1},
			"C": {CurrentQuantity: 3, NoOp: true},
		},
		errs: map[string]error{"B": output.ErrNotFound("Item with SKU", "B")},
	}
	r := NewRunner(staticSource{rows: rows}, rec, WithRunID("run-42"))

	report, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "run-42", report.RunID)
	assert.Equal(t, 3, report.Targets)
	assert.Equal(t, 1, report.Adjusted)
	assert.Equal(t, 1, report.NoOp)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, rec.calls, 3)
	assert.Equal(t, Target{SKU: "B", Warehouse: "Spain Warehouse", Quantity: 2}, rec.calls[1])
	assert.Equal(t, []string{"run-42", "run-42", "run-42"}, rec.runIDs)

	failed := report.Outcomes[1]
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, output.CodeNotFound, failed.Code)
	assert.Equal(t, StatusAdjusted, report.Outcomes[0].Status)
	assert.Equal(t, StatusNoOp, report.Outcomes[2].Status)
}

func TestRunnerDryRunSubmitsNothing(t *testing.T) {
	rows := rowsFrom(t, `[{"SBS SKU":"A","QTY":1}]`)
	r := NewRunner(staticSource{rows: rows}, nil)

	report, err := r.Run(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, StatusPlanned, report.Outcomes[0].Status)
	assert.NotEmpty(t, report.RunID)
}

func TestRunnerFetchFailure(t *testing.T) {
	r := NewRunner(staticSource{err: output.ErrNetwork(errors.New("dial tcp: refused"))}, &scriptedReconciler{})
	_, err := r.Run(context.Background(), false)
	assert.True(t, output.HasCode(err, output.CodeNetwork))
}

func TestRunnerWithoutReconcilerNeedsDryRun(t *testing.T) {
	r := NewRunner(staticSource{}, nil)
	_, err := r.Run(context.Background(), false)
	assert.True(t, output.HasCode(err, output.CodeUsage))
}
