package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockbridge/zinv/internal/output"
)

func TestTransformCobraError(t *testing.T) {
	tests := []struct {
		in       string
		wantCode string
		wantMsg  string
		wantHint string
	}{
		{in: "flag needs an argument: --sku", wantCode: output.CodeUsage, wantMsg: "--sku requires a value"},
		{in: "unknown flag: --bogus", wantCode: output.CodeUsage, wantMsg: "Unknown option: --bogus"},
		{
			in:       "unknown shorthand flag: '3' in -3",
			wantCode: output.CodeUsage,
			wantMsg:  "Unknown option: -3",
			wantHint: "Put -- before negative quantities, e.g. zinv stock adjust --id 42 -- -3",
		},
		{in: "unknown shorthand flag: 'x' in -x", wantCode: output.CodeUsage, wantMsg: "Unknown option: -x"},
		{in: `invalid argument "abc" for "-n, --limit" flag`, wantCode: output.CodeUsage},
		{in: `required flag(s) "id" not set`, wantCode: output.CodeUsage, wantMsg: "--id is required"},
		{in: "at least one of the flags in the group [name sku id] is required", wantCode: output.CodeUsage},
		{in: "accepts 1 arg(s), received 0", wantCode: output.CodeUsage},
		{in: `unknown command "bogus" for "zinv"`, wantCode: output.CodeUsage},
		{in: "connection reset", wantCode: output.CodeAPI, wantMsg: "connection reset"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			e := output.AsError(transformCobraError(errors.New(tt.in)))
			assert.Equal(t, tt.wantCode, e.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, e.Message)
			}
			assert.Equal(t, tt.wantHint, e.Hint)
		})
	}
}

// isolate points every config source at a temp dir and returns the flags
// that keep Run away from the user's real files.
func isolate(t *testing.T) (dir string, baseArgs []string) {
	t.Helper()
	dir = t.TempDir()
	for _, name := range []string{
		"ZOHO_REFRESH_TOKEN", "ZOHO_CLIENT_ID", "ZOHO_CLIENT_SECRET",
		"ZOHO_API_DOMAIN", "ZOHO_ACCOUNTS_URL", "ZOHO_ORGANIZATION_ID",
		"ZINV_TOKEN_FILE", "INVENTORY_API_BASE_URL", "INVENTORY_SHEET_ID",
		"ZINV_WAREHOUSE_MAPPING", "ZINV_JOURNAL_ENABLED", "ZINV_HTTP_TIMEOUT", "ZINV_DEBUG",
	} {
		t.Setenv(name, "")
	}
	t.Setenv("ZINV_NO_KEYRING", "1")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("ZINV_JOURNAL_PATH", filepath.Join(dir, "journal.db"))
	return dir, []string{
		"--env-file", filepath.Join(dir, "missing.env"),
		"--token-file", filepath.Join(dir, "token.json"),
		"--json",
	}
}

type envelope struct {
	OK      bool            `json:"ok"`
	Data    json.RawMessage `json:"data"`
	Summary string          `json:"summary"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Hint    string          `json:"hint"`
}

func run(t *testing.T, args ...string) (int, envelope) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(args, &stdout, &stderr)
	var env envelope
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &env), "stdout: %s\nstderr: %s", stdout.String(), stderr.String())
	return code, env
}

func TestRunUsageErrors(t *testing.T) {
	_, base := isolate(t)

	tests := []struct {
		name string
		args []string
	}{
		{"non-numeric quantity", []string{"stock", "set", "abc", "--sku", "W-1"}},
		{"missing selector", []string{"stock", "set", "5"}},
		{"two selectors", []string{"stock", "set", "5", "--sku", "W-1", "--name", "Desk"}},
		{"missing quantity", []string{"stock", "set", "--sku", "W-1"}},
		{"unknown command", []string{"restock"}},
		{"adjust needs id", []string{"stock", "adjust", "5"}},
		{"warehouse show needs a key", []string{"warehouses", "show"}},
		{"negative history limit", []string{"history", "--limit", "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := run(t, append(tt.args, base...)...)
			assert.Equal(t, output.ExitUsage, code)
			assert.False(t, env.OK)
			assert.Equal(t, output.CodeUsage, env.Code)
		})
	}
}

func TestMissingCredentialsIsConfigError(t *testing.T) {
	_, base := isolate(t)

	code, env := run(t, append([]string{"items", "list"}, base...)...)
	assert.Equal(t, output.ExitConfig, code)
	assert.Equal(t, output.CodeConfig, env.Code)
	assert.Contains(t, env.Error, "ZOHO_REFRESH_TOKEN")
}

func TestAuthStatusWithoutNetwork(t *testing.T) {
	_, base := isolate(t)
	t.Setenv("ZOHO_CLIENT_ID", "1000.client")

	code, env := run(t, append([]string{"auth", "status"}, base...)...)
	require.Equal(t, output.ExitOK, code)

	var st struct {
		Authenticated bool              `json:"authenticated"`
		Credentials   map[string]string `json:"credentials"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.False(t, st.Authenticated)
	assert.Equal(t, "env", st.Credentials["client_id"])
	assert.Equal(t, "missing", st.Credentials["refresh_token"])
	assert.Contains(t, env.Summary, "credentials incomplete")
}

// fakeZoho serves the token endpoint and a single item whose overall stock
// moves with submitted adjustments.
type fakeZoho struct {
	mu          sync.Mutex
	qty         int64
	adjustments []map[string]any
}

func (f *fakeZoho) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"access_token":"tok","expires_in":3600}`)
	})
	mux.HandleFunc("GET /inventory/v1/items", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Zoho-oauthtoken tok", r.Header.Get("Authorization"))
		assert.Equal(t, "20071234", r.URL.Query().Get("organization_id"))
		_, _ = io.WriteString(w, `{"items":[{"item_id":"42","name":"Oak Desk","sku":"W-10"},{"item_id":"43","name":"Oak Desk XL","sku":"W-1"}]}`)
	})
	mux.HandleFunc("GET /inventory/v1/items/43", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		fmt.Fprintf(w, `{"item":{"item_id":"43","name":"Oak Desk XL","sku":"W-1","available_stock":%d}}`, f.qty)
	})
	mux.HandleFunc("POST /inventory/v1/inventoryadjustments", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		lines := body["line_items"].([]any)
		delta := int64(lines[0].(map[string]any)["quantity_adjusted"].(float64))

		f.mu.Lock()
		f.qty += delta
		f.adjustments = append(f.adjustments, body)
		f.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"code":0,"inventory_adjustment":{"inventory_adjustment_id":"900","adjustment_type":"quantity"}}`)
	})
	return mux
}

func TestStockSetReconcilesAndJournals(t *testing.T) {
	_, base := isolate(t)

	fake := &fakeZoho{qty: 10}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	t.Setenv("ZOHO_REFRESH_TOKEN", "1000.refresh")
	t.Setenv("ZOHO_CLIENT_ID", "1000.client")
	t.Setenv("ZOHO_CLIENT_SECRET", "secret")
	t.Setenv("ZOHO_ACCOUNTS_URL", srv.URL+"/oauth/v2/token")
	t.Setenv("ZOHO_API_DOMAIN", srv.URL)
	t.Setenv("ZOHO_ORGANIZATION_ID", "20071234")

	code, env := run(t, append([]string{"stock", "set", "25", "--sku", "W-1"}, base...)...)
	require.Equal(t, output.ExitOK, code, env.Error)

	var res struct {
		ItemID  string `json:"item_id"`
		Current int64  `json:"current_quantity"`
		Delta   int64  `json:"delta"`
		NoOp    bool   `json:"noop"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "43", res.ItemID)
	assert.Equal(t, int64(10), res.Current)
	assert.Equal(t, int64(15), res.Delta)
	assert.False(t, res.NoOp)
	require.Len(t, fake.adjustments, 1)
	assert.Equal(t, "Stock override via API", fake.adjustments[0]["reason"])

	// Second run finds the target already met.
	code, env = run(t, append([]string{"stock", "set", "25", "--sku", "W-1"}, base...)...)
	require.Equal(t, output.ExitOK, code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.NoOp)
	assert.Zero(t, res.Delta)
	assert.Len(t, fake.adjustments, 1)
	assert.Contains(t, env.Summary, "unchanged at 25")

	code, env = run(t, append([]string{"history"}, base...)...)
	require.Equal(t, output.ExitOK, code, env.Error)
	var entries []struct {
		ItemID string `json:"item_id"`
		Delta  int64  `json:"delta"`
		NoOp   bool   `json:"noop"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 2)
	assert.True(t, entries[0].NoOp)
	assert.Equal(t, int64(15), entries[1].Delta)
}

func TestStockSetUnknownSKU(t *testing.T) {
	_, base := isolate(t)

	srv := httptest.NewServer((&fakeZoho{}).handler(t))
	defer srv.Close()

	t.Setenv("ZOHO_REFRESH_TOKEN", "1000.refresh")
	t.Setenv("ZOHO_CLIENT_ID", "1000.client")
	t.Setenv("ZOHO_CLIENT_SECRET", "secret")
	t.Setenv("ZOHO_ACCOUNTS_URL", srv.URL+"/oauth/v2/token")
	t.Setenv("ZOHO_API_DOMAIN", srv.URL)
	t.Setenv("ZOHO_ORGANIZATION_ID", "20071234")

	code, env := run(t, append([]string{"stock", "set", "5", "--sku", "w-1"}, base...)...)
	assert.Equal(t, output.ExitNotFound, code)
	assert.Equal(t, output.CodeNotFound, env.Code)
}

func TestSyncDryRunNeedsNoCredentials(t *testing.T) {
	_, base := isolate(t)

	sheet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sheets", r.URL.Path)
		assert.Equal(t, "S1", r.URL.Query().Get("sheet_id"))
		_, _ = io.WriteString(w, `[
			{"SBS SKU":"W-1","CURRENT LOCATION":"STOCK IN WAREHOUSE - ES","QTY":3,"ADJ":""},
			{"SBS SKU":"W-1","CURRENT LOCATION":"STOCK IN WAREHOUSE - ES","QTY":"2","ADJ":-1},
			{"SBS SKU":"","CURRENT LOCATION":"STOCK IN WAREHOUSE - ES","QTY":9}
		]`)
	}))
	defer sheet.Close()

	code, env := run(t, append([]string{"sync", "--dry-run", "--sheet-id", "S1", "--base-url", sheet.URL}, base...)...)
	require.Equal(t, output.ExitOK, code, env.Error)

	var report struct {
		DryRun   bool `json:"dry_run"`
		Rows     int  `json:"rows"`
		Outcomes []struct {
			SKU       string `json:"sku"`
			Warehouse string `json:"warehouse"`
			Quantity  int64  `json:"quantity"`
			Status    string `json:"status"`
		} `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.Rows)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, "W-1", report.Outcomes[0].SKU)
	assert.Equal(t, "Spain Warehouse", report.Outcomes[0].Warehouse)
	assert.Equal(t, int64(4), report.Outcomes[0].Quantity)
	assert.Equal(t, "planned", report.Outcomes[0].Status)
}

func TestConfigSetShowUnset(t *testing.T) {
	dir, base := isolate(t)
	cfgFile := filepath.Join(dir, "zinv.json")
	base = append(base, "--config", cfgFile)

	code, env := run(t, append([]string{"config", "set", "organization_id", "20071234"}, base...)...)
	require.Equal(t, output.ExitOK, code, env.Error)
	assert.FileExists(t, cfgFile)

	code, env = run(t, append([]string{"config", "set", "journal_enabled", "nope"}, base...)...)
	assert.Equal(t, output.ExitUsage, code)

	code, env = run(t, append([]string{"config", "set", "refresh_token", "1000.x"}, base...)...)
	assert.Equal(t, output.ExitUsage, code)
	assert.Contains(t, env.Hint, "zinv auth store")

	code, env = run(t, append([]string{"config", "show"}, base...)...)
	require.Equal(t, output.ExitOK, code, env.Error)
	var shown map[string]struct {
		Value  string `json:"value"`
		Source string `json:"source"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &shown))
	assert.Equal(t, "20071234", shown["organization_id"].Value)
	assert.Equal(t, "global", shown["organization_id"].Source)
	assert.Equal(t, "unset", shown["refresh_token"].Source)

	code, env = run(t, append([]string{"config", "unset", "organization_id"}, base...)...)
	require.Equal(t, output.ExitOK, code, env.Error)
	assert.Contains(t, env.Summary, "Unset organization_id")
}

func TestDoctorWithoutCredentials(t *testing.T) {
	_, base := isolate(t)

	code, env := run(t, append([]string{"doctor"}, base...)...)
	require.Equal(t, output.ExitOK, code, env.Error)

	var result struct {
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
		Failed int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	status := map[string]string{}
	for _, c := range result.Checks {
		status[c.Name] = c.Status
	}
	assert.Equal(t, "fail", status["Credentials"])
	assert.Equal(t, "skip", status["Authentication"])
	assert.Equal(t, "skip", status["API Connectivity"])
	assert.Equal(t, "warn", status["Organization"])
	assert.Equal(t, "pass", status["Journal"])
	assert.Equal(t, 1, result.Failed)
}

func TestUnderscoreFlagsNormalize(t *testing.T) {
	assert.Equal(t, "sheet-id", string(normalizeFlagName(nil, "sheet_id")))
	assert.Equal(t, "dry-run", string(normalizeFlagName(nil, "dry-run")))

	root := NewRootCmd()
	syncCmd, _, err := root.Find([]string{"sync"})
	require.NoError(t, err)
	require.NoError(t, syncCmd.ParseFlags([]string{"--sheet_id", "S1"}))
	v, err := syncCmd.Flags().GetString("sheet-id")
	require.NoError(t, err)
	assert.Equal(t, "S1", v)
}
