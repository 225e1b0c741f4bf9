package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stockbridge/zinv/internal/appctx"
	"github.com/stockbridge/zinv/internal/auth"
	"github.com/stockbridge/zinv/internal/output"
	"github.com/stockbridge/zinv/internal/version"
)

// Check statuses.
const (
	checkPass = "pass"
	checkFail = "fail"
	checkWarn = "warn"
	checkSkip = "skip"
)

// Check represents a single diagnostic check result.
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// DoctorResult holds the complete diagnostic results.
type DoctorResult struct {
	Checks  []Check `json:"checks"`
	Passed  int     `json:"passed"`
	Failed  int     `json:"failed"`
	Warned  int     `json:"warned"`
	Skipped int     `json:"skipped"`
}

// Summary returns a human-readable summary of the results.
func (r *DoctorResult) Summary() string {
	if r.Failed == 0 && r.Warned == 0 && r.Passed > 0 {
		if r.Skipped > 0 {
			return fmt.Sprintf("All %d checks passed, %d skipped", r.Passed, r.Skipped)
		}
		return fmt.Sprintf("All %d checks passed", r.Passed)
	}
	var parts []string
	if r.Passed > 0 {
		parts = append(parts, fmt.Sprintf("%d passed", r.Passed))
	}
	if r.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.Failed))
	}
	if r.Warned > 0 {
		parts = append(parts, plural(r.Warned, "warning", "warnings"))
	}
	if r.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", r.Skipped))
	}
	return strings.Join(parts, ", ")
}

// NewDoctorCmd creates the doctor command.
func NewDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, credentials and connectivity",
		Long: `Run diagnostic checks on configuration, credentials and API connectivity.

Checks run in order and later checks are skipped when an earlier one they
depend on fails:
  - Config file
  - Credentials (environment, .env or keyring)
  - Organization
  - Access token refresh
  - Inventory API reachability
  - Adjustment journal
  - Spreadsheet sync settings

Use -v to include runtime details.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			result := summarizeChecks(runDoctorChecks(cmd.Context(), app))
			return app.OK(result, output.WithSummary(result.Summary()))
		},
	}
}

func runDoctorChecks(ctx context.Context, app *appctx.App) []Check {
	verbose := app.Flags.Verbose > 0
	var checks []Check

	checks = append(checks, checkVersion(verbose))
	checks = append(checks, checkConfigFile(app))

	credCheck := checkCredentials(app)
	checks = append(checks, credCheck, checkOrganization(app))

	canTestAPI := false
	if credCheck.Status == checkPass {
		authCheck := checkAuthentication(ctx, app)
		checks = append(checks, authCheck)
		canTestAPI = authCheck.Status == checkPass
	} else {
		checks = append(checks, Check{
			Name:    "Authentication",
			Status:  checkSkip,
			Message: "Skipped (no credentials)",
		})
	}

	if canTestAPI {
		checks = append(checks, checkAPIConnectivity(ctx, app, verbose))
	} else {
		checks = append(checks, Check{
			Name:    "API Connectivity",
			Status:  checkSkip,
			Message: "Skipped (not authenticated)",
		})
	}

	checks = append(checks, checkJournal(app), checkSync(app))
	return checks
}

func checkVersion(verbose bool) Check {
	msg := version.Version
	if verbose {
		msg = fmt.Sprintf("%s (Go %s, %s/%s)", version.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	}
	return Check{Name: "Version", Status: checkPass, Message: msg}
}

func checkConfigFile(app *appctx.App) Check {
	check := Check{Name: "Config File"}

	path := configPath(app)
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if errors.Is(err, fs.ErrNotExist) {
		check.Status = checkSkip
		check.Message = fmt.Sprintf("Not found: %s (using defaults and environment)", path)
		return check
	}
	if err != nil {
		check.Status = checkFail
		check.Message = fmt.Sprintf("Cannot read: %s", path)
		check.Hint = fmt.Sprintf("Check file permissions: %v", err)
		return check
	}

	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		check.Status = checkFail
		check.Message = fmt.Sprintf("Invalid JSON: %s", path)
		check.Hint = fmt.Sprintf("JSON error: %v", err)
		return check
	}
	check.Status = checkPass
	check.Message = path
	return check
}

func checkCredentials(app *appctx.App) Check {
	check := Check{Name: "Credentials"}
	cfg := app.Config
	if app.Secrets.Enabled() {
		cfg.FillSecrets(app.Secrets.Lookup)
	}

	if _, err := cfg.Identity(); err != nil {
		check.Status = checkFail
		check.Message = output.AsError(err).Message
		check.Hint = "Set ZOHO_* in the environment or .env, or run: zinv auth store"
		return check
	}

	var sources []string
	for _, name := range auth.SecretNames {
		sources = append(sources, fmt.Sprintf("%s from %s", name, cfg.Sources[name]))
	}
	check.Status = checkPass
	check.Message = strings.Join(sources, ", ")
	return check
}

func checkOrganization(app *appctx.App) Check {
	if app.Config.OrganizationID == "" {
		return Check{
			Name:    "Organization",
			Status:  checkWarn,
			Message: "No organization ID; requests are not scoped",
			Hint:    "Set ZOHO_ORGANIZATION_ID or pass --org",
		}
	}
	return Check{Name: "Organization", Status: checkPass, Message: app.Config.OrganizationID}
}

func checkAuthentication(ctx context.Context, app *appctx.App) Check {
	check := Check{Name: "Authentication"}

	mgr, err := app.Auth(ctx)
	if err != nil {
		check.Status = checkFail
		check.Message = output.AsError(err).Message
		return check
	}
	tok, err := mgr.EnsureValid(ctx)
	if err != nil {
		check.Status = checkFail
		check.Message = "Token refresh failed"
		check.Hint = err.Error()
		return check
	}

	check.Status = checkPass
	check.Message = fmt.Sprintf("Valid (expires in %s)", time.Until(tok.ExpiresAt).Round(time.Minute))
	return check
}

func checkAPIConnectivity(ctx context.Context, app *appctx.App, verbose bool) Check {
	check := Check{Name: "API Connectivity"}

	svc, err := app.Service(ctx)
	if err != nil {
		check.Status = checkFail
		check.Message = output.AsError(err).Message
		return check
	}

	start := time.Now()
	warehouses, err := svc.ListWarehouses(ctx)
	latency := time.Since(start)
	if err != nil {
		check.Status = checkFail
		check.Message = "Cannot reach the inventory API"
		check.Hint = fmt.Sprintf("Error: %v", err)
		return check
	}

	check.Status = checkPass
	check.Message = fmt.Sprintf("Inventory API reachable, %s", plural(len(warehouses), "warehouse", "warehouses"))
	if verbose {
		check.Message += fmt.Sprintf(" (%dms)", latency.Milliseconds())
	}
	return check
}

func checkJournal(app *appctx.App) Check {
	check := Check{Name: "Journal"}
	if !app.Config.JournalEnabled {
		check.Status = checkSkip
		check.Message = "Disabled"
		return check
	}
	if _, err := app.Journal(); err != nil {
		check.Status = checkFail
		check.Message = fmt.Sprintf("Cannot open %s", app.Config.JournalPath)
		check.Hint = err.Error()
		return check
	}
	check.Status = checkPass
	check.Message = app.Config.JournalPath
	return check
}

func checkSync(app *appctx.App) Check {
	cfg := app.Config
	if cfg.SyncBaseURL == "" || cfg.SyncSheetID == "" {
		return Check{
			Name:    "Spreadsheet Sync",
			Status:  checkSkip,
			Message: "Not configured",
			Hint:    "Set INVENTORY_API_BASE_URL and INVENTORY_SHEET_ID to use zinv sync",
		}
	}
	msg := fmt.Sprintf("Sheet %s", cfg.SyncSheetID)
	if cfg.WarehouseMappingFile != "" {
		msg += fmt.Sprintf(", mapping %s", cfg.WarehouseMappingFile)
	}
	return Check{Name: "Spreadsheet Sync", Status: checkPass, Message: msg}
}

func summarizeChecks(checks []Check) *DoctorResult {
	result := &DoctorResult{Checks: checks}
	for _, c := range checks {
		switch c.Status {
		case checkPass:
			result.Passed++
		case checkFail:
			result.Failed++
		case checkWarn:
			result.Warned++
		case checkSkip:
			result.Skipped++
		}
	}
	return result
}
