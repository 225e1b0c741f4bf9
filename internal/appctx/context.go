// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stockbridge/zinv/internal/api"
	"github.com/stockbridge/zinv/internal/auth"
	"github.com/stockbridge/zinv/internal/config"
	"github.com/stockbridge/zinv/internal/inventory"
	"github.com/stockbridge/zinv/internal/journal"
	"github.com/stockbridge/zinv/internal/logger"
	"github.com/stockbridge/zinv/internal/output"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands. Upstream
// clients are built on first use so commands that never touch the network
// do not need credentials.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Output  *output.Writer
	Secrets *auth.SecretStore

	// Flags holds the global flag values
	Flags GlobalFlags

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer

	mu      sync.Mutex
	http    *http.Client
	authMgr *auth.Manager
	client  *api.Client
	service *inventory.Service
	journal *journal.Journal
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON   bool
	Quiet  bool
	Styled bool
	JQ     string

	// Context flags
	Org        string
	APIDomain  string
	TokenFile  string
	ConfigFile string
	EnvFile    string

	// Verbose is 0=warnings, 1=operations, 2=requests (stacks with -v -v or -vv)
	Verbose int
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config) *App {
	a := &App{
		Config:  cfg,
		Logger:  logger.Nop(),
		Secrets: auth.NewSecretStore(),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
	a.Output = output.New(output.Options{
		Format: output.ParseFormat(cfg.Format),
		Writer: a.Stdout,
	})
	return a
}

// ApplyFlags applies global flag values to output and logging.
func (a *App) ApplyFlags() {
	format := output.ParseFormat(a.Config.Format)
	switch {
	case a.Flags.Quiet:
		format = output.FormatQuiet
	case a.Flags.JSON:
		format = output.FormatJSON
	case a.Flags.Styled:
		format = output.FormatStyled
	}
	a.Output = output.New(output.Options{
		Format: format,
		Writer: a.Stdout,
		JQ:     a.Flags.JQ,
	})

	a.Logger = logger.New(a.Stderr, logger.VerbosityFromEnv(a.Flags.Verbose))
}

func (a *App) httpClient() *http.Client {
	if a.http == nil {
		a.http = &http.Client{Timeout: a.Config.HTTPTimeout}
	}
	return a.http
}

// Auth returns the token manager, building it on first use. Missing
// credentials are a config error.
func (a *App) Auth(ctx context.Context) (*auth.Manager, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authLocked(ctx)
}

func (a *App) authLocked(ctx context.Context) (*auth.Manager, error) {
	if a.authMgr != nil {
		return a.authMgr, nil
	}
	if a.Secrets != nil && a.Secrets.Enabled() {
		a.Config.FillSecrets(a.Secrets.Lookup)
	}
	id, err := a.Config.Identity()
	if err != nil {
		return nil, err
	}
	a.authMgr = auth.NewManager(ctx, id,
		auth.NewTokenCache(a.Config.TokenFile, time.Now),
		auth.WithHTTPClient(a.httpClient()),
		auth.WithTokenURL(a.Config.AccountsURL),
		auth.WithLogger(a.Logger.Named("auth")),
	)
	return a.authMgr, nil
}

// Client returns the inventory API client.
func (a *App) Client(ctx context.Context) (*api.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clientLocked(ctx)
}

func (a *App) clientLocked(ctx context.Context) (*api.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	mgr, err := a.authLocked(ctx)
	if err != nil {
		return nil, err
	}
	a.client = api.NewClient(api.Config{
		BaseURL:        a.Config.InventoryBaseURL(),
		OrganizationID: a.Config.OrganizationID,
		HTTPClient:     a.httpClient(),
		Logger:         a.Logger.Named("api"),
	}, mgr)
	return a.client, nil
}

// Service returns the inventory service. When the journal is enabled every
// reconciliation is recorded; a journal that cannot be opened is logged and
// skipped.
func (a *App) Service(ctx context.Context) (*inventory.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.service != nil {
		return a.service, nil
	}
	client, err := a.clientLocked(ctx)
	if err != nil {
		return nil, err
	}

	opts := []inventory.Option{inventory.WithLogger(a.Logger.Named("inventory"))}
	if a.Config.JournalEnabled {
		j, err := a.journalLocked()
		if err != nil {
			a.Logger.Warn("adjustment journal unavailable", zap.Error(err))
		} else {
			opts = append(opts, inventory.WithRecorder(j))
		}
	}
	a.service = inventory.NewService(client, opts...)
	return a.service, nil
}

// Journal opens the local adjustment journal.
func (a *App) Journal() (*journal.Journal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.Config.JournalEnabled {
		return nil, output.ErrConfig("Adjustment journal is disabled (journal_enabled=false)")
	}
	return a.journalLocked()
}

func (a *App) journalLocked() (*journal.Journal, error) {
	if a.journal != nil {
		return a.journal, nil
	}
	j, err := journal.Open(a.Config.JournalPath)
	if err != nil {
		return nil, err
	}
	a.journal = j
	return j, nil
}

// HTTPClient returns the shared HTTP client.
func (a *App) HTTPClient() *http.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.httpClient()
}

// Close releases the journal and flushes the logger.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.Logger.Sync()
	if a.journal == nil {
		return nil
	}
	err := a.journal.Close()
	a.journal = nil
	return err
}

// OK outputs a success response.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	return a.Output.OK(data, opts...)
}

// Err outputs an error response.
func (a *App) Err(err error) error {
	return a.Output.Err(err)
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
