// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/stockbridge/zinv/internal/auth"
	"github.com/stockbridge/zinv/internal/output"
)

// Defaults for the EU data center.
const (
	DefaultAPIDomain   = "https://www.zohoapis.eu"
	DefaultAccountsURL = "https://accounts.zoho.eu/oauth/v2/token"
	DefaultHTTPTimeout = 30 * time.Second
)

// Config holds the resolved configuration.
type Config struct {
	// Upstream settings
	APIDomain      string `json:"api_domain"`
	AccountsURL    string `json:"accounts_url"`
	OrganizationID string `json:"organization_id"`

	// Credential identity. Secrets never come from the JSON file.
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"-"`
	RefreshToken string `json:"-"`

	// Local state
	TokenFile      string        `json:"token_file"`
	HTTPTimeout    time.Duration `json:"-"`
	JournalPath    string        `json:"journal_path"`
	JournalEnabled bool          `json:"journal_enabled"`

	// Spreadsheet sync
	SyncBaseURL          string `json:"sync_base_url"`
	SyncSheetID          string `json:"sync_sheet_id"`
	WarehouseMappingFile string `json:"warehouse_mapping_file"`

	// Output settings
	Format string `json:"format"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceGlobal  Source = "global"
	SourceEnv     Source = "env"
	SourceKeyring Source = "keyring"
	SourceFlag    Source = "flag"
)

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	ConfigFile     string
	EnvFile        string
	APIDomain      string
	OrganizationID string
	TokenFile      string
	Format         string
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		APIDomain:      DefaultAPIDomain,
		AccountsURL:    DefaultAccountsURL,
		TokenFile:      auth.DefaultTokenPath(),
		HTTPTimeout:    DefaultHTTPTimeout,
		JournalPath:    filepath.Join(dataDir(), "journal.db"),
		JournalEnabled: true,
		Format:         "auto",
		Sources:        make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > .env file > global config > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	path := overrides.ConfigFile
	if path == "" {
		path = globalConfigPath()
	}
	loadFromFile(cfg, path, SourceGlobal)

	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed env file %s: %v\n", envFile, err)
	}

	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	return cfg, nil
}

func loadFromFile(cfg *Config, path string, source Source) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	for _, secret := range []string{"refresh_token", "client_secret"} {
		if _, ok := fileCfg[secret]; ok {
			fmt.Fprintf(os.Stderr, "warning: ignoring %s in %s (use the environment or: zinv auth store)\n", secret, path)
		}
	}

	setString := func(key string, dst *string) {
		if v := getStringOrNumber(fileCfg, key); v != "" {
			*dst = v
			cfg.Sources[key] = string(source)
		}
	}
	setString("api_domain", &cfg.APIDomain)
	setString("accounts_url", &cfg.AccountsURL)
	setString("organization_id", &cfg.OrganizationID)
	setString("client_id", &cfg.ClientID)
	setString("token_file", &cfg.TokenFile)
	setString("journal_path", &cfg.JournalPath)
	setString("sync_base_url", &cfg.SyncBaseURL)
	setString("sync_sheet_id", &cfg.SyncSheetID)
	setString("warehouse_mapping_file", &cfg.WarehouseMappingFile)
	setString("format", &cfg.Format)

	if v, ok := fileCfg["journal_enabled"].(bool); ok {
		cfg.JournalEnabled = v
		cfg.Sources["journal_enabled"] = string(source)
	}
	if v, ok := fileCfg["http_timeout_seconds"].(float64); ok && v >= 0 {
		cfg.HTTPTimeout = time.Duration(v * float64(time.Second))
		cfg.Sources["http_timeout"] = string(source)
	}
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(cfg *Config) {
	setEnv := func(name, key string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
			cfg.Sources[key] = string(SourceEnv)
		}
	}
	setEnv("ZOHO_REFRESH_TOKEN", "refresh_token", &cfg.RefreshToken)
	setEnv("ZOHO_CLIENT_ID", "client_id", &cfg.ClientID)
	setEnv("ZOHO_CLIENT_SECRET", "client_secret", &cfg.ClientSecret)
	setEnv("ZOHO_API_DOMAIN", "api_domain", &cfg.APIDomain)
	setEnv("ZOHO_ACCOUNTS_URL", "accounts_url", &cfg.AccountsURL)
	setEnv("ZOHO_ORGANIZATION_ID", "organization_id", &cfg.OrganizationID)
	setEnv("ZINV_TOKEN_FILE", "token_file", &cfg.TokenFile)
	setEnv("ZINV_JOURNAL_PATH", "journal_path", &cfg.JournalPath)
	setEnv("INVENTORY_API_BASE_URL", "sync_base_url", &cfg.SyncBaseURL)
	setEnv("INVENTORY_SHEET_ID", "sync_sheet_id", &cfg.SyncSheetID)
	setEnv("ZINV_WAREHOUSE_MAPPING", "warehouse_mapping_file", &cfg.WarehouseMappingFile)

	if v := os.Getenv("ZINV_JOURNAL_ENABLED"); v != "" {
		if b, ok := parseEnvBool(v); ok {
			cfg.JournalEnabled = b
			cfg.Sources["journal_enabled"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("ZINV_HTTP_TIMEOUT"); v != "" {
		if d, ok := parseEnvDuration(v); ok {
			cfg.HTTPTimeout = d
			cfg.Sources["http_timeout"] = string(SourceEnv)
		}
	}
}

// parseEnvBool parses a boolean environment variable strictly.
// Returns (value, true) for recognized values, (false, false) for unrecognized.
func parseEnvBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	default:
		return false, false
	}
}

// parseEnvDuration accepts Go durations ("45s") or bare seconds ("45").
func parseEnvDuration(v string) (time.Duration, bool) {
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d, true
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

// getStringOrNumber extracts a value that may be either a string or number in JSON.
// Organization ids are long digit strings and are often written unquoted.
func getStringOrNumber(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.APIDomain != "" {
		cfg.APIDomain = o.APIDomain
		cfg.Sources["api_domain"] = string(SourceFlag)
	}
	if o.OrganizationID != "" {
		cfg.OrganizationID = o.OrganizationID
		cfg.Sources["organization_id"] = string(SourceFlag)
	}
	if o.TokenFile != "" {
		cfg.TokenFile = o.TokenFile
		cfg.Sources["token_file"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
}

// SecretLookup reads a named secret from a secondary store such as the
// system keyring. ok is false when the secret is not stored.
type SecretLookup func(name string) (value string, ok bool)

// FillSecrets fills credentials still missing after env and flags from lookup.
func (cfg *Config) FillSecrets(lookup SecretLookup) {
	if lookup == nil {
		return
	}
	fill := func(key string, dst *string) {
		if *dst != "" {
			return
		}
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
			cfg.Sources[key] = string(SourceKeyring)
		}
	}
	fill(auth.SecretRefreshToken, &cfg.RefreshToken)
	fill(auth.SecretClientID, &cfg.ClientID)
	fill(auth.SecretClientSecret, &cfg.ClientSecret)
}

// Identity returns the credential identity, or a config error naming the
// first missing credential.
func (cfg *Config) Identity() (auth.Identity, error) {
	switch {
	case cfg.RefreshToken == "":
		return auth.Identity{}, output.ErrConfig("Refresh token is required (ZOHO_REFRESH_TOKEN)")
	case cfg.ClientID == "":
		return auth.Identity{}, output.ErrConfig("Client ID is required (ZOHO_CLIENT_ID)")
	case cfg.ClientSecret == "":
		return auth.Identity{}, output.ErrConfig("Client secret is required (ZOHO_CLIENT_SECRET)")
	}
	return auth.Identity{
		RefreshToken:   cfg.RefreshToken,
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		APIDomain:      NormalizeBaseURL(cfg.APIDomain),
		OrganizationID: cfg.OrganizationID,
	}, nil
}

// InventoryBaseURL returns the versioned inventory API root.
func (cfg *Config) InventoryBaseURL() string {
	return NormalizeBaseURL(cfg.APIDomain) + "/inventory/v1"
}

// Path helpers

func globalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "zinv")
}

func dataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "zinv")
}

// NormalizeBaseURL ensures consistent URL format (no trailing slash).
func NormalizeBaseURL(url string) string {
	return strings.TrimSuffix(url, "/")
}
