package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockbridge/zinv/internal/auth"
	"github.com/stockbridge/zinv/internal/output"
)

var zohoEnv = []string{
	"ZOHO_REFRESH_TOKEN", "ZOHO_CLIENT_ID", "ZOHO_CLIENT_SECRET",
	"ZOHO_API_DOMAIN", "ZOHO_ACCOUNTS_URL", "ZOHO_ORGANIZATION_ID",
	"ZINV_TOKEN_FILE", "ZINV_JOURNAL_PATH", "ZINV_JOURNAL_ENABLED", "ZINV_HTTP_TIMEOUT",
	"INVENTORY_API_BASE_URL", "INVENTORY_SHEET_ID", "ZINV_WAREHOUSE_MAPPING",
}

// isolate clears the variables Load reads and points config dirs at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range zohoEnv {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_DATA_HOME", dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(FlagOverrides{EnvFile: filepath.Join(dir, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIDomain, cfg.APIDomain)
	assert.Equal(t, DefaultAccountsURL, cfg.AccountsURL)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.Equal(t, filepath.Join(dir, ".zinv", "token.json"), cfg.TokenFile)
	assert.Equal(t, filepath.Join(dir, "zinv", "journal.db"), cfg.JournalPath)
	assert.True(t, cfg.JournalEnabled)
	assert.Equal(t, "https://www.zohoapis.eu/inventory/v1", cfg.InventoryBaseURL())
}

func TestLoadFromEnv(t *testing.T) {
	dir := isolate(t)
	t.Setenv("ZOHO_REFRESH_TOKEN", "rt")
	t.Setenv("ZOHO_CLIENT_ID", "cid")
	t.Setenv("ZOHO_CLIENT_SECRET", "secret")
	t.Setenv("ZOHO_API_DOMAIN", "https://www.zohoapis.com/")
	t.Setenv("ZOHO_ORGANIZATION_ID", "20071234")
	t.Setenv("ZINV_JOURNAL_ENABLED", "false")
	t.Setenv("ZINV_HTTP_TIMEOUT", "5")

	cfg, err := Load(FlagOverrides{EnvFile: filepath.Join(dir, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "rt", cfg.RefreshToken)
	assert.Equal(t, "20071234", cfg.OrganizationID)
	assert.False(t, cfg.JournalEnabled)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, string(SourceEnv), cfg.Sources["organization_id"])
	assert.Equal(t, "https://www.zohoapis.com/inventory/v1", cfg.InventoryBaseURL())

	id, err := cfg.Identity()
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{
		RefreshToken:   "rt",
		ClientID:       "cid",
		ClientSecret:   "secret",
		APIDomain:      "https://www.zohoapis.com",
		OrganizationID: "20071234",
	}, id)
}

func TestGlobalFileLayer(t *testing.T) {
	dir := isolate(t)
	cfgDir := filepath.Join(dir, "zinv")
	require.NoError(t, os.MkdirAll(cfgDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte(`{
		"organization_id": 20099999,
		"client_id": "file-client",
		"client_secret": "should-be-ignored",
		"journal_enabled": false,
		"http_timeout_seconds": 12
	}`), 0o600))

	cfg, err := Load(FlagOverrides{EnvFile: filepath.Join(dir, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "20099999", cfg.OrganizationID)
	assert.Equal(t, "file-client", cfg.ClientID)
	assert.Empty(t, cfg.ClientSecret)
	assert.False(t, cfg.JournalEnabled)
	assert.Equal(t, 12*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, string(SourceGlobal), cfg.Sources["client_id"])
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := isolate(t)
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ZOHO_CLIENT_ID=from-dotenv\nZOHO_CLIENT_SECRET=dotenv-secret\n"), 0o600))
	t.Setenv("ZOHO_CLIENT_ID", "from-env")

	cfg, err := Load(FlagOverrides{EnvFile: envFile})
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.ClientID)
	assert.Equal(t, "dotenv-secret", cfg.ClientSecret)
}

func TestFlagsOverrideEnv(t *testing.T) {
	dir := isolate(t)
	t.Setenv("ZOHO_ORGANIZATION_ID", "env-org")

	cfg, err := Load(FlagOverrides{
		EnvFile:        filepath.Join(dir, "missing.env"),
		OrganizationID: "flag-org",
		TokenFile:      "/tmp/token.json",
		Format:         "json",
	})
	require.NoError(t, err)

	assert.Equal(t, "flag-org", cfg.OrganizationID)
	assert.Equal(t, "/tmp/token.json", cfg.TokenFile)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, string(SourceFlag), cfg.Sources["organization_id"])
}

func TestIdentityMissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"no refresh token", Config{ClientID: "c", ClientSecret: "s"}, "Refresh token is required (ZOHO_REFRESH_TOKEN)"},
		{"no client id", Config{RefreshToken: "r", ClientSecret: "s"}, "Client ID is required (ZOHO_CLIENT_ID)"},
		{"no client secret", Config{RefreshToken: "r", ClientID: "c"}, "Client secret is required (ZOHO_CLIENT_SECRET)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Identity()
			require.Error(t, err)
			e := output.AsError(err)
			assert.Equal(t, output.CodeConfig, e.Code)
			assert.Equal(t, tt.want, e.Message)
		})
	}
}

func TestFillSecretsOnlyFillsGaps(t *testing.T) {
	cfg := Default()
	cfg.ClientID = "env-client"

	stored := map[string]string{
		auth.SecretRefreshToken: "kr-refresh",
		auth.SecretClientID:     "kr-client",
		auth.SecretClientSecret: "kr-secret",
	}
	cfg.FillSecrets(func(name string) (string, bool) {
		v, ok := stored[name]
		return v, ok
	})

	assert.Equal(t, "kr-refresh", cfg.RefreshToken)
	assert.Equal(t, "env-client", cfg.ClientID)
	assert.Equal(t, "kr-secret", cfg.ClientSecret)
	assert.Equal(t, string(SourceKeyring), cfg.Sources[auth.SecretRefreshToken])
}

func TestParseEnvDuration(t *testing.T) {
	d, ok := parseEnvDuration("1m")
	assert.True(t, ok)
	assert.Equal(t, time.Minute, d)

	d, ok = parseEnvDuration("0")
	assert.True(t, ok)
	assert.Zero(t, d)

	_, ok = parseEnvDuration("soon")
	assert.False(t, ok)
}
