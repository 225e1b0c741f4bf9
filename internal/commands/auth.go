package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stockbridge/zinv/internal/auth"
	"github.com/stockbridge/zinv/internal/output"
	"github.com/stockbridge/zinv/internal/prompt"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage Zoho OAuth credentials",
		Long: `Manage Zoho OAuth credentials.

zinv exchanges a long-lived refresh token for short-lived access tokens and
caches the current access token on disk. Credentials come from the
environment (ZOHO_REFRESH_TOKEN, ZOHO_CLIENT_ID, ZOHO_CLIENT_SECRET), a .env
file, or the system keyring.`,
	}

	cmd.AddCommand(
		newAuthStatusCmd(),
		newAuthRefreshCmd(),
		newAuthTokenCmd(),
		newAuthStoreCmd(),
		newAuthClearCmd(),
	)

	return cmd
}

type credentialStatus struct {
	Authenticated bool              `json:"authenticated"`
	ExpiresAt     time.Time         `json:"expires_at,omitzero"`
	ExpiresIn     string            `json:"expires_in,omitempty"`
	CachePath     string            `json:"cache_path"`
	Organization  string            `json:"organization_id,omitempty"`
	Credentials   map[string]string `json:"credentials"`
	Keyring       bool              `json:"keyring"`
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cached token and credential sources",
		Long:  "Show the cached access token and where each credential comes from. Does not contact Zoho.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			cfg := app.Config
			if app.Secrets.Enabled() {
				cfg.FillSecrets(app.Secrets.Lookup)
			}

			st := credentialStatus{
				CachePath:    cfg.TokenFile,
				Organization: cfg.OrganizationID,
				Credentials:  make(map[string]string, len(auth.SecretNames)),
				Keyring:      app.Secrets.Enabled(),
			}
			for _, name := range auth.SecretNames {
				src := cfg.Sources[name]
				if src == "" {
					src = "missing"
				}
				st.Credentials[name] = src
			}

			now := time.Now()
			if tok, ok := auth.NewTokenCache(cfg.TokenFile, time.Now).Load(); ok {
				st.Authenticated = true
				st.ExpiresAt = tok.ExpiresAt
				st.ExpiresIn = tok.ExpiresAt.Sub(now).Round(time.Second).String()
			}

			summary := "No valid cached token"
			if st.Authenticated {
				summary = "Access token valid for " + st.ExpiresIn
			}
			if _, err := cfg.Identity(); err != nil {
				summary += "; credentials incomplete"
			}
			return app.OK(st, output.WithSummary(summary))
		},
	}
}

func newAuthRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			mgr, err := app.Auth(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := mgr.Refresh(cmd.Context()); err != nil {
				return err
			}
			st := mgr.Status()
			return app.OK(st, output.WithSummary("Token refreshed, expires in "+st.ExpiresIn))
		},
	}
}

func newAuthTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token",
		Long: `Print a valid access token, refreshing it first when it is near expiry.

Examples:
  curl -H "Authorization: Zoho-oauthtoken $(zinv auth token)" ...
  zinv auth token --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			mgr, err := app.Auth(cmd.Context())
			if err != nil {
				return err
			}
			tok, err := mgr.EnsureValid(cmd.Context())
			if err != nil {
				return err
			}

			// Raw token unless an envelope was asked for
			if app.Flags.JSON {
				return app.OK(tok)
			}
			_, err = fmt.Fprintln(app.Stdout, tok.AccessToken)
			return err
		},
	}
}

func newAuthStoreCmd() *cobra.Command {
	var refreshToken, clientID, clientSecret string
	var fromEnv, noPrompt bool

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Save credentials in the system keyring",
		Long: `Save OAuth credentials in the system keyring.

On a terminal, credentials not given by flags or --from-env are asked for,
with the refresh token and client secret hidden as they are typed.`,
		Example: `  zinv auth store
  zinv auth store --client-id 1000.XYZ
  zinv auth store --from-env --no-prompt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if !app.Secrets.Enabled() {
				return output.ErrUsageHint("Keyring is disabled", "Unset ZINV_NO_KEYRING to use the system keyring")
			}

			values := map[string]string{
				auth.SecretRefreshToken: refreshToken,
				auth.SecretClientID:     clientID,
				auth.SecretClientSecret: clientSecret,
			}
			if fromEnv {
				env := map[string]string{
					auth.SecretRefreshToken: "ZOHO_REFRESH_TOKEN",
					auth.SecretClientID:     "ZOHO_CLIENT_ID",
					auth.SecretClientSecret: "ZOHO_CLIENT_SECRET",
				}
				for name, envName := range env {
					if values[name] == "" {
						values[name] = os.Getenv(envName)
					}
				}
			}

			if !noPrompt && prompt.Interactive() {
				if err := askMissingCredentials(values, terminalAsker{}); err != nil {
					return err
				}
			}

			var stored []string
			for _, name := range auth.SecretNames {
				if values[name] == "" {
					continue
				}
				if err := app.Secrets.Set(name, values[name]); err != nil {
					return err
				}
				stored = append(stored, name)
			}
			if len(stored) == 0 {
				return output.ErrUsageHint("No credentials given", "Pass --refresh-token, --client-id, --client-secret or --from-env")
			}
			return app.OK(map[string]any{"stored": stored},
				output.WithSummary(fmt.Sprintf("Stored %s in keyring", plural(len(stored), "credential", "credentials"))))
		},
	}

	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "OAuth refresh token")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth client secret")
	cmd.Flags().BoolVar(&fromEnv, "from-env", false, "Fill missing values from ZOHO_* environment variables")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Never ask for missing values")

	return cmd
}

// credentialAsker reads one credential from the user.
type credentialAsker interface {
	Secret(title, description string) (string, error)
	Input(title, placeholder string) (string, error)
}

type terminalAsker struct{}

func (terminalAsker) Secret(title, description string) (string, error) {
	return prompt.Secret(title, description)
}

func (terminalAsker) Input(title, placeholder string) (string, error) {
	return prompt.Input(title, placeholder)
}

// askMissingCredentials fills empty entries of values. The client ID is
// read visibly; the refresh token and client secret are hidden.
func askMissingCredentials(values map[string]string, ask credentialAsker) error {
	for _, name := range auth.SecretNames {
		if values[name] != "" {
			continue
		}
		var (
			v   string
			err error
		)
		switch name {
		case auth.SecretClientID:
			v, err = ask.Input("Client ID", "1000.XXXXXXXX")
		case auth.SecretRefreshToken:
			v, err = ask.Secret("Refresh token", "Leave empty to skip")
		default:
			v, err = ask.Secret("Client secret", "Leave empty to skip")
		}
		if err != nil {
			return err
		}
		values[name] = v
	}
	return nil
}

func newAuthClearCmd() *cobra.Command {
	var secrets bool

	cmd := &cobra.Command{
		Use:     "clear",
		Aliases: []string{"logout"},
		Short:   "Delete the cached access token",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			cache := auth.NewTokenCache(app.Config.TokenFile, time.Now)
			if err := cache.Clear(); err != nil {
				return err
			}
			result := map[string]any{"token_cleared": cache.Path()}
			summary := "Cleared cached access token"

			if secrets {
				for _, name := range auth.SecretNames {
					if err := app.Secrets.Delete(name); err != nil {
						return fmt.Errorf("deleting %s from keyring: %w", name, err)
					}
				}
				result["secrets_cleared"] = auth.SecretNames
				summary += " and keyring credentials"
			}

			return app.OK(result, output.WithSummary(summary))
		},
	}

	cmd.Flags().BoolVar(&secrets, "secrets", false, "Also delete credentials stored in the keyring")

	return cmd
}
