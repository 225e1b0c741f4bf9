package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stockbridge/zinv/internal/appctx"
	"github.com/stockbridge/zinv/internal/auth"
	"github.com/stockbridge/zinv/internal/config"
	"github.com/stockbridge/zinv/internal/output"
)

type configKind int

const (
	kindString configKind = iota
	kindBool
	kindSeconds
	kindFormat
)

// configKeys are the settings the config file may hold. Secrets are absent
// on purpose: they live in the environment or the keyring.
var configKeys = map[string]configKind{
	"api_domain":             kindString,
	"accounts_url":           kindString,
	"organization_id":        kindString,
	"client_id":              kindString,
	"token_file":             kindString,
	"journal_path":           kindString,
	"journal_enabled":        kindBool,
	"http_timeout_seconds":   kindSeconds,
	"sync_base_url":          kindString,
	"sync_sheet_id":          kindString,
	"warehouse_mapping_file": kindString,
	"format":                 kindFormat,
}

// NewConfigCmd creates the config command for managing configuration.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage zinv configuration.

Configuration is loaded from multiple sources with the following precedence:
  flags > env > .env file > keyring (secrets only) > config file > defaults

The config file lives at $XDG_CONFIG_HOME/zinv/config.json unless --config
names another. Refresh tokens and client secrets are never read from it.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetCmd(),
		newConfigUnsetCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Display the current effective configuration with the source of each value.",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

type configValue struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}
	cfg := app.Config
	if app.Secrets.Enabled() {
		cfg.FillSecrets(app.Secrets.Lookup)
	}

	values := map[string]string{
		"api_domain":             cfg.APIDomain,
		"accounts_url":           cfg.AccountsURL,
		"organization_id":        cfg.OrganizationID,
		"client_id":              cfg.ClientID,
		"client_secret":          mask(cfg.ClientSecret),
		"refresh_token":          mask(cfg.RefreshToken),
		"token_file":             cfg.TokenFile,
		"journal_path":           cfg.JournalPath,
		"journal_enabled":        strconv.FormatBool(cfg.JournalEnabled),
		"http_timeout":           cfg.HTTPTimeout.String(),
		"sync_base_url":          cfg.SyncBaseURL,
		"sync_sheet_id":          cfg.SyncSheetID,
		"warehouse_mapping_file": cfg.WarehouseMappingFile,
		"format":                 cfg.Format,
	}

	data := make(map[string]configValue, len(values))
	for key, v := range values {
		source := cfg.Sources[key]
		if source == "" {
			source = string(config.SourceDefault)
		}
		if v == "" {
			source = "unset"
		}
		data[key] = configValue{Value: v, Source: source}
	}

	return app.OK(data,
		output.WithSummary("Effective configuration"),
		output.WithMeta("path", configPath(app)))
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

func configPath(app *appctx.App) string {
	if app.Flags.ConfigFile != "" {
		return app.Flags.ConfigFile
	}
	return filepath.Join(config.GlobalConfigDir(), "config.json")
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a value in the config file.

Valid keys: ` + strings.Join(sortedConfigKeys(), ", "),
		Example: `  zinv config set organization_id 20071234
  zinv config set journal_enabled false
  zinv config set http_timeout_seconds 60`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			key, value := args[0], args[1]

			if key == auth.SecretRefreshToken || key == auth.SecretClientSecret {
				return output.ErrUsageHint(fmt.Sprintf("%s is not stored in the config file", key),
					"Use the environment, a .env file or: zinv auth store")
			}
			kind, ok := configKeys[key]
			if !ok {
				return output.ErrUsage(fmt.Sprintf("Invalid config key %q. Valid keys: %s", key, strings.Join(sortedConfigKeys(), ", ")))
			}

			var parsed any
			switch kind {
			case kindBool:
				b, ok := parseBoolFlag(value)
				if !ok {
					return output.ErrUsage(fmt.Sprintf("%s must be true/false (or 1/0)", key))
				}
				parsed = b
			case kindSeconds:
				secs, err := strconv.ParseFloat(value, 64)
				if err != nil || secs < 0 {
					return output.ErrUsage(fmt.Sprintf("%s must be a non-negative number of seconds", key))
				}
				parsed = secs
			case kindFormat:
				if !slices.Contains([]string{"auto", "json", "styled", "quiet"}, value) {
					return output.ErrUsage("format must be auto, json, styled or quiet")
				}
				parsed = value
			default:
				parsed = value
			}

			path := configPath(app)
			data, err := readConfigFile(path)
			if err != nil {
				return err
			}
			data[key] = parsed
			if err := writeConfigFile(path, data); err != nil {
				return err
			}

			return app.OK(map[string]any{
				"key":    key,
				"value":  parsed,
				"path":   path,
				"status": "set",
			}, output.WithSummary(fmt.Sprintf("Set %s = %s", key, value)))
		},
	}
}

func newConfigUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Unset a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			key := args[0]

			path := configPath(app)
			data, err := readConfigFile(path)
			if err != nil {
				return err
			}
			if _, exists := data[key]; !exists {
				return app.OK(map[string]any{
					"key":    key,
					"status": "not_set",
				}, output.WithSummary(fmt.Sprintf("Key not set: %s", key)))
			}

			delete(data, key)
			if err := writeConfigFile(path, data); err != nil {
				return err
			}
			return app.OK(map[string]any{
				"key":    key,
				"path":   path,
				"status": "unset",
			}, output.WithSummary(fmt.Sprintf("Unset %s", key)))
		},
	}
}

func sortedConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func parseBoolFlag(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// readConfigFile returns the file's keys. A missing file is empty; a
// malformed one is a config error so set never clobbers it.
func readConfigFile(path string) (map[string]any, error) {
	data := make(map[string]any)
	raw, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config location
	if errors.Is(err, fs.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, output.ErrConfig(fmt.Sprintf("Config file %s is not valid JSON: %v", path, err))
	}
	return data, nil
}

func writeConfigFile(path string, data map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := atomicWriteFile(path, append(raw, '\n')); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// atomicWriteFile writes data to a file atomically using temp+rename.
// Files are always created with 0600 permissions (owner read/write only).
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Windows: rename fails when the destination exists.
	if err := os.Rename(tmpPath, path); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(path)
			return os.Rename(tmpPath, path)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}
