// Package cli wires the root command.
package cli

import (
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stockbridge/zinv/internal/appctx"
	"github.com/stockbridge/zinv/internal/commands"
	"github.com/stockbridge/zinv/internal/config"
	"github.com/stockbridge/zinv/internal/output"
	"github.com/stockbridge/zinv/internal/version"
)

// NewRootCmd creates the root cobra command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:   "zinv",
		Short: "Command-line interface for Zoho Inventory stock",
		Long: "zinv keeps Zoho Inventory stock levels in line with your source of truth.\n" +
			"It resolves items by name or SKU, reconciles quantities through inventory\n" +
			"adjustments, and syncs whole spreadsheets in one run.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip setup for help and version commands
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load(config.FlagOverrides{
				ConfigFile:     flags.ConfigFile,
				EnvFile:        flags.EnvFile,
				APIDomain:      flags.APIDomain,
				OrganizationID: flags.Org,
				TokenFile:      flags.TokenFile,
			})
			if err != nil {
				return err
			}

			app := appctx.NewApp(cfg)
			app.Stdout = cmd.OutOrStdout()
			app.Stderr = cmd.ErrOrStderr()
			app.Flags = flags
			app.ApplyFlags()

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	// --sheet_id and --sheet-id are the same flag
	cmd.SetGlobalNormalizationFunc(normalizeFlagName)

	// Output format flags
	cmd.PersistentFlags().BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	cmd.PersistentFlags().BoolVar(&flags.Styled, "styled", false, "Force styled output (ANSI colors)")
	cmd.PersistentFlags().StringVar(&flags.JQ, "jq", "", "Filter output data with a jq expression")

	// Context flags
	cmd.PersistentFlags().StringVar(&flags.Org, "org", "", "Organization ID (ZOHO_ORGANIZATION_ID)")
	cmd.PersistentFlags().StringVar(&flags.APIDomain, "api-domain", "", "API domain, e.g. https://www.zohoapis.com")
	cmd.PersistentFlags().StringVar(&flags.TokenFile, "token-file", "", "Access token cache file")
	cmd.PersistentFlags().StringVar(&flags.ConfigFile, "config", "", "Config file (default $XDG_CONFIG_HOME/zinv/config.json)")
	cmd.PersistentFlags().StringVar(&flags.EnvFile, "env-file", "", "Dotenv file to load (default .env)")

	// Behavior flags
	cmd.PersistentFlags().CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for operations, -vv for requests)")

	cmd.AddCommand(
		commands.NewItemsCmd(),
		commands.NewWarehousesCmd(),
		commands.NewStockCmd(),
		commands.NewAuthCmd(),
		commands.NewSyncCmd(),
		commands.NewHistoryCmd(),
		commands.NewConfigCmd(),
		commands.NewDoctorCmd(),
	)

	return cmd
}

// Execute runs the CLI and exits with the mapped status code.
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes args and returns the process exit code. Errors are rendered
// to stdout in the selected output format.
func Run(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	// Use ExecuteC to get the executed command (for correct context access)
	executedCmd, err := cmd.ExecuteC()

	app := appctx.FromContext(executedCmd.Context())
	if app != nil {
		if closeErr := app.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	if err == nil {
		return output.ExitOK
	}

	err = transformCobraError(err)
	apiErr := output.AsError(err)

	if app != nil {
		_ = app.Err(err)
		return apiErr.ExitCode()
	}

	// Fallback: output error directly (app not available, e.g., during setup)
	pf := cmd.PersistentFlags()
	format := output.FormatAuto
	quiet, _ := pf.GetBool("quiet")
	jsonFlag, _ := pf.GetBool("json")
	styled, _ := pf.GetBool("styled")
	switch {
	case quiet:
		format = output.FormatQuiet
	case jsonFlag:
		format = output.FormatJSON
	case styled:
		format = output.FormatStyled
	}

	writer := output.New(output.Options{
		Format: format,
		Writer: stdout,
	})
	_ = writer.Err(err)

	return apiErr.ExitCode()
}

func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

var (
	shorthandRe    = regexp.MustCompile(`unknown shorthand flag: '(.)' in (-\S+)`)
	requiredFlagRe = regexp.MustCompile(`required flag\(s\) "([\w-]+)"`)
	negativeArgRe  = regexp.MustCompile(`^-\d+$`)
)

// transformCobraError turns cobra's parse errors into usage errors.
func transformCobraError(err error) error {
	msg := err.Error()

	if flag, ok := strings.CutPrefix(msg, "flag needs an argument: "); ok {
		return output.ErrUsage(flag + " requires a value")
	}

	if flag, ok := strings.CutPrefix(msg, "unknown flag: "); ok {
		return output.ErrUsage("Unknown option: " + flag)
	}

	// A negative quantity looks like a shorthand flag to the parser.
	if m := shorthandRe.FindStringSubmatch(msg); m != nil {
		if negativeArgRe.MatchString(m[2]) {
			return output.ErrUsageHint("Unknown option: "+m[2], "Put -- before negative quantities, e.g. zinv stock adjust --id 42 -- -3")
		}
		return output.ErrUsage("Unknown option: " + m[2])
	}

	if strings.Contains(msg, "invalid argument") {
		return output.ErrUsage(msg)
	}

	if m := requiredFlagRe.FindStringSubmatch(msg); m != nil {
		return output.ErrUsage("--" + m[1] + " is required")
	}

	// Flag group violations from MarkFlagsOneRequired / MarkFlagsMutuallyExclusive
	if strings.Contains(msg, "flags in the group") {
		return output.ErrUsage(msg)
	}

	if strings.Contains(msg, "arg(s), received") || strings.HasPrefix(msg, "unknown command") {
		return output.ErrUsage(msg)
	}

	return err
}
