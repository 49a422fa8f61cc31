package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xhd193694/ninja/pkg/cli"
	"github.com/xhd193694/ninja/pkg/config"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the gateway.

Environment overrides (NINJA_*) are applied before validation, so the
result reflects what "ninja serve" would actually run with.

Examples:
  # Validate the default config file
  ninja validate

  # Validate a specific file and print the effective configuration
  ninja validate --config /etc/ninja/config.yaml --format yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json, yaml")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	switch cli.OutputFormat(validateFlags.format) {
	case cli.FormatJSON, cli.FormatYAML:
		return cli.NewFormatter(cli.OutputFormat(validateFlags.format)).FormatTo(cmd.OutOrStdout(), cfg)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%s: configuration valid\n", cfgFile)
		return nil
	}
}
