package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ninja",
	Short: "Ninja - reverse-proxy gateway for conversational AI traffic",
	Long: `Ninja is a reverse-proxy gateway that fronts the OpenAI platform and
web API surfaces.

It provides:
  - Transparent proxying of /dashboard, /v1, /backend-api, and /public-api
  - Session-cookie authentication with proactive credential renewal
  - Token-bucket admission control (in-process or shared across processes)
  - Event-stream re-conversion from full snapshots to incremental deltas
  - An optional TLS-intercepting pre-auth proxy for anti-bot cookie capture`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
