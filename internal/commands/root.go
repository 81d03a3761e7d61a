package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "market-sync",
	Short: "Equity Daily-Candle Backfill Engine",
	Long: `An incremental backfill engine for equity daily candles.

Features:
• Incremental per-symbol catch-up from the last stored trading day
• Year-sized chunked fetching with bounded retry and backoff
• Idempotent SQLite persistence (re-runs never duplicate or overwrite)
• Append-only run log doubling as the progress protocol
• HTTP monitor reconstructing live progress from the log tail`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
