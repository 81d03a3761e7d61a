package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/market-sync/internal/services"
	"github.com/market-sync/pkg/config"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "Manage the symbol universe",
	Long:  "Commands for viewing the configured symbol universe",
}

var listSymbolsCmd = &cobra.Command{
	Use:   "list",
	Short: "List universe symbols",
	Long:  "List the usable symbols from the universe file, after placeholder filtering",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			fmt.Printf("Note: .env file not loaded: %v\n", err)
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		symbols, err := services.LoadUniverse(&cfg.Universe)
		if err != nil {
			return fmt.Errorf("failed to load symbol universe: %w", err)
		}

		for i, s := range symbols {
			fmt.Printf("%3d  %s:%s\n", i+1, cfg.Fetch.Exchange, s)
		}
		fmt.Printf("\n%d symbols from %s\n", len(symbols), cfg.Universe.File)
		return nil
	},
}

func init() {
	symbolsCmd.AddCommand(listSymbolsCmd)
	rootCmd.AddCommand(symbolsCmd)
}
