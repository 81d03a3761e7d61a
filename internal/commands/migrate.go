package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/market-sync/internal/database"
	"github.com/market-sync/pkg/config"
	"github.com/market-sync/pkg/logger"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the candle store schema",
	Long: `Apply the candle store schema to the SQLite database.

The schema is idempotent: running migrate against an existing store is
a no-op. The backfill and monitor commands also apply it on startup,
so this command mainly serves first-time setup and CI.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			fmt.Printf("Note: .env file not loaded: %v\n", err)
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		log, err := logger.New(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to setup logger: %w", err)
		}

		store, err := database.NewSQLiteClient(&cfg.Store, log)
		if err != nil {
			return fmt.Errorf("failed to open candle store: %w", err)
		}
		defer store.Close()

		if err := store.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		log.WithField("path", cfg.Store.Path).Info("Candle store schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
