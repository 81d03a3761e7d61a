package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/market-sync/internal/database"
	"github.com/market-sync/internal/exchange"
	"github.com/market-sync/internal/services"
	"github.com/market-sync/pkg/config"
	"github.com/market-sync/pkg/logger"
)

var (
	backfillSymbol string
	lookbackYears  int
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Backfill historical daily candles",
	Long: `Run one incremental backfill pass over the symbol universe.

For each symbol the engine looks up the last stored trading day and
fetches only the missing range, in chunks, with bounded retry. Symbols
already covering today are skipped. The run appends its progress to the
run log, which the monitor serves as a live dashboard.

Exits with an error immediately if the provider access token is
missing or expired: a half-run with a dead token would only burn the
rate budget.

Examples:
  market-sync backfill                  # Catch up the whole universe
  market-sync backfill --symbol TCS     # Catch up a single symbol
  market-sync backfill --years 5        # Deeper first-time backfill`,
	RunE: runBackfill,
}

func init() {
	backfillCmd.Flags().StringVar(&backfillSymbol, "symbol", "", "Restrict the run to one universe symbol (e.g. TCS)")
	backfillCmd.Flags().IntVar(&lookbackYears, "years", 0, "Override the full-backfill lookback in years")

	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	// Load .env file first
	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if lookbackYears > 0 {
		cfg.Fetch.LookbackYears = lookbackYears
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	// Token precondition: refuse to start a run with a dead token.
	token, err := exchange.LoadToken(cfg.Fyers.TokenPath)
	if err != nil {
		return err
	}

	symbols, err := services.LoadUniverse(&cfg.Universe)
	if err != nil {
		return fmt.Errorf("failed to load symbol universe: %w", err)
	}
	if backfillSymbol != "" {
		symbols, err = filterUniverse(symbols, backfillSymbol)
		if err != nil {
			return err
		}
	}

	store, err := database.NewSQLiteClient(&cfg.Store, log)
	if err != nil {
		return fmt.Errorf("failed to open candle store: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("failed to migrate candle store: %w", err)
	}

	runlog, closeRunLog, err := logger.NewRunLogger(cfg.Logging.RunLogPath)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer closeRunLog()

	provider := exchange.NewFyersClient(&cfg.Fyers, cfg.Fetch.Exchange, token, log)
	engine := services.NewEngine(store, provider, cfg, log, runlog)

	summary := engine.Run(cmd.Context(), symbols)

	if summary.Failed > 0 {
		return fmt.Errorf("backfill finished with %d failed symbols", summary.Failed)
	}
	return nil
}

// filterUniverse narrows the universe to a single requested symbol,
// erroring if the symbol is not part of the universe at all.
func filterUniverse(symbols []string, want string) ([]string, error) {
	for _, s := range symbols {
		if s == want {
			return []string{s}, nil
		}
	}
	return nil, fmt.Errorf("symbol %s is not in the universe file", want)
}
