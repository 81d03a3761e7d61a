package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/market-sync/internal/api"
	"github.com/market-sync/internal/database"
	"github.com/market-sync/internal/monitor"
	"github.com/market-sync/pkg/config"
	"github.com/market-sync/pkg/logger"
)

var (
	monitorPort int
	monitorHost string
	logLevel    string
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the backfill monitor server",
	Long: `Start the HTTP monitor for backfill progress.

The monitor never talks to the engine directly. It reconstructs live
progress by replaying the tail of the run log on every request, reads
store statistics straight from the SQLite file, and can launch a
detached backfill run on demand.

Examples:
  market-sync monitor                    # Start with default settings
  market-sync monitor --port 9090        # Start on custom port
  market-sync monitor --log-level debug  # Enable debug logging`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().IntVarP(&monitorPort, "port", "p", 0, "Server port")
	monitorCmd.Flags().StringVarP(&monitorHost, "host", "H", "", "Server host")
	monitorCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	// Load .env file first
	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override config with command line flags if provided
	if monitorHost != "" {
		cfg.Server.Host = monitorHost
	}
	if monitorPort != 0 {
		cfg.Server.Port = monitorPort
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	log.Info("Starting backfill monitor")

	store, err := database.NewSQLiteClient(&cfg.Store, log)
	if err != nil {
		return fmt.Errorf("failed to open candle store: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("failed to migrate candle store: %w", err)
	}

	// Runs launched from the dashboard re-invoke this binary so the
	// engine and the monitor share one configuration surface.
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve own binary path: %w", err)
	}

	server := api.NewServer(cfg, log,
		store,
		monitor.NewReconstructor(cfg.Logging.RunLogPath, log),
		monitor.NewRunner([]string{self, "backfill"}, log),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErr:
		return err
	case sig := <-interrupt:
		log.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown error")
		return err
	}

	log.Info("Monitor shutdown complete")
	return nil
}
