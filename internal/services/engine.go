package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/market-sync/internal/database"
	"github.com/market-sync/internal/exchange"
	"github.com/market-sync/pkg/config"
	"github.com/market-sync/pkg/models"
)

const sourceName = "FYERS"

// Engine orchestrates one backfill run: per symbol it asks the cursor
// for the needed range, the planner for provider-safe chunks, then
// fetch -> validate -> persist per chunk, committing per chunk. The run
// is strictly sequential; the only suspension points are the retry
// backoff and the inter-chunk pause.
//
// Every meaningful transition is written to the run log. That log is
// the engine's only channel to the monitor process, so the line shapes
// emitted here are load-bearing and must match what the monitor's
// reconstructor recognizes.
type Engine struct {
	store    *database.SQLiteClient
	provider exchange.HistoryProvider
	retry    *RetryExecutor
	cfg      *config.Config
	logger   *logrus.Entry
	runlog   *logrus.Logger
}

// NewEngine creates a backfill engine.
func NewEngine(
	store *database.SQLiteClient,
	provider exchange.HistoryProvider,
	cfg *config.Config,
	logger *logrus.Logger,
	runlog *logrus.Logger,
) *Engine {
	return &Engine{
		store:    store,
		provider: provider,
		retry:    NewRetryExecutor(cfg.Fetch.MaxAttempts, cfg.Fetch.RetryBaseDelay, logger),
		cfg:      cfg,
		logger:   logger.WithField("component", "engine"),
		runlog:   runlog,
	}
}

// Run processes the whole universe in order and returns the session
// summary. A fault while processing one symbol is caught at symbol
// scope, recorded as failed, and the loop continues: one bad symbol
// never halts the batch.
func (e *Engine) Run(ctx context.Context, symbols []string) *models.SessionSummary {
	summary := models.NewSessionSummary(symbols)
	end := civilDay(time.Now())
	lookbackDays := e.cfg.Fetch.LookbackYears * 365

	e.runlog.Infof("Backfill run started")
	e.runlog.Infof("Symbols: %d", len(symbols))
	e.runlog.Infof("Backfill range: %s -> %s", end.AddDate(0, 0, -lookbackDays).Format("2006-01-02"), end.Format("2006-01-02"))

	for i, symbol := range symbols {
		if err := e.processSymbol(ctx, summary, symbol, i+1, len(symbols), end, lookbackDays); err != nil {
			e.runlog.Infof("Error for %s: %v", symbol, err)
			e.logger.WithField("symbol", symbol).WithError(err).Error("Symbol processing failed")
			summary.MarkFailed(symbol, err)
		}
	}

	e.runlog.Infof("Backfill run finished - processed %d, updated %d, up to date %d, failed %d, %d candles inserted",
		summary.Processed, summary.Updated, summary.UpToDate, summary.Failed, summary.TotalCandles)

	return summary
}

// processSymbol runs the cursor/planner/fetch/persist pipeline for one
// symbol. A panic anywhere inside is converted to an error so the
// caller's fault isolation holds.
func (e *Engine) processSymbol(ctx context.Context, summary *models.SessionSummary, symbol string, pos, total int, end time.Time, lookbackDays int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	last, err := e.store.LatestTradeDate(ctx, symbol)
	if err != nil {
		return fmt.Errorf("failed to read cursor: %w", err)
	}

	rng, ok := NextRange(last, end, lookbackDays)
	if !ok {
		e.runlog.Infof("%s:%s is already up to date", e.cfg.Fetch.Exchange, symbol)
		summary.MarkUpToDate(symbol)
		return nil
	}

	mode := "Incremental update for"
	if last == nil {
		mode = "Full backfill for"
	}
	e.runlog.Infof("[%d/%d] %s %s:%s", pos, total, mode, e.cfg.Fetch.Exchange, symbol)
	summary.MarkActive(symbol)

	inserted := 0
	for _, chunk := range Chunks(rng.From, rng.To, e.cfg.Fetch.MaxChunkDays) {
		n, err := e.processChunk(ctx, symbol, chunk)
		if err != nil {
			return err
		}
		inserted += n

		// Cooperative rate limit against the provider, not a
		// correctness mechanism.
		if err := e.pause(ctx); err != nil {
			return err
		}
	}

	e.runlog.Infof("Completed - %d candles inserted", inserted)
	summary.MarkUpdated(symbol, inserted)
	return nil
}

// processChunk fetches, validates, and persists one date chunk. The
// chunk is committed as a unit; a chunk whose fetch attempts are
// exhausted is skipped and picked up by the next incremental run.
func (e *Engine) processChunk(ctx context.Context, symbol string, chunk DateChunk) (int, error) {
	e.runlog.Infof("  Fetching %s -> %s", chunk.From.Format("2006-01-02"), chunk.To.Format("2006-01-02"))

	resp, ok := e.retry.Fetch(ctx, symbol, func() (*exchange.HistoryResponse, error) {
		return e.provider.History(ctx, exchange.HistoryRequest{
			Symbol:     symbol,
			Resolution: e.cfg.Fetch.Resolution,
			RangeFrom:  chunk.From,
			RangeTo:    chunk.To,
		})
	})
	if !ok {
		e.runlog.Infof("  Skipped %s -> %s after %d attempts", chunk.From.Format("2006-01-02"), chunk.To.Format("2006-01-02"), e.cfg.Fetch.MaxAttempts)
		return 0, nil
	}

	candles := make([]models.Candle, 0, len(resp.Candles))
	for _, raw := range resp.Candles {
		candle, err := exchange.ParseCandle(symbol, sourceName, raw)
		if err != nil {
			e.logger.WithField("symbol", symbol).WithError(err).Warn("Dropping malformed candle")
			continue
		}
		if err := candle.Validate(); err != nil {
			e.logger.WithFields(logrus.Fields{
				"symbol": symbol,
				"date":   candle.DateString(),
			}).WithError(err).Warn("Dropping invalid candle")
			continue
		}
		candles = append(candles, candle)
	}

	inserted, err := e.store.InsertCandles(ctx, candles)
	if err != nil {
		return 0, fmt.Errorf("failed to persist chunk: %w", err)
	}

	return inserted, nil
}

// pause sleeps the fixed inter-chunk delay, honoring cancellation.
func (e *Engine) pause(ctx context.Context) error {
	if e.cfg.Fetch.ChunkPause <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.cfg.Fetch.ChunkPause):
		return nil
	}
}
