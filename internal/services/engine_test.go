package services

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/market-sync/internal/database"
	"github.com/market-sync/internal/exchange"
	"github.com/market-sync/pkg/config"
	"github.com/market-sync/pkg/logger"
	"github.com/market-sync/pkg/models"
)

// fakeProvider serves canned history responses per symbol.
type fakeProvider struct {
	responses map[string]*exchange.HistoryResponse
	errs      map[string]error
	calls     []exchange.HistoryRequest
}

func (f *fakeProvider) History(_ context.Context, req exchange.HistoryRequest) (*exchange.HistoryResponse, error) {
	f.calls = append(f.calls, req)
	if err, ok := f.errs[req.Symbol]; ok {
		return nil, err
	}
	if resp, ok := f.responses[req.Symbol]; ok {
		return resp, nil
	}
	return &exchange.HistoryResponse{Status: "ok"}, nil
}

func candleRow(date string, o, h, l, c, v float64) []float64 {
	d, _ := time.Parse("2006-01-02", date)
	return []float64{float64(d.Unix()), o, h, l, c, v}
}

func newEngineFixture(t *testing.T, provider exchange.HistoryProvider) (*Engine, *database.SQLiteClient, *bytes.Buffer) {
	t.Helper()

	cfg := &config.Config{
		Store: config.StoreConfig{
			Path:      filepath.Join(t.TempDir(), "test.db"),
			TableName: "equity_daily_candles",
		},
		Fetch: config.FetchConfig{
			Exchange:       "NSE",
			Resolution:     "D",
			LookbackYears:  2,
			MaxChunkDays:   365,
			MaxAttempts:    2,
			RetryBaseDelay: time.Millisecond,
			ChunkPause:     0,
		},
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	store, err := database.NewSQLiteClient(&cfg.Store, log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	var runBuf bytes.Buffer
	runlog := logrus.New()
	runlog.SetFormatter(&logger.RunLogFormatter{})
	runlog.SetOutput(&runBuf)

	return NewEngine(store, provider, cfg, log, runlog), store, &runBuf
}

func TestEngineFullBackfillInsertsCandles(t *testing.T) {
	provider := &fakeProvider{
		responses: map[string]*exchange.HistoryResponse{
			"TCS": {Status: "ok", Candles: [][]float64{
				candleRow("2024-01-10", 3500, 3550, 3480, 3520, 120000),
				candleRow("2024-01-11", 3520, 3560, 3500, 3540, 98000),
			}},
		},
	}

	engine, store, runBuf := newEngineFixture(t, provider)
	summary := engine.Run(context.Background(), []string{"TCS"})

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 2, summary.TotalCandles)
	assert.Equal(t, models.StatusUpdated, summary.Symbols["TCS"].Status)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalRows)

	out := runBuf.String()
	assert.Contains(t, out, "[1/1] Full backfill for NSE:TCS")
	assert.Contains(t, out, "Completed - 2 candles inserted")
}

func TestEngineSkipsUpToDateSymbolWithoutFetching(t *testing.T) {
	provider := &fakeProvider{}
	engine, store, runBuf := newEngineFixture(t, provider)

	// A row for today means the next needed date is tomorrow.
	d, _ := time.Parse("2006-01-02", time.Now().UTC().Format("2006-01-02"))
	_, err := store.InsertCandles(context.Background(), []models.Candle{{
		Symbol: "TCS", TradeDate: d, Open: 1, High: 2, Low: 1, Close: 1.5, Volume: 10, Source: "FYERS",
	}})
	require.NoError(t, err)

	summary := engine.Run(context.Background(), []string{"TCS"})

	assert.Empty(t, provider.calls, "up-to-date symbol must issue zero remote calls")
	assert.Equal(t, models.StatusUpToDate, summary.Symbols["TCS"].Status)
	assert.Equal(t, 1, summary.UpToDate)
	assert.Contains(t, runBuf.String(), "NSE:TCS is already up to date")
}

func TestEngineIncrementalFetchStartsAfterLastDate(t *testing.T) {
	provider := &fakeProvider{
		responses: map[string]*exchange.HistoryResponse{
			"TCS": {Status: "ok"},
		},
	}
	engine, store, runBuf := newEngineFixture(t, provider)

	old, _ := time.Parse("2006-01-02", "2024-01-10")
	_, err := store.InsertCandles(context.Background(), []models.Candle{{
		Symbol: "TCS", TradeDate: old, Open: 1, High: 2, Low: 1, Close: 1.5, Volume: 10, Source: "FYERS",
	}})
	require.NoError(t, err)

	engine.Run(context.Background(), []string{"TCS"})

	require.NotEmpty(t, provider.calls)
	assert.Equal(t, "2024-01-11", provider.calls[0].RangeFrom.Format("2006-01-02"))
	assert.Contains(t, runBuf.String(), "Incremental update for NSE:TCS")
}

func TestEngineDropsInvalidCandles(t *testing.T) {
	provider := &fakeProvider{
		responses: map[string]*exchange.HistoryResponse{
			"TCS": {Status: "ok", Candles: [][]float64{
				candleRow("2024-01-10", 3500, 3550, 3480, 3520, 120000),
				candleRow("2024-01-11", 0, 10, 1, 5, 100),   // zero open
				candleRow("2024-01-12", 6, 5, 1, 7, 10),     // high below close
			}},
		},
	}

	engine, store, _ := newEngineFixture(t, provider)
	summary := engine.Run(context.Background(), []string{"TCS"})

	assert.Equal(t, 1, summary.TotalCandles)
	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalRows)
}

func TestEngineIsolatesSymbolFaults(t *testing.T) {
	provider := &fakeProvider{
		responses: map[string]*exchange.HistoryResponse{
			"INFY": {Status: "ok", Candles: [][]float64{
				candleRow("2024-01-10", 1500, 1520, 1480, 1510, 50000),
			}},
		},
		errs: map[string]error{
			"TCS": errors.New("connection refused"),
		},
	}

	engine, _, runBuf := newEngineFixture(t, provider)
	summary := engine.Run(context.Background(), []string{"TCS", "INFY"})

	// Exhausted fetches skip the chunk; the symbol still completes.
	assert.Equal(t, models.StatusUpToDate, summary.Symbols["TCS"].Status)
	assert.Equal(t, models.StatusUpdated, summary.Symbols["INFY"].Status)
	assert.Equal(t, 2, summary.Processed)
	assert.Contains(t, runBuf.String(), "Skipped")
}

func TestEngineRecordsFailureAndContinues(t *testing.T) {
	// A store-level fault (closed database) fails the symbol but not the run.
	provider := &fakeProvider{
		responses: map[string]*exchange.HistoryResponse{
			"TCS": {Status: "ok", Candles: [][]float64{
				candleRow("2024-01-10", 3500, 3550, 3480, 3520, 120000),
			}},
			"INFY": {Status: "ok", Candles: [][]float64{
				candleRow("2024-01-10", 1500, 1520, 1480, 1510, 50000),
			}},
		},
	}

	engine, store, runBuf := newEngineFixture(t, provider)
	store.Close()

	summary := engine.Run(context.Background(), []string{"TCS", "INFY"})

	assert.Equal(t, models.StatusFailed, summary.Symbols["TCS"].Status)
	assert.Equal(t, models.StatusFailed, summary.Symbols["INFY"].Status)
	assert.Equal(t, 2, summary.Failed)
	assert.Contains(t, runBuf.String(), "Error for TCS:")
}

func TestEngineIdempotentRerun(t *testing.T) {
	provider := &fakeProvider{
		responses: map[string]*exchange.HistoryResponse{
			"TCS": {Status: "ok", Candles: [][]float64{
				candleRow("2024-01-10", 3500, 3550, 3480, 3520, 120000),
			}},
		},
	}

	engine, store, _ := newEngineFixture(t, provider)
	first := engine.Run(context.Background(), []string{"TCS"})
	assert.Equal(t, 1, first.TotalCandles)

	// Second run re-fetches overlapping data; the store must not grow.
	second := engine.Run(context.Background(), []string{"TCS"})
	assert.Equal(t, 0, second.TotalCandles)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalRows)
}
