package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/market-sync/pkg/config"
	"github.com/market-sync/pkg/models"
)

// SQLiteClient handles candle store operations. The store is a single
// SQLite file shared by the engine (writer) and the monitor (reader);
// WAL mode and a busy timeout let both poll it without coordination.
type SQLiteClient struct {
	db     *sql.DB
	logger *logrus.Entry
	cfg    *config.StoreConfig
}

// NewSQLiteClient creates a new candle store client
func NewSQLiteClient(cfg *config.StoreConfig, logger *logrus.Logger) (*SQLiteClient, error) {
	dsn := cfg.Path + "?_busy_timeout=5000&_journal_mode=WAL"

	logger.WithField("path", cfg.Path).Debug("Opening candle store")

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open candle store: %w", err)
	}

	// SQLite serializes writers; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping candle store: %w", err)
	}

	return &SQLiteClient{
		db:     db,
		logger: logger.WithField("component", "store"),
		cfg:    cfg,
	}, nil
}

// Close closes the store connection
func (sc *SQLiteClient) Close() error {
	return sc.db.Close()
}

// Health checks store health
func (sc *SQLiteClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return sc.db.PingContext(ctx)
}

// Migrate creates the candle table and its natural-key index. It is
// idempotent and safe to run before every engine start.
func (sc *SQLiteClient) Migrate(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			symbol      TEXT    NOT NULL,
			trade_date  TEXT    NOT NULL,
			open        REAL    NOT NULL,
			high        REAL    NOT NULL,
			low         REAL    NOT NULL,
			close       REAL    NOT NULL,
			volume      INTEGER NOT NULL,
			source      TEXT    NOT NULL,
			UNIQUE (symbol, trade_date)
		)
	`, sc.cfg.TableName)

	if _, err := sc.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create candle table: %w", err)
	}

	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_symbol_date ON %s (symbol, trade_date)`,
		sc.cfg.TableName, sc.cfg.TableName,
	)
	if _, err := sc.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("failed to create candle index: %w", err)
	}

	sc.logger.WithField("table", sc.cfg.TableName).Debug("Store schema ready")
	return nil
}

// InsertCandles writes one chunk of candles in a single transaction with
// insert-if-absent semantics on (symbol, trade_date). Re-running the same
// chunk never duplicates or overwrites rows. Returns the number of rows
// actually inserted.
func (sc *SQLiteClient) InsertCandles(ctx context.Context, candles []models.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	tx, err := sc.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT OR IGNORE INTO %s
		(symbol, trade_date, open, high, low, close, volume, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sc.cfg.TableName)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, c := range candles {
		result, err := stmt.ExecContext(ctx,
			c.Symbol,
			c.DateString(),
			c.Open,
			c.High,
			c.Low,
			c.Close,
			c.Volume,
			c.Source,
		)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to insert candle %s/%s: %w", c.Symbol, c.DateString(), err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit chunk: %w", err)
	}

	return inserted, nil
}

// LatestTradeDate returns the most recent persisted trade date for a
// symbol, or nil when the symbol has never been fetched.
func (sc *SQLiteClient) LatestTradeDate(ctx context.Context, symbol string) (*time.Time, error) {
	query := fmt.Sprintf(`SELECT MAX(trade_date) FROM %s WHERE symbol = ?`, sc.cfg.TableName)

	var raw sql.NullString
	if err := sc.db.QueryRowContext(ctx, query, symbol).Scan(&raw); err != nil {
		return nil, fmt.Errorf("failed to query latest trade date: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}

	d, err := time.Parse("2006-01-02", raw.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trade date %q: %w", raw.String, err)
	}
	return &d, nil
}

// Stats computes aggregate store health: row count, distinct symbols,
// date bounds, and file size.
func (sc *SQLiteClient) Stats(ctx context.Context) (*models.StoreStats, error) {
	query := fmt.Sprintf(
		`SELECT COUNT(*), COUNT(DISTINCT symbol), COALESCE(MIN(trade_date), ''), COALESCE(MAX(trade_date), '') FROM %s`,
		sc.cfg.TableName,
	)

	stats := &models.StoreStats{}
	err := sc.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalRows,
		&stats.UniqueSymbols,
		&stats.MinDate,
		&stats.MaxDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query store stats: %w", err)
	}

	if stats.MinDate == "" {
		stats.MinDate = "N/A"
	}
	if stats.MaxDate == "" {
		stats.MaxDate = "N/A"
	}

	if info, err := os.Stat(sc.cfg.Path); err == nil {
		stats.SizeMB = float64(info.Size()) / (1024 * 1024)
	}

	return stats, nil
}

// RecentCandles returns the most recently written rows, newest first.
func (sc *SQLiteClient) RecentCandles(ctx context.Context, limit int) ([]models.Candle, error) {
	query := fmt.Sprintf(`
		SELECT symbol, trade_date, open, high, low, close, volume, source
		FROM %s
		ORDER BY rowid DESC
		LIMIT ?
	`, sc.cfg.TableName)

	rows, err := sc.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		var date string
		err := rows.Scan(&c.Symbol, &date, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		if d, err := time.Parse("2006-01-02", date); err == nil {
			c.TradeDate = d
		}
		candles = append(candles, c)
	}

	return candles, rows.Err()
}
