package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `env:", prefix=SERVER_"`
	Store    StoreConfig    `env:", prefix=STORE_"`
	Fyers    FyersConfig    `env:", prefix=FYERS_"`
	Fetch    FetchConfig    `env:", prefix=FETCH_"`
	Universe UniverseConfig `env:", prefix=UNIVERSE_"`
	Logging  LoggingConfig  `env:", prefix=LOG_"`
}

// ServerConfig holds the monitor HTTP server configuration
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
	CORSEnabled  bool          `env:"CORS_ENABLED, default=true"`
	CORSOrigins  []string      `env:"CORS_ORIGINS, default=*"`
}

// StoreConfig holds the SQLite candle store configuration
type StoreConfig struct {
	Path      string `env:"PATH, default=data/marketdata.db"`
	TableName string `env:"TABLE_NAME, default=equity_daily_candles"`
}

// FyersConfig holds the market-data provider configuration.
// The access token file is produced by the external login flow and is
// consumed read-only.
type FyersConfig struct {
	ClientID  string        `env:"CLIENT_ID"`
	BaseURL   string        `env:"BASE_URL, default=https://api-t1.fyers.in/api/v3"`
	TokenPath string        `env:"TOKEN_PATH, default=auth/token.json"`
	Timeout   time.Duration `env:"TIMEOUT, default=30s"`
}

// FetchConfig controls how much data is fetched and how failures are
// retried, not where it goes.
type FetchConfig struct {
	Exchange       string        `env:"EXCHANGE, default=NSE"`
	Resolution     string        `env:"RESOLUTION, default=D"`
	LookbackYears  int           `env:"LOOKBACK_YEARS, default=2"`
	MaxChunkDays   int           `env:"MAX_CHUNK_DAYS, default=365"`
	MaxAttempts    int           `env:"MAX_ATTEMPTS, default=3"`
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY, default=1s"`
	ChunkPause     time.Duration `env:"CHUNK_PAUSE, default=300ms"`
}

// UniverseConfig holds the symbol universe file configuration
type UniverseConfig struct {
	File       string `env:"FILE, default=config/nifty100.json"`
	TestPrefix string `env:"TEST_PREFIX, default=TEST"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `env:"LEVEL, default=info"`
	Format     string `env:"FORMAT, default=text"`
	Output     string `env:"OUTPUT, default=stdout"`
	RunLogPath string `env:"RUN_LOG_PATH, default=logs/backfill.log"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}

	if c.Universe.File == "" {
		return fmt.Errorf("symbol universe file is required")
	}

	if c.Fetch.MaxChunkDays < 1 {
		return fmt.Errorf("max chunk days must be >= 1, got %d", c.Fetch.MaxChunkDays)
	}

	if c.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1, got %d", c.Fetch.MaxAttempts)
	}

	return nil
}

// GetServerAddr returns the monitor server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetStoreDSN returns the SQLite DSN with the pragmas both processes
// need to poll the same file.
func (c *Config) GetStoreDSN() string {
	return c.Store.Path + "?_busy_timeout=5000&_journal_mode=WAL"
}
