package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/marketdata.db", cfg.Store.Path)
	assert.Equal(t, "equity_daily_candles", cfg.Store.TableName)
	assert.Equal(t, "NSE", cfg.Fetch.Exchange)
	assert.Equal(t, "D", cfg.Fetch.Resolution)
	assert.Equal(t, 365, cfg.Fetch.MaxChunkDays)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Fetch.RetryBaseDelay)
	assert.Equal(t, 300*time.Millisecond, cfg.Fetch.ChunkPause)
	assert.Equal(t, "TEST", cfg.Universe.TestPrefix)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("FETCH_MAX_CHUNK_DAYS", "100")
	t.Setenv("STORE_PATH", "/tmp/test.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Fetch.MaxChunkDays)
	assert.Equal(t, "/tmp/test.db", cfg.Store.Path)
	assert.Equal(t, "0.0.0.0:9090", cfg.GetServerAddr())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
		{"empty universe file", func(c *Config) { c.Universe.File = "" }},
		{"zero chunk days", func(c *Config) { c.Fetch.MaxChunkDays = 0 }},
		{"zero attempts", func(c *Config) { c.Fetch.MaxAttempts = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetStoreDSN(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Path: "data/marketdata.db"}}
	assert.Equal(t, "data/marketdata.db?_busy_timeout=5000&_journal_mode=WAL", cfg.GetStoreDSN())
}
