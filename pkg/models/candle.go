package models

import (
	"fmt"
	"time"
)

// Candle represents one trading day's OHLCV record for a symbol.
// (symbol, trade_date) is the natural key in the store.
type Candle struct {
	Symbol    string    `json:"symbol"`
	TradeDate time.Time `json:"trade_date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Source    string    `json:"source"`
}

// Validate checks the candle for provider anomalies such as zero-filled
// or malformed bars. It is a pure predicate: callers drop rejected
// candles individually and keep processing the chunk.
func (c *Candle) Validate() error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("non-positive price (o=%v h=%v l=%v c=%v)", c.Open, c.High, c.Low, c.Close)
	}
	if c.High < c.Open || c.High < c.Close {
		return fmt.Errorf("high %v below max(open=%v, close=%v)", c.High, c.Open, c.Close)
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("low %v above min(open=%v, close=%v)", c.Low, c.Open, c.Close)
	}
	if c.Volume < 0 {
		return fmt.Errorf("negative volume %d", c.Volume)
	}
	return nil
}

// DateString returns the trade date in the store's YYYY-MM-DD format.
func (c *Candle) DateString() string {
	return c.TradeDate.Format("2006-01-02")
}
