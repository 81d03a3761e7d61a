package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/market-sync/pkg/config"
	"github.com/market-sync/pkg/models"
)

// HistoryRequest asks the provider for daily candles over an inclusive
// date range. Symbol is the bare ticker; the client adds the exchange
// prefix and series suffix the provider expects.
type HistoryRequest struct {
	Symbol     string
	Resolution string
	RangeFrom  time.Time
	RangeTo    time.Time
}

// HistoryResponse is the provider's reply. Candles are raw
// [timestamp, open, high, low, close, volume] rows.
type HistoryResponse struct {
	Status  string      `json:"s"`
	Message string      `json:"message,omitempty"`
	Candles [][]float64 `json:"candles"`
}

// OK reports whether the provider accepted the request.
func (r *HistoryResponse) OK() bool {
	return r != nil && r.Status == "ok"
}

// HistoryProvider is the narrow contract the engine depends on: one
// opaque fetch per date chunk with possible transient failure.
type HistoryProvider interface {
	History(ctx context.Context, req HistoryRequest) (*HistoryResponse, error)
}

// FyersClient handles REST calls to the Fyers history API
type FyersClient struct {
	client   *http.Client
	baseURL  string
	clientID string
	token    string
	exchange string
	logger   *logrus.Entry
}

// NewFyersClient creates a new Fyers history API client
func NewFyersClient(cfg *config.FyersConfig, exchange string, token *AccessToken, logger *logrus.Logger) *FyersClient {
	return &FyersClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:  cfg.BaseURL,
		clientID: cfg.ClientID,
		token:    token.AccessToken,
		exchange: exchange,
		logger:   logger.WithField("component", "fyers-rest"),
	}
}

// ProviderSymbol formats a bare ticker into the provider's equity
// symbol, e.g. TCS -> NSE:TCS-EQ.
func (f *FyersClient) ProviderSymbol(symbol string) string {
	return fmt.Sprintf("%s:%s-EQ", f.exchange, symbol)
}

// History fetches daily candles for one date chunk.
func (f *FyersClient) History(ctx context.Context, req HistoryRequest) (*HistoryResponse, error) {
	endpoint := fmt.Sprintf("%s/data/history", f.baseURL)
	params := url.Values{}
	params.Add("symbol", f.ProviderSymbol(req.Symbol))
	params.Add("resolution", req.Resolution)
	params.Add("date_format", "1")
	params.Add("range_from", req.RangeFrom.Format("2006-01-02"))
	params.Add("range_to", req.RangeTo.Format("2006-01-02"))
	params.Add("cont_flag", "1")

	fullURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	f.logger.WithFields(logrus.Fields{
		"symbol": req.Symbol,
		"from":   req.RangeFrom.Format("2006-01-02"),
		"to":     req.RangeTo.Format("2006-01-02"),
	}).Debug("Fetching history")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("%s:%s", f.clientID, f.token))

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var history HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	f.logger.WithFields(logrus.Fields{
		"symbol": req.Symbol,
		"status": history.Status,
		"count":  len(history.Candles),
	}).Debug("Fetched history")

	return &history, nil
}

// ParseCandle converts one raw provider row into a Candle. The provider
// timestamp is epoch seconds of the trading day.
func ParseCandle(symbol, source string, raw []float64) (models.Candle, error) {
	if len(raw) < 6 {
		return models.Candle{}, fmt.Errorf("short candle row for %s: %d fields", symbol, len(raw))
	}

	ts := time.Unix(int64(raw[0]), 0).UTC()
	return models.Candle{
		Symbol:    symbol,
		TradeDate: time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC),
		Open:      raw[1],
		High:      raw[2],
		Low:       raw[3],
		Close:     raw[4],
		Volume:    int64(raw[5]),
		Source:    source,
	}, nil
}
