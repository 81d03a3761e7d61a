package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/market-sync/internal/exchange"
)

// RetryExecutor wraps a single remote fetch with bounded exponential
// backoff. Exhaustion is reported, not raised: one stubborn chunk must
// never abort the run, its rows are simply absent until the next
// incremental pass.
type RetryExecutor struct {
	maxAttempts int
	baseDelay   time.Duration
	logger      *logrus.Entry
}

// NewRetryExecutor creates a retry executor with the configured attempt
// budget and base delay.
func NewRetryExecutor(maxAttempts int, baseDelay time.Duration, logger *logrus.Logger) *RetryExecutor {
	return &RetryExecutor{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger.WithField("component", "retry"),
	}
}

// Fetch runs one chunk fetch, retrying on transport errors and on
// provider-rejected payloads. The wait before attempt n+1 is
// baseDelay * 2^(n-1). Returns the successful payload, or (nil, false)
// once attempts are exhausted.
func (r *RetryExecutor) Fetch(ctx context.Context, symbol string, op func() (*exchange.HistoryResponse, error)) (*exchange.HistoryResponse, bool) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.baseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.maxAttempts-1)), ctx)

	var result *exchange.HistoryResponse
	attempt := func() error {
		resp, err := op()
		if err != nil {
			return err
		}
		if !resp.OK() {
			return fmt.Errorf("provider rejected request: %s", resp.Message)
		}
		result = resp
		return nil
	}

	notify := func(err error, wait time.Duration) {
		r.logger.WithFields(logrus.Fields{
			"symbol": symbol,
			"wait":   wait,
		}).WithError(err).Warn("Fetch failed, retrying")
	}

	if err := backoff.RetryNotify(attempt, policy, notify); err != nil {
		r.logger.WithFields(logrus.Fields{
			"symbol":   symbol,
			"attempts": r.maxAttempts,
		}).WithError(err).Error("Fetch attempts exhausted")
		return nil, false
	}

	return result, true
}
