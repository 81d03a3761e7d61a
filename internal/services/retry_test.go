package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/market-sync/internal/exchange"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	r := NewRetryExecutor(3, time.Millisecond, quietLogger())

	calls := 0
	resp, ok := r.Fetch(context.Background(), "TCS", func() (*exchange.HistoryResponse, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection reset")
		}
		return &exchange.HistoryResponse{Status: "ok"}, nil
	})

	require.True(t, ok)
	assert.True(t, resp.OK())
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustionReturnsFailureMarker(t *testing.T) {
	r := NewRetryExecutor(3, time.Millisecond, quietLogger())

	calls := 0
	resp, ok := r.Fetch(context.Background(), "TCS", func() (*exchange.HistoryResponse, error) {
		calls++
		return nil, errors.New("connection reset")
	})

	assert.False(t, ok)
	assert.Nil(t, resp)
	assert.Equal(t, 3, calls)
}

func TestRetryTreatsNonOKPayloadAsFailure(t *testing.T) {
	r := NewRetryExecutor(2, time.Millisecond, quietLogger())

	calls := 0
	_, ok := r.Fetch(context.Background(), "TCS", func() (*exchange.HistoryResponse, error) {
		calls++
		return &exchange.HistoryResponse{Status: "error", Message: "throttled"}, nil
	})

	assert.False(t, ok)
	assert.Equal(t, 2, calls)
}

func TestRetrySingleAttempt(t *testing.T) {
	r := NewRetryExecutor(1, time.Millisecond, quietLogger())

	calls := 0
	_, ok := r.Fetch(context.Background(), "TCS", func() (*exchange.HistoryResponse, error) {
		calls++
		return nil, errors.New("boom")
	})

	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}
