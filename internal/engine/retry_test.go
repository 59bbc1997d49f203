package engine

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/partnerled/gdapctl/internal/partner"
	"github.com/stretchr/testify/require"
)

func TestRetryDelayHonorsRetryAfter(t *testing.T) {
	e := &Engine{cfg: testConfig()}
	bo := e.newBackOff()

	throttled := &partner.APIError{
		StatusCode: http.StatusTooManyRequests,
		RetryAfter: 9 * time.Second,
	}
	require.Equal(t, 9*time.Second, retryDelay(throttled, bo))
}

func TestRetryDelayGrows(t *testing.T) {
	cfg := testConfig()
	cfg.Backoff.InitialInterval = 100 * time.Millisecond
	cfg.Backoff.MaxInterval = 10 * time.Second
	e := &Engine{cfg: cfg}
	bo := e.newBackOff()

	err := errors.New("connection reset")
	first := retryDelay(err, bo)
	second := retryDelay(err, bo)

	require.Positive(t, first)
	require.Positive(t, second)
	require.Less(t, first, cfg.Backoff.MaxInterval)
	require.Less(t, second, cfg.Backoff.MaxInterval)
}

func TestNewBackOffUsesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Backoff.InitialInterval = 250 * time.Millisecond
	cfg.Backoff.Multiplier = 3
	e := &Engine{cfg: cfg}

	bo := e.newBackOff()
	require.Equal(t, 250*time.Millisecond, bo.InitialInterval)
	require.Equal(t, float64(3), bo.Multiplier)
}
