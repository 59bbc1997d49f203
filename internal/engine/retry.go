package engine

import (
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/partnerled/gdapctl/internal/partner"
)

// newBackOff builds the per-item exponential backoff policy. Each item
// carries its own policy so retry delays grow with that item's own
// failure count, independent of its neighbours.
func (e *Engine) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.Backoff.InitialInterval
	bo.MaxInterval = e.cfg.Backoff.MaxInterval
	bo.Multiplier = e.cfg.Backoff.Multiplier
	return bo
}

// retryDelay computes how long to park a transiently failed item. A
// server-requested Retry-After wins over the computed backoff.
func retryDelay(err error, bo *backoff.ExponentialBackOff) time.Duration {
	if ra := partner.RetryAfter(err); ra > 0 {
		return ra
	}
	return bo.NextBackOff()
}
