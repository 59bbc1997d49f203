package partner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/partnerled/gdapctl/internal/auth"
)

// ErrNotFound is returned when the remote object does not exist.
var ErrNotFound = errors.New("remote object not found")

// Class is the retry classification of a remote failure.
type Class int

const (
	// ClassTransient failures (timeouts, throttling, server errors) are
	// retried with backoff up to the configured ceiling.
	ClassTransient Class = iota
	// ClassPermanent failures (validation, conflict, not-found) fail the
	// item immediately.
	ClassPermanent
	// ClassAuth failures get one retry after a credential refresh, then
	// become permanent.
	ClassAuth
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// APIError is a non-2xx response from the partner API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// RetryAfter is the server-requested delay on throttling responses,
	// zero when absent.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("partner API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("partner API error %d: %s", e.StatusCode, e.Message)
}

// Class maps the HTTP status to a retry classification.
func (e *APIError) Class() Class {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ClassAuth
	case e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests:
		return ClassTransient
	case e.StatusCode >= 500:
		return ClassTransient
	default:
		return ClassPermanent
	}
}

// Classify maps any remote failure to its retry classification.
// Network-level failures and timeouts are transient; auth failures get
// the one-shot refresh path; everything structurally wrong is permanent.
func Classify(err error) Class {
	if err == nil {
		return ClassPermanent
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class()
	}

	if errors.Is(err, auth.ErrAuth) {
		return ClassAuth
	}

	if errors.Is(err, ErrNotFound) {
		return ClassPermanent
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	// Connection resets and other transport-level surprises are worth a
	// retry; the attempt ceiling bounds the damage of a misjudgment.
	return ClassTransient
}

// RetryAfter returns the server-requested delay for throttled calls,
// zero when the error carries none.
func RetryAfter(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}
