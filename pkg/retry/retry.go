// Package retry wraps operations that talk to flaky upstreams with
// exponential backoff. Transient network failures and retryable HTTP
// statuses are retried; everything else fails immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 5
	// DefaultBaseDelay is doubled on each retry.
	DefaultBaseDelay = 500 * time.Millisecond
	// NoRetries makes Do attempt the operation exactly once.
	NoRetries = -1
)

// StatusError is an error that carries an upstream HTTP status code.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream status %d", e.StatusCode)
}

// HTTPStatus extracts an HTTP status code from err, or 0 when none is attached.
func HTTPStatus(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

var transientFragments = []string{
	"econnreset",
	"econnrefused",
	"etimedout",
	"timeout",
	"network",
	"socket hang up",
	"connection reset",
	"connection refused",
}

var retryableStatuses = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// IsTransient reports whether err looks like a temporary failure worth
// retrying. Client errors such as 400 or 401 are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if status := HTTPStatus(err); status != 0 {
		return retryableStatuses[status]
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range transientFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// Options controls a retried operation.
type Options struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Zero means DefaultMaxRetries; use NoRetries for a single attempt.
	MaxRetries int
	// BaseDelay is the first backoff delay. Zero means DefaultBaseDelay.
	BaseDelay time.Duration
	// IsRetryable overrides the default transient-error check.
	IsRetryable func(error) bool
	// Operation names the call for log lines.
	Operation string
	// RequestID correlates log lines across one pipeline run.
	RequestID string
	Logger    *logging.Logger
}

func (o Options) normalized() Options {
	switch {
	case o.MaxRetries == 0:
		o.MaxRetries = DefaultMaxRetries
	case o.MaxRetries < 0:
		o.MaxRetries = 0
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.IsRetryable == nil {
		o.IsRetryable = IsTransient
	}
	if o.Operation == "" {
		o.Operation = "operation"
	}
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
	return o
}

// Do runs fn up to opts.MaxRetries+1 times, sleeping BaseDelay*2^attempt
// between attempts. It returns the first success, the first non-retryable
// error, or the last error once retries are exhausted.
func Do[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	opts = opts.normalized()

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !opts.IsRetryable(err) {
			opts.Logger.Error("non-retryable failure",
				"operation", opts.Operation,
				"request_id", opts.RequestID,
				"attempt", attempt+1,
				"error", err)
			return zero, err
		}
		if attempt == opts.MaxRetries {
			break
		}

		delay := opts.BaseDelay << attempt
		opts.Logger.Warn("transient failure, retrying",
			"operation", opts.Operation,
			"request_id", opts.RequestID,
			"attempt", attempt+1,
			"max_attempts", opts.MaxRetries+1,
			"delay", delay.String(),
			"error", err)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	opts.Logger.Error("retries exhausted",
		"operation", opts.Operation,
		"request_id", opts.RequestID,
		"attempts", opts.MaxRetries+1,
		"error", lastErr)
	return zero, fmt.Errorf("retry: %s failed after %d attempts: %w", opts.Operation, opts.MaxRetries+1, lastErr)
}
