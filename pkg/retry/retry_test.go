package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Options{BaseDelay: time.Millisecond}, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Options{MaxRetries: 5, BaseDelay: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("ECONNRESET while reading response")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsExactlyMaxRetriesPlusOne(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Options{MaxRetries: 5, BaseDelay: time.Microsecond}, func(ctx context.Context) (struct{}, error) {
		calls++
		return struct{}{}, &StatusError{StatusCode: 503}
	})
	require.Error(t, err)
	assert.Equal(t, 6, calls)
	assert.Contains(t, err.Error(), "after 6 attempts")
}

func TestDoZeroValueOptionsRetries(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Options{BaseDelay: time.Microsecond}, func(ctx context.Context) (struct{}, error) {
		calls++
		return struct{}{}, &StatusError{StatusCode: 503}
	})
	require.Error(t, err)
	assert.Equal(t, DefaultMaxRetries+1, calls, "unset MaxRetries must mean the default, not zero retries")
}

func TestDoNoRetriesAttemptsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Options{MaxRetries: NoRetries, BaseDelay: time.Microsecond}, func(ctx context.Context) (struct{}, error) {
		calls++
		return struct{}{}, &StatusError{StatusCode: 503}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404} {
		t.Run(fmt.Sprintf("status_%d", status), func(t *testing.T) {
			calls := 0
			_, err := Do(context.Background(), Options{MaxRetries: 5, BaseDelay: time.Millisecond}, func(ctx context.Context) (struct{}, error) {
				calls++
				return struct{}{}, &StatusError{StatusCode: status}
			})
			require.Error(t, err)
			assert.Equal(t, 1, calls, "client errors must not be retried")
			assert.Equal(t, status, HTTPStatus(err))
		})
	}
}

func TestDoBackoffDoubles(t *testing.T) {
	var gaps []time.Duration
	last := time.Now()
	calls := 0
	_, _ = Do(context.Background(), Options{MaxRetries: 3, BaseDelay: 10 * time.Millisecond}, func(ctx context.Context) (struct{}, error) {
		now := time.Now()
		if calls > 0 {
			gaps = append(gaps, now.Sub(last))
		}
		last = now
		calls++
		return struct{}{}, errors.New("timeout")
	})
	require.Len(t, gaps, 3)
	// 10ms, 20ms, 40ms with scheduling slack.
	assert.GreaterOrEqual(t, gaps[0], 10*time.Millisecond)
	assert.GreaterOrEqual(t, gaps[1], 20*time.Millisecond)
	assert.GreaterOrEqual(t, gaps[2], 40*time.Millisecond)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Do(ctx, Options{MaxRetries: 5, BaseDelay: time.Hour}, func(ctx context.Context) (struct{}, error) {
		calls++
		return struct{}{}, errors.New("network unreachable")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection reset", errors.New("read tcp: ECONNRESET"), true},
		{"refused", errors.New("dial tcp: econnrefused"), true},
		{"timeout", errors.New("context deadline exceeded (Client.Timeout)"), true},
		{"socket hang up", errors.New("socket hang up"), true},
		{"rate limited", &StatusError{StatusCode: 429}, true},
		{"bad gateway", &StatusError{StatusCode: 502}, true},
		{"bad request", &StatusError{StatusCode: 400}, false},
		{"unauthorized", &StatusError{StatusCode: 401}, false},
		{"not found", &StatusError{StatusCode: 404}, false},
		{"plain failure", errors.New("invalid payload"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestHTTPStatusWrapped(t *testing.T) {
	err := fmt.Errorf("ai: complete: %w", &StatusError{StatusCode: 429, Message: "slow down"})
	assert.Equal(t, 429, HTTPStatus(err))
	assert.Equal(t, 0, HTTPStatus(errors.New("plain")))
}
