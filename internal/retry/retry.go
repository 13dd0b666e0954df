// Package retry implements the boot-time connection retry spec.md §4.8
// requires: each RPC dial is retried a bounded number of times with fixed
// spacing before the driver gives up and fails to start.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// DefaultAttempts and DefaultSpacing match spec.md §4.8: 10 attempts in
// total, with 1-second spacing between failures.
const (
	DefaultAttempts = 10
	DefaultSpacing  = time.Second
)

// Dial calls connect up to attempts times, sleeping spacing between
// failures, and returns the first success or the last error once attempts
// is exhausted. name is only used for logging.
func Dial[T any](ctx context.Context, name string, attempts int, spacing time.Duration, connect func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := connect(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		log.Warn("connection attempt failed", "target", name, "attempt", attempt, "of", attempts, "err", err)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(spacing):
		}
	}
	return zero, fmt.Errorf("retry: %s: giving up after %d attempts: %w", name, attempts, lastErr)
}
