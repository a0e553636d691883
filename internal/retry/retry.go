// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry provides a bounded retry helper with linear backoff.
package retry

import (
	"context"
	"time"
)

const defaultMaxAttempts = 3

// Do invokes op up to maxAttempts times, sleeping baseDelay * attempt
// between attempts (linear backoff: baseDelay, 2*baseDelay, ...). It
// returns nil on the first success and the last error once attempts are
// exhausted. If the context is cancelled during a backoff wait, Do returns
// ctx.Err(). When maxAttempts <= 0 the default (3) is used.
//
// The operation must be idempotent or safely re-triable; Do offers no
// deduplication of partial effects.
func Do(ctx context.Context, maxAttempts int, baseDelay time.Duration, op func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lastErr = op(); lastErr == nil {
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseDelay * time.Duration(attempt)):
		}
	}
	return lastErr
}
