// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry provides bounded exponential backoff shared across stages.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// BaseDelay controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var BaseDelay = 500 * time.Millisecond

const defaultMaxAttempts = 3

// Do runs fn up to maxAttempts times, backing off exponentially between
// attempts: BaseDelay, 2×, 4×, and so on. When maxAttempts is 0 the default
// (3) is used.
//
// Do returns nil on the first success. If the context is cancelled during a
// backoff wait it returns ctx.Err(). After exhausting attempts the last
// error is returned wrapped with the attempt count so the caller can
// distinguish a persistent failure from a one-shot one.
func Do(ctx context.Context, maxAttempts int, fn func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var last error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if last = fn(); last == nil {
			return nil
		}

		if attempt == maxAttempts-1 {
			break
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * BaseDelay
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("after %d attempts: %w", maxAttempts, last)
}
