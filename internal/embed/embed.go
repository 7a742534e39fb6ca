// Package embed turns text into vectors. Every backend satisfies Gateway;
// Guard and Cache wrap a backend with batching, retries, rate limiting and
// per-run memoisation.
package embed

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbeddingUnavailable means the backend could not produce vectors for a
// batch: it timed out, kept failing, or the circuit breaker is open. A run
// that hits it must fail rather than rank with partial vectors.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// Item is one text to embed. The ID ties the returned vector back to its
// source, so callers never rely on positional order.
type Item struct {
	ID   string
	Text string
}

// Gateway embeds a batch of items and returns vectors keyed by item ID.
// All vectors returned by one gateway have the same dimension.
type Gateway interface {
	Embed(ctx context.Context, items []Item) (map[string][]float32, error)
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
