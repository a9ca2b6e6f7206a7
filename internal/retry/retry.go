// Package retry decorates fetch sources with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/jobpipe/internal/fetch"
	"github.com/amishk599/jobpipe/internal/model"
)

// Source is a decorator that retries transient failures with exponential
// backoff and jitter before giving up on the wrapped source.
type Source struct {
	inner      fetch.Source
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

var _ fetch.Source = (*Source)(nil)

// NewSource wraps a source with retry logic.
// maxRetries is the number of additional attempts after the first failure.
// baseDelay is the delay before the first retry, doubled on each subsequent retry.
func NewSource(inner fetch.Source, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *Source {
	return &Source{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

func (s *Source) Name() string     { return s.inner.Name() }
func (s *Source) Platform() string { return s.inner.Platform() }

// Fetch attempts the wrapped fetch, retrying on transient errors. Partial
// results from a non-retryable failure are passed through.
func (s *Source) Fetch(ctx context.Context) ([]model.RawJob, error) {
	jobs, err := s.inner.Fetch(ctx)
	if err == nil || !isRetryable(err) {
		return jobs, err
	}

	lastErr := err
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		delay := s.backoffDelay(attempt, lastErr)

		s.logger.Warn("retrying after transient error",
			"source", s.inner.Name(),
			"attempt", attempt,
			"max_retries", s.maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		jobs, err = s.inner.Fetch(ctx)
		if err == nil || !isRetryable(err) {
			return jobs, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %s: giving up after %d retries: %w", model.ErrTransientFetch, s.inner.Name(), s.maxRetries, lastErr)
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// A Retry-After duration (HTTP 429) takes precedence.
func (s *Source) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// Exponential: baseDelay * 2^(attempt-1)
	delay := s.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation, never retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Bad data does not get better by asking again.
	if errors.Is(err, model.ErrMalformedInput) || model.IsFatal(err) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		// 429 Too Many Requests and 5xx are retryable, other 4xx are not.
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	// Non-HTTP errors (network, DNS, etc.) are retryable.
	return true
}
