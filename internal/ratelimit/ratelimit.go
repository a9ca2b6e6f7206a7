// Package ratelimit paces requests so each platform sees at most one request
// per configured interval, however many sources target it.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/amishk599/jobpipe/internal/fetch"
	"github.com/amishk599/jobpipe/internal/model"
)

// PlatformLimiter keeps one token bucket per platform.
type PlatformLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	interval  time.Duration
	overrides map[string]time.Duration
}

// NewPlatformLimiter creates a limiter that allows one request per interval
// to the same platform. overrides replaces interval for named platforms.
// A zero interval disables pacing for that platform.
func NewPlatformLimiter(interval time.Duration, overrides map[string]time.Duration) *PlatformLimiter {
	return &PlatformLimiter{
		limiters:  make(map[string]*rate.Limiter),
		interval:  interval,
		overrides: overrides,
	}
}

func (l *PlatformLimiter) limiter(platform string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[platform]; ok {
		return lim
	}
	interval := l.interval
	if d, ok := l.overrides[platform]; ok {
		interval = d
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	lim := rate.NewLimiter(limit, 1)
	l.limiters[platform] = lim
	return lim
}

// Wait blocks until a request to platform is allowed. The first request to a
// platform never waits.
func (l *PlatformLimiter) Wait(ctx context.Context, platform string) error {
	if err := l.limiter(platform).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", platform, err)
	}
	return nil
}

// Source is a decorator that waits for the platform's limiter before
// delegating to the wrapped source.
type Source struct {
	inner   fetch.Source
	limiter *PlatformLimiter
}

var _ fetch.Source = (*Source)(nil)

// NewSource wraps a source with platform-level pacing. All sources should
// share the same limiter instance.
func NewSource(inner fetch.Source, limiter *PlatformLimiter) *Source {
	return &Source{inner: inner, limiter: limiter}
}

func (s *Source) Name() string     { return s.inner.Name() }
func (s *Source) Platform() string { return s.inner.Platform() }

// Fetch waits for the limiter, then delegates.
func (s *Source) Fetch(ctx context.Context) ([]model.RawJob, error) {
	if err := s.limiter.Wait(ctx, s.inner.Platform()); err != nil {
		return nil, err
	}
	return s.inner.Fetch(ctx)
}
