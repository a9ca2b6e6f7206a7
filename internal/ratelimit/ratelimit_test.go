package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/amishk599/jobpipe/internal/model"
)

func TestWait_SamePlatform_EnforcesInterval(t *testing.T) {
	limiter := NewPlatformLimiter(100*time.Millisecond, nil)
	ctx := context.Background()

	// First call should return immediately.
	if err := limiter.Wait(ctx, "greenhouse"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "greenhouse"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	elapsed := time.Since(start)

	// Should have waited at least ~100ms (allow 80ms for timer jitter).
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
}

func TestWait_DifferentPlatforms_NoCrossBlocking(t *testing.T) {
	limiter := NewPlatformLimiter(200*time.Millisecond, nil)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "greenhouse"); err != nil {
		t.Fatalf("greenhouse wait: %v", err)
	}

	// Immediately call for lever, should not block.
	start := time.Now()
	if err := limiter.Wait(ctx, "lever"); err != nil {
		t.Fatalf("lever wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected lever wait to be near-instant, got %v", elapsed)
	}
}

func TestWait_OverrideAndZeroInterval(t *testing.T) {
	limiter := NewPlatformLimiter(5*time.Second, map[string]time.Duration{"file": 0})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Wait(ctx, "file"); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected unpaced platform to never wait, got %v", elapsed)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := NewPlatformLimiter(5*time.Second, nil)

	// First call to take the only token.
	if err := limiter.Wait(context.Background(), "greenhouse"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx, "greenhouse"); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

type recordingSource struct {
	called bool
}

func (s *recordingSource) Name() string     { return "recording" }
func (s *recordingSource) Platform() string { return "greenhouse" }

func (s *recordingSource) Fetch(_ context.Context) ([]model.RawJob, error) {
	s.called = true
	return nil, nil
}

func TestSource_WaitsBeforeDelegating(t *testing.T) {
	limiter := NewPlatformLimiter(100*time.Millisecond, nil)
	inner := &recordingSource{}
	src := NewSource(inner, limiter)
	ctx := context.Background()

	if _, err := src.Fetch(ctx); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if !inner.called {
		t.Fatal("inner source was not called on first fetch")
	}

	inner.called = false

	start := time.Now()
	if _, err := src.Fetch(ctx); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !inner.called {
		t.Fatal("inner source was not called on second fetch")
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait on second fetch, got %v", elapsed)
	}
}
