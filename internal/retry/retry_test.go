package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amishk599/jobpipe/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockSource calls a function on each invocation, tracking call count.
type mockSource struct {
	calls int
	fn    func(attempt int) ([]model.RawJob, error)
}

func (m *mockSource) Name() string     { return "mock" }
func (m *mockSource) Platform() string { return "greenhouse" }

func (m *mockSource) Fetch(_ context.Context) ([]model.RawJob, error) {
	m.calls++
	return m.fn(m.calls)
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	jobs := []model.RawJob{{ExternalID: "1", Title: "Engineer"}}
	mock := &mockSource{fn: func(_ int) ([]model.RawJob, error) {
		return jobs, nil
	}}

	rs := NewSource(mock, 2, 10*time.Millisecond, discardLogger())
	got, err := rs.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ExternalID != "1" {
		t.Fatalf("unexpected jobs: %v", got)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call, got %d", mock.calls)
	}
	if rs.Name() != "mock" || rs.Platform() != "greenhouse" {
		t.Fatalf("Name/Platform not delegated: %s/%s", rs.Name(), rs.Platform())
	}
}

func TestRetry_RetriesOn5xx_SucceedsOnSecondAttempt(t *testing.T) {
	jobs := []model.RawJob{{ExternalID: "1"}}
	mock := &mockSource{fn: func(attempt int) ([]model.RawJob, error) {
		if attempt == 1 {
			return nil, &model.HTTPError{StatusCode: 503, Err: errors.New("service unavailable")}
		}
		return jobs, nil
	}}

	rs := NewSource(mock, 2, 10*time.Millisecond, discardLogger())
	got, err := rs.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 job, got %d", len(got))
	}
	if mock.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", mock.calls)
	}
}

func TestRetry_DoesNotRetryOn4xx(t *testing.T) {
	mock := &mockSource{fn: func(_ int) ([]model.RawJob, error) {
		return nil, &model.HTTPError{StatusCode: 404, Err: errors.New("not found")}
	}}

	rs := NewSource(mock, 2, 10*time.Millisecond, discardLogger())
	_, err := rs.Fetch(context.Background())
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 404 {
		t.Fatalf("expected HTTPError with status 404, got %v", err)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call (no retry), got %d", mock.calls)
	}
}

func TestRetry_PassesThroughPartialMalformedResults(t *testing.T) {
	mock := &mockSource{fn: func(_ int) ([]model.RawJob, error) {
		return []model.RawJob{{ExternalID: "ok"}}, errors.Join(model.ErrMalformedInput, errors.New("record 2 rejected"))
	}}

	rs := NewSource(mock, 3, 10*time.Millisecond, discardLogger())
	got, err := rs.Fetch(context.Background())
	if !errors.Is(err, model.ErrMalformedInput) {
		t.Fatalf("expected malformed input error, got %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected partial results to survive, got %v", got)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call (no retry), got %d", mock.calls)
	}
}

func TestRetry_GivesUpAfterMaxRetries(t *testing.T) {
	mock := &mockSource{fn: func(_ int) ([]model.RawJob, error) {
		return nil, &model.HTTPError{StatusCode: 500, Err: errors.New("internal error")}
	}}

	rs := NewSource(mock, 2, 10*time.Millisecond, discardLogger())
	_, err := rs.Fetch(context.Background())
	if !errors.Is(err, model.ErrTransientFetch) {
		t.Fatalf("expected transient fetch error after max retries, got %v", err)
	}
	// 1 initial + 2 retries = 3
	if mock.calls != 3 {
		t.Fatalf("expected 3 calls (1 + 2 retries), got %d", mock.calls)
	}
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	mock := &mockSource{fn: func(_ int) ([]model.RawJob, error) {
		return nil, &model.HTTPError{StatusCode: 500, Err: errors.New("internal error")}
	}}

	ctx, cancel := context.WithCancel(context.Background())
	// Cancel immediately so the backoff sleep is interrupted.
	cancel()

	rs := NewSource(mock, 2, time.Second, discardLogger())
	_, err := rs.Fetch(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", mock.calls)
	}
}

func TestBackoffDelay_PrefersRetryAfter(t *testing.T) {
	rs := NewSource(&mockSource{}, 2, time.Second, discardLogger())
	got := rs.backoffDelay(1, &model.HTTPError{StatusCode: 429, RetryAfter: 42 * time.Second})
	if got != 42*time.Second {
		t.Fatalf("expected Retry-After delay, got %v", got)
	}
	d := rs.backoffDelay(3, errors.New("boom"))
	if d < 2800*time.Millisecond || d > 5200*time.Millisecond {
		t.Fatalf("expected ~4s ±30%%, got %v", d)
	}
}
