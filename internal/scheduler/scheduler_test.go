package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/jobpipe/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("every now and then", func(context.Context) error { return nil }, discardLogger())
	if !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("New: err = %v, want configuration error", err)
	}
}

func TestRun_ImmediateThenScheduled(t *testing.T) {
	var calls atomic.Int32
	s, err := New("@every 1s", func(context.Context) error {
		calls.Add(1)
		return nil
	}, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for calls.Load() < 2 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("expected at least 2 runs, got %d", calls.Load())
		case <-time.After(20 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if s.Runs() < 2 {
		t.Errorf("Runs() = %d, want >= 2", s.Runs())
	}
}

func TestRun_ErrorDoesNotStopScheduler(t *testing.T) {
	var calls atomic.Int32
	s, err := New("@every 1s", func(context.Context) error {
		calls.Add(1)
		return errors.New("boom")
	}, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls.Load() < 2 {
		t.Errorf("expected runs to continue after errors, got %d", calls.Load())
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	var calls atomic.Int32
	s, err := New("@hourly", func(context.Context) error {
		calls.Add(1)
		return nil
	}, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no runs on a cancelled context, got %d", calls.Load())
	}
}
