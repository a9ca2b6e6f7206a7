package model

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error categories. Callers wrap one of these with fmt.Errorf("%w: ...") so
// the category survives further wrapping and KindOf can classify it.
var (
	ErrTransientFetch    = errors.New("transient fetch error")
	ErrMalformedInput    = errors.New("malformed input")
	ErrConflict          = errors.New("conflict")
	ErrPersistence       = errors.New("persistence error")
	ErrConfiguration     = errors.New("configuration error")
	ErrCancelled         = errors.New("cancelled")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
)

// ErrorKind is the category recorded against a per-item failure.
type ErrorKind string

const (
	KindTransientFetch    ErrorKind = "transient_fetch"
	KindMalformedInput    ErrorKind = "malformed_input"
	KindConflict          ErrorKind = "conflict"
	KindPersistence       ErrorKind = "persistence"
	KindConfiguration     ErrorKind = "configuration"
	KindCancelled         ErrorKind = "cancelled"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindNotFound          ErrorKind = "not_found"
	KindUnknown           ErrorKind = "unknown"
)

// KindOf classifies err by the category it wraps.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrMalformedInput):
		return KindMalformedInput
	case errors.Is(err, ErrTransientFetch):
		return KindTransientFetch
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	}
	return KindUnknown
}

// IsFatal reports whether err must abort the remainder of a run.
func IsFatal(err error) bool {
	k := KindOf(err)
	return k == KindPersistence || k == KindConfiguration
}

// Conflictf returns an error in the conflict category.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Persistence wraps a storage failure.
func Persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// Configurationf returns an error in the configuration category.
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}
