package model

import "fmt"

// Status is the processing state of a job.
//
//	RAW ──► NORMALIZED ──► STORED ──► RESPONDED
//	 │           │            │
//	 └───────────┴────────────┴──► FAILED
//
// RESPONDED and FAILED are terminal. CANCELLED only appears in run results
// for items a cancelled run never started; it is never persisted.
type Status string

const (
	StatusRaw        Status = "RAW"
	StatusNormalized Status = "NORMALIZED"
	StatusStored     Status = "STORED"
	StatusResponded  Status = "RESPONDED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

var statusRank = map[Status]int{
	StatusRaw:        0,
	StatusNormalized: 1,
	StatusStored:     2,
	StatusResponded:  3,
}

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusRaw:        {StatusNormalized, StatusFailed},
	StatusNormalized: {StatusStored, StatusFailed},
	StatusStored:     {StatusResponded, StatusFailed},
	// RESPONDED and FAILED are terminal
}

// ParseStatus converts a raw string to a persistable Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusRaw, StatusNormalized, StatusStored, StatusResponded, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// Rank orders the linear part of the state machine. FAILED and CANCELLED
// have no rank and return -1.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusResponded || s == StatusFailed
}

// CanTransition reports whether moving from → to is permitted.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Advance returns the status a stored record ends up with when a write
// carrying incoming lands on a record in existing. Status never moves
// backwards and terminal states stick.
func Advance(existing, incoming Status) Status {
	if existing.Terminal() {
		return existing
	}
	if incoming == StatusFailed {
		return StatusFailed
	}
	if incoming.Rank() > existing.Rank() {
		return incoming
	}
	return existing
}
