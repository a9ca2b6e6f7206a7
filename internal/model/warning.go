package model

import "fmt"

// WarningKind tags a non-fatal diagnostic attached to a job.
type WarningKind string

const (
	WarnSalaryUnparsable   WarningKind = "salary_unparsable"
	WarnSalaryInverted     WarningKind = "salary_inverted"
	WarnLocationUnresolved WarningKind = "location_unresolved"
	WarnJobTypeUnknown     WarningKind = "job_type_unknown"
	WarnRemoteTypeUnknown  WarningKind = "remote_type_unknown"
	WarnIdentityDerived    WarningKind = "identity_derived"
	WarnMissingField       WarningKind = "missing_field"
	WarnMergeConflict      WarningKind = "merge_conflict"
)

// Warning is a structured diagnostic. Field names the job field concerned.
type Warning struct {
	Kind   WarningKind `json:"kind"`
	Field  string      `json:"field,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

func (w Warning) String() string {
	if w.Detail == "" {
		return fmt.Sprintf("%s(%s)", w.Kind, w.Field)
	}
	return fmt.Sprintf("%s(%s): %s", w.Kind, w.Field, w.Detail)
}

// HasWarning reports whether ws contains a warning of kind k.
func HasWarning(ws []Warning, k WarningKind) bool {
	for _, w := range ws {
		if w.Kind == k {
			return true
		}
	}
	return false
}
