package model

import (
	"context"
	"encoding/json"
	"time"
)

// Currency of a parsed salary.
type Currency string

const (
	CurrencyUSD     Currency = "USD"
	CurrencyEUR     Currency = "EUR"
	CurrencyGBP     Currency = "GBP"
	CurrencyUnknown Currency = "unknown"
)

// JobType is the employment type of a posting.
type JobType string

const (
	JobTypeFullTime   JobType = "full-time"
	JobTypePartTime   JobType = "part-time"
	JobTypeContract   JobType = "contract"
	JobTypeInternship JobType = "internship"
	JobTypeUnknown    JobType = "unknown"
)

// RemoteType is the work arrangement of a posting.
type RemoteType string

const (
	RemoteOnsite  RemoteType = "onsite"
	RemoteRemote  RemoteType = "remote"
	RemoteHybrid  RemoteType = "hybrid"
	RemoteUnknown RemoteType = "unknown"
)

// NaturalKey identifies a posting across fetches: the platform it came from
// plus the identifier that platform gave it.
type NaturalKey struct {
	Platform   string
	ExternalID string
}

func (k NaturalKey) String() string { return k.Platform + "/" + k.ExternalID }

// Valid reports whether both halves of the key are set.
func (k NaturalKey) Valid() bool { return k.Platform != "" && k.ExternalID != "" }

// RawJob is a posting as a source delivered it, before any parsing.
type RawJob struct {
	SourcePlatform string          `json:"source_platform,omitempty"`
	ExternalID     string          `json:"external_id,omitempty"` // empty when the source has none
	URL            string          `json:"url,omitempty"`
	Title          string          `json:"title,omitempty"`
	Company        string          `json:"company,omitempty"`
	Location       string          `json:"location,omitempty"`
	Description    string          `json:"description,omitempty"`
	SalaryText     string          `json:"salary,omitempty"`    // free-text compensation, if the source exposes one
	JobTypeText    string          `json:"job_type,omitempty"`  // free-text employment type, if the source exposes one
	WorkplaceText  string          `json:"workplace,omitempty"` // free-text remote/hybrid/on-site hint, if the source exposes one
	PostedAt       *time.Time      `json:"posted_at,omitempty"` // nullable (not all APIs provide this)
	RawData        json.RawMessage `json:"raw_data,omitempty"`
}

// Key returns the natural key as delivered, which may be incomplete.
func (r RawJob) Key() NaturalKey {
	return NaturalKey{Platform: r.SourcePlatform, ExternalID: r.ExternalID}
}

// Job is the canonical representation of a posting from any platform.
type Job struct {
	ID             string `json:"id,omitempty"` // assigned by the store, stable once set
	ExternalID     string `json:"external_id"`
	SourcePlatform string `json:"source_platform"`

	Title          string     `json:"title"`
	Company        string     `json:"company,omitempty"`
	Location       string     `json:"location,omitempty"`
	Description    string     `json:"description,omitempty"`
	URL            string     `json:"url,omitempty"`
	SalaryMin      *int64     `json:"salary_min,omitempty"` // annual, same currency as SalaryMax
	SalaryMax      *int64     `json:"salary_max,omitempty"`
	Currency       Currency   `json:"currency,omitempty"`
	JobType        JobType    `json:"job_type,omitempty"`
	RemoteType     RemoteType `json:"remote_type,omitempty"`
	RequiredSkills []string   `json:"required_skills,omitempty"`
	PostedAt       *time.Time `json:"posted_at,omitempty"`

	Status    Status          `json:"status"`
	RawData   json.RawMessage `json:"raw_data,omitempty"`
	Warnings  []Warning       `json:"warnings,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Key returns the job's natural key.
func (j Job) Key() NaturalKey {
	return NaturalKey{Platform: j.SourcePlatform, ExternalID: j.ExternalID}
}

// HasSalary reports whether any salary bound is present.
func (j Job) HasSalary() bool { return j.SalaryMin != nil || j.SalaryMax != nil }

// PostedOrCreated is the timestamp queries order and filter by.
func (j Job) PostedOrCreated() time.Time {
	if j.PostedAt != nil {
		return *j.PostedAt
	}
	return j.CreatedAt
}

// AuditEntry records the prior values of the fields one write changed.
type AuditEntry struct {
	ID         int64
	JobID      string
	RecordedAt time.Time
	Prior      map[string]any
}

// Filter narrows a Query. Zero-valued fields do not constrain.
type Filter struct {
	Statuses     []Status
	Platforms    []string
	Skills       []string // job must list every skill, case-insensitive
	SalaryMin    *int64   // job range must overlap [SalaryMin, SalaryMax]
	SalaryMax    *int64
	PostedAfter  *time.Time
	PostedBefore *time.Time
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Page selects a window of query results.
type Page struct {
	Offset int
	Limit  int
}

// Normalized clamps the page into the supported range.
func (p Page) Normalized() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// JobStore persists normalized jobs keyed by their natural key.
type JobStore interface {
	Upsert(ctx context.Context, job Job) (Job, error)
	UpsertBatch(ctx context.Context, jobs []Job) ([]Job, error)
	Query(ctx context.Context, f Filter, p Page) ([]Job, error)
	Get(ctx context.Context, id string) (Job, error)
	AuditLog(ctx context.Context, id string) ([]AuditEntry, error)
	Transition(ctx context.Context, id string, to Status) (Job, error)
	MarkResponded(ctx context.Context, id string) (Job, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	Close() error
}

// Source fetches raw postings from one place (an ATS board, a file). It may
// return the postings it did get together with an error.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]RawJob, error)
}

// JobFilter decides whether a stored job qualifies for the respond stage.
type JobFilter interface {
	Match(job Job) bool
}
