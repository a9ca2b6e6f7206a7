package filter

import (
	"strings"

	"github.com/amishk599/jobpipe/internal/model"
)

// Criteria describes which stored jobs qualify for the respond stage.
// Empty lists and a zero MinSalary do not constrain.
type Criteria struct {
	RequiredSkills []string           // at least one must be listed on the job
	JobTypes       []model.JobType    // job type must be one of these
	RemoteTypes    []model.RemoteType // remote type must be one of these
	MinSalary      int64              // applies only to jobs with a salary minimum
	Locations      []string           // case-insensitive substring of the job location
	TitleKeywords  []string           // case-insensitive substring of the title
}

// CriteriaFilter matches jobs against Criteria.
type CriteriaFilter struct {
	c Criteria
}

// NewCriteriaFilter returns a filter for c.
func NewCriteriaFilter(c Criteria) *CriteriaFilter {
	return &CriteriaFilter{c: c}
}

// Match returns true if the job satisfies every configured criterion.
func (f *CriteriaFilter) Match(job model.Job) bool {
	c := f.c

	if len(c.RequiredSkills) > 0 && !intersects(c.RequiredSkills, job.RequiredSkills) {
		return false
	}

	if len(c.JobTypes) > 0 && !contains(c.JobTypes, job.JobType) {
		return false
	}

	if len(c.RemoteTypes) > 0 && !contains(c.RemoteTypes, job.RemoteType) {
		return false
	}

	if c.MinSalary > 0 && job.SalaryMin != nil && *job.SalaryMin < c.MinSalary {
		return false
	}

	// Jobs without a location are not excluded by a location list.
	if len(c.Locations) > 0 && job.Location != "" && !containsSubstring(job.Location, c.Locations) {
		return false
	}

	if len(c.TitleKeywords) > 0 && !containsSubstring(job.Title, c.TitleKeywords) {
		return false
	}

	return true
}

func intersects(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(w, h) {
				return true
			}
		}
	}
	return false
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsSubstring(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
