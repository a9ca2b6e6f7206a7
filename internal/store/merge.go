package store

import (
	"bytes"
	"fmt"
	"slices"
	"time"

	"github.com/amishk599/jobpipe/internal/model"
)

// MergePolicyNonNullOverwrites is the only merge policy: present incoming
// fields replace stored ones, absent incoming fields keep the stored value.
const MergePolicyNonNullOverwrites = "non-null-overwrites"

// validateForUpsert rejects records that can never be stored.
func validateForUpsert(job model.Job) error {
	if !job.Key().Valid() {
		return fmt.Errorf("%w: natural key %q incomplete", model.ErrMalformedInput, job.Key())
	}
	if job.SalaryMin != nil && job.SalaryMax != nil && *job.SalaryMin > *job.SalaryMax {
		return fmt.Errorf("%w: %s salary min %d exceeds max %d", model.ErrMalformedInput, job.Key(), *job.SalaryMin, *job.SalaryMax)
	}
	if job.Status == model.StatusFailed || job.Status == model.StatusCancelled {
		return fmt.Errorf("%w: %s has status %s", model.ErrMalformedInput, job.Key(), job.Status)
	}
	return nil
}

// merge applies incoming onto existing. It returns the merged record and
// the prior values of every field that changed; an empty map means the
// write is a no-op. Status ends at least STORED and never moves back.
func merge(existing, incoming model.Job) (model.Job, map[string]any) {
	out := existing
	prior := make(map[string]any)

	setString := func(name string, dst *string, v string) {
		if v != "" && v != *dst {
			prior[name] = *dst
			*dst = v
		}
	}
	setString("title", &out.Title, incoming.Title)
	setString("company", &out.Company, incoming.Company)
	setString("location", &out.Location, incoming.Location)
	setString("description", &out.Description, incoming.Description)
	setString("url", &out.URL, incoming.URL)

	// Salary bounds and currency move together.
	if incoming.HasSalary() {
		cur := incoming.Currency
		if cur == "" {
			cur = model.CurrencyUnknown
		}
		if !equalInt64Ptr(out.SalaryMin, incoming.SalaryMin) || !equalInt64Ptr(out.SalaryMax, incoming.SalaryMax) || out.Currency != cur {
			prior["salary_min"] = int64PtrValue(out.SalaryMin)
			prior["salary_max"] = int64PtrValue(out.SalaryMax)
			prior["currency"] = string(out.Currency)
			out.SalaryMin = cloneInt64Ptr(incoming.SalaryMin)
			out.SalaryMax = cloneInt64Ptr(incoming.SalaryMax)
			out.Currency = cur
		}
	}

	if incoming.JobType != "" && incoming.JobType != model.JobTypeUnknown && incoming.JobType != out.JobType {
		prior["job_type"] = string(out.JobType)
		out.JobType = incoming.JobType
	}
	if incoming.RemoteType != "" && incoming.RemoteType != model.RemoteUnknown && incoming.RemoteType != out.RemoteType {
		prior["remote_type"] = string(out.RemoteType)
		out.RemoteType = incoming.RemoteType
	}
	if len(incoming.RequiredSkills) > 0 && !slices.Equal(incoming.RequiredSkills, out.RequiredSkills) {
		prior["required_skills"] = out.RequiredSkills
		out.RequiredSkills = slices.Clone(incoming.RequiredSkills)
	}
	if incoming.PostedAt != nil && (out.PostedAt == nil || !incoming.PostedAt.Equal(*out.PostedAt)) {
		prior["posted_at"] = timePtrValue(out.PostedAt)
		t := incoming.PostedAt.UTC()
		out.PostedAt = &t
	}
	if len(incoming.RawData) > 0 && !bytes.Equal(incoming.RawData, out.RawData) {
		prior["raw_data"] = string(out.RawData)
		out.RawData = bytes.Clone(incoming.RawData)
	}
	if len(incoming.Warnings) > 0 && !slices.Equal(incoming.Warnings, out.Warnings) {
		prior["warnings"] = out.Warnings
		out.Warnings = slices.Clone(incoming.Warnings)
	}

	if st := model.Advance(out.Status, model.StatusStored); st != out.Status {
		prior["status"] = string(out.Status)
		out.Status = st
	}
	return out, prior
}

func equalInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func cloneInt64Ptr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func int64PtrValue(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func timePtrValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
