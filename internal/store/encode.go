package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amishk599/jobpipe/internal/model"
)

// jobRow is the column form of a model.Job. Timestamps are stored as UTC
// unix nanoseconds so every backend round-trips them exactly.
type jobRow struct {
	id, platform, externalID              string
	title, company, location              string
	description, url                      string
	salaryMin, salaryMax                  sql.NullInt64
	currency, jobType, remoteType         string
	skills                                string
	postedAt                              sql.NullInt64
	status                                string
	rawData                               sql.NullString
	warnings                              string
	createdAt, updatedAt, postedOrCreated int64
}

func encodeJob(job model.Job) (jobRow, error) {
	skills := job.RequiredSkills
	if skills == nil {
		skills = []string{}
	}
	skillsJSON, err := json.Marshal(skills)
	if err != nil {
		return jobRow{}, fmt.Errorf("encoding skills: %w", err)
	}
	warnings := job.Warnings
	if warnings == nil {
		warnings = []model.Warning{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return jobRow{}, fmt.Errorf("encoding warnings: %w", err)
	}

	row := jobRow{
		id:              job.ID,
		platform:        job.SourcePlatform,
		externalID:      job.ExternalID,
		title:           job.Title,
		company:         job.Company,
		location:        job.Location,
		description:     job.Description,
		url:             job.URL,
		currency:        string(job.Currency),
		jobType:         string(job.JobType),
		remoteType:      string(job.RemoteType),
		skills:          string(skillsJSON),
		status:          string(job.Status),
		warnings:        string(warningsJSON),
		createdAt:       job.CreatedAt.UnixNano(),
		updatedAt:       job.UpdatedAt.UnixNano(),
		postedOrCreated: job.PostedOrCreated().UnixNano(),
	}
	if job.SalaryMin != nil {
		row.salaryMin = sql.NullInt64{Int64: *job.SalaryMin, Valid: true}
	}
	if job.SalaryMax != nil {
		row.salaryMax = sql.NullInt64{Int64: *job.SalaryMax, Valid: true}
	}
	if job.PostedAt != nil {
		row.postedAt = sql.NullInt64{Int64: job.PostedAt.UnixNano(), Valid: true}
	}
	if len(job.RawData) > 0 {
		row.rawData = sql.NullString{String: string(job.RawData), Valid: true}
	}
	return row, nil
}

// args returns the values in jobColumns order followed by
// posted_or_created_at.
func (r jobRow) args() []any {
	return []any{
		r.id, r.platform, r.externalID, r.title, r.company, r.location, r.description, r.url,
		r.salaryMin, r.salaryMax, r.currency, r.jobType, r.remoteType, r.skills, r.postedAt,
		r.status, r.rawData, r.warnings, r.createdAt, r.updatedAt,
		r.postedOrCreated,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob reads one row selected with jobColumns.
func scanJob(sc rowScanner) (model.Job, error) {
	var r jobRow
	err := sc.Scan(
		&r.id, &r.platform, &r.externalID, &r.title, &r.company, &r.location, &r.description, &r.url,
		&r.salaryMin, &r.salaryMax, &r.currency, &r.jobType, &r.remoteType, &r.skills, &r.postedAt,
		&r.status, &r.rawData, &r.warnings, &r.createdAt, &r.updatedAt,
	)
	if err != nil {
		return model.Job{}, err
	}

	job := model.Job{
		ID:             r.id,
		SourcePlatform: r.platform,
		ExternalID:     r.externalID,
		Title:          r.title,
		Company:        r.company,
		Location:       r.location,
		Description:    r.description,
		URL:            r.url,
		Currency:       model.Currency(r.currency),
		JobType:        model.JobType(r.jobType),
		RemoteType:     model.RemoteType(r.remoteType),
		Status:         model.Status(r.status),
		CreatedAt:      time.Unix(0, r.createdAt).UTC(),
		UpdatedAt:      time.Unix(0, r.updatedAt).UTC(),
	}
	if r.salaryMin.Valid {
		v := r.salaryMin.Int64
		job.SalaryMin = &v
	}
	if r.salaryMax.Valid {
		v := r.salaryMax.Int64
		job.SalaryMax = &v
	}
	if r.postedAt.Valid {
		t := time.Unix(0, r.postedAt.Int64).UTC()
		job.PostedAt = &t
	}
	if r.rawData.Valid {
		job.RawData = json.RawMessage(r.rawData.String)
	}
	if err := json.Unmarshal([]byte(r.skills), &job.RequiredSkills); err != nil {
		return model.Job{}, fmt.Errorf("decoding skills of %s: %w", r.id, err)
	}
	if len(job.RequiredSkills) == 0 {
		job.RequiredSkills = nil
	}
	if err := json.Unmarshal([]byte(r.warnings), &job.Warnings); err != nil {
		return model.Job{}, fmt.Errorf("decoding warnings of %s: %w", r.id, err)
	}
	if len(job.Warnings) == 0 {
		job.Warnings = nil
	}
	return job, nil
}
