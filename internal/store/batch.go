package store

import (
	"context"
	"errors"

	"github.com/amishk599/jobpipe/internal/model"
)

type upserter interface {
	Upsert(ctx context.Context, job model.Job) (model.Job, error)
}

func upsertBatch(ctx context.Context, s upserter, jobs []model.Job) ([]model.Job, error) {
	out := make([]model.Job, 0, len(jobs))
	for _, job := range jobs {
		stored, err := s.Upsert(ctx, job)
		switch {
		case err == nil:
			out = append(out, stored)
		case errors.Is(err, model.ErrConflict), errors.Is(err, model.ErrMalformedInput):
			out = append(out, Reject(job, err))
		default:
			return out, err
		}
	}
	return out, nil
}

// Reject marks a record the store refused as FAILED so it can stay in a
// batch's output.
func Reject(job model.Job, err error) model.Job {
	kind := model.WarnMissingField
	if errors.Is(err, model.ErrConflict) {
		kind = model.WarnMergeConflict
	}
	job.Status = model.StatusFailed
	job.Warnings = append(job.Warnings, model.Warning{Kind: kind, Detail: err.Error()})
	return job
}
