package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobpipe/internal/model"
)

// NopStore is a no-op store used in dry-run mode. It assigns ids and reports
// every upsert as stored, but keeps nothing, so every run sees fresh jobs.
type NopStore struct{}

var _ model.JobStore = (*NopStore)(nil)

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) Upsert(_ context.Context, job model.Job) (model.Job, error) {
	if err := validateForUpsert(job); err != nil {
		return job, err
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.Status = model.Advance(job.Status, model.StatusStored)
	job.CreatedAt, job.UpdatedAt = now, now
	return job, nil
}

func (s *NopStore) UpsertBatch(ctx context.Context, jobs []model.Job) ([]model.Job, error) {
	return upsertBatch(ctx, s, jobs)
}

func (s *NopStore) Query(context.Context, model.Filter, model.Page) ([]model.Job, error) {
	return nil, nil
}

func (s *NopStore) Get(_ context.Context, id string) (model.Job, error) {
	return model.Job{}, fmt.Errorf("%w: job %s", model.ErrNotFound, id)
}

func (s *NopStore) AuditLog(context.Context, string) ([]model.AuditEntry, error) { return nil, nil }

func (s *NopStore) Transition(_ context.Context, id string, _ model.Status) (model.Job, error) {
	return model.Job{}, fmt.Errorf("%w: job %s", model.ErrNotFound, id)
}

func (s *NopStore) MarkResponded(ctx context.Context, id string) (model.Job, error) {
	return s.Transition(ctx, id, model.StatusResponded)
}

func (s *NopStore) CountByStatus(context.Context) (map[model.Status]int, error) {
	return map[model.Status]int{}, nil
}

func (s *NopStore) Close() error { return nil }
