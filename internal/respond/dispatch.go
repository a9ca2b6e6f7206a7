// Package respond acts on stored jobs that pass the respond criteria: it
// hands each one to a Dispatcher and marks it RESPONDED in the store.
package respond

import (
	"context"
	"log/slog"

	"github.com/amishk599/jobpipe/internal/model"
)

// Dispatcher delivers one job to wherever responses go.
type Dispatcher interface {
	Dispatch(ctx context.Context, job model.Job) error
}

// Ensure LogDispatcher implements Dispatcher.
var _ Dispatcher = (*LogDispatcher)(nil)

// LogDispatcher writes each job to the given logger as a structured message.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher returns a dispatcher that logs each job via slog.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// Dispatch logs the job. Logging does not fail.
func (d *LogDispatcher) Dispatch(_ context.Context, j model.Job) error {
	args := []any{
		"id", j.ID,
		"company", j.Company,
		"title", j.Title,
		"location", j.Location,
		"remote_type", j.RemoteType,
		"url", j.URL,
	}
	if j.SalaryMin != nil || j.SalaryMax != nil {
		args = append(args, "salary", salaryText(j))
	}
	if j.PostedAt != nil {
		args = append(args, "posted_at", *j.PostedAt)
	}
	d.logger.Info("job ready to respond", args...)
	return nil
}
