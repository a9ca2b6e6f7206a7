package respond

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amishk599/jobpipe/internal/model"
)

// Outcome records what happened to one candidate.
type Outcome struct {
	Job   model.Job
	Sent  bool
	Error string
}

// Report summarizes one respond pass.
type Report struct {
	Candidates int
	Sent       int
	Failed     int
	Outcomes   []Outcome
}

// Responder dispatches eligible stored jobs and records the response in
// the store.
type Responder struct {
	store      model.JobStore
	dispatcher Dispatcher
	filter     model.JobFilter
	logger     *slog.Logger
}

// NewResponder returns a Responder. A nil filter makes every STORED job eligible.
func NewResponder(store model.JobStore, dispatcher Dispatcher, filter model.JobFilter, logger *slog.Logger) *Responder {
	return &Responder{store: store, dispatcher: dispatcher, filter: filter, logger: logger}
}

// Eligible reports whether job may be responded to.
func (r *Responder) Eligible(job model.Job) bool {
	if job.Status != model.StatusStored || job.ID == "" {
		return false
	}
	return r.filter == nil || r.filter.Match(job)
}

// Candidates pages through the store for eligible jobs, newest first.
func (r *Responder) Candidates(ctx context.Context) ([]model.Job, error) {
	var out []model.Job
	page := model.Page{Limit: model.MaxPageSize}
	for {
		jobs, err := r.store.Query(ctx, model.Filter{Statuses: []model.Status{model.StatusStored}}, page)
		if err != nil {
			return nil, fmt.Errorf("query candidates: %w", err)
		}
		for _, j := range jobs {
			if r.Eligible(j) {
				out = append(out, j)
			}
		}
		if len(jobs) < page.Limit {
			return out, nil
		}
		page.Offset += len(jobs)
	}
}

// Respond dispatches each eligible job in order. With send false nothing is
// dispatched and the report only lists candidates. A successful dispatch
// moves the job to RESPONDED. A dispatch failure is recorded and the pass
// continues; a store failure aborts it.
func (r *Responder) Respond(ctx context.Context, jobs []model.Job, send bool) (Report, error) {
	var rep Report
	for _, j := range jobs {
		if !r.Eligible(j) {
			continue
		}
		rep.Candidates++
		if !send {
			rep.Outcomes = append(rep.Outcomes, Outcome{Job: j})
			continue
		}
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		if err := r.dispatcher.Dispatch(ctx, j); err != nil {
			r.logger.Error("dispatch failed", "id", j.ID, "title", j.Title, "error", err)
			rep.Failed++
			rep.Outcomes = append(rep.Outcomes, Outcome{Job: j, Error: err.Error()})
			continue
		}

		responded, err := r.store.MarkResponded(ctx, j.ID)
		if err != nil {
			if model.IsFatal(err) {
				return rep, err
			}
			r.logger.Error("mark responded failed", "id", j.ID, "error", err)
			rep.Failed++
			rep.Outcomes = append(rep.Outcomes, Outcome{Job: j, Sent: true, Error: err.Error()})
			continue
		}
		rep.Sent++
		rep.Outcomes = append(rep.Outcomes, Outcome{Job: responded, Sent: true})
	}

	if send {
		r.logger.Info("respond pass complete", "candidates", rep.Candidates, "sent", rep.Sent, "failed", rep.Failed)
	}
	if send && rep.Failed > 0 && rep.Sent == 0 {
		return rep, fmt.Errorf("all %d dispatches failed", rep.Failed)
	}
	return rep, nil
}
