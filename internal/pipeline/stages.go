package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amishk599/jobpipe/internal/model"
	"github.com/amishk599/jobpipe/internal/store"
)

type outcome uint8

const (
	pending outcome = iota
	succeeded
	failed
)

// fanOut calls work for units 0..n-1 with at most limit running at once.
// It stops starting units once ctx is done or a unit returns an error, and
// returns the first error. Units already running are left to finish.
func fanOut(ctx context.Context, n, limit int, work func(stop context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return work(gctx, i)
		})
	}
	return g.Wait()
}

// tally turns per-item outcomes into stage stats. Items that never started
// count as skipped after a fatal error and as cancelled otherwise.
func tally(ctx context.Context, stage Stage, outcomes []outcome, fatal error, start time.Time) StageStats {
	st := StageStats{Stage: stage, Duration: time.Since(start)}
	for _, o := range outcomes {
		switch o {
		case succeeded:
			st.Attempted++
			st.Succeeded++
		case failed:
			st.Attempted++
			st.Failed++
		default:
			if fatal == nil && ctx.Err() != nil {
				st.Cancelled++
			} else {
				st.Skipped++
			}
		}
	}
	return st
}

func notStartedStatus(ctx context.Context, fatal error) (model.Status, bool) {
	if fatal == nil && ctx.Err() != nil {
		return model.StatusCancelled, true
	}
	return "", false
}

type fetchStage struct {
	sources []model.Source
	limit   int
}

func (s *fetchStage) name() Stage { return StageFetch }

func (s *fetchStage) size(*batch) int { return len(s.sources) }

func (s *fetchStage) run(ctx context.Context, b *batch, rec *recorder) (StageStats, error) {
	start := time.Now()
	results := make([][]model.RawJob, len(s.sources))
	outcomes := make([]outcome, len(s.sources))

	err := fanOut(ctx, len(s.sources), s.limit, func(stop context.Context, i int) error {
		src := s.sources[i]
		raws, err := src.Fetch(context.WithoutCancel(stop))
		results[i] = raws
		if err == nil {
			outcomes[i] = succeeded
			return nil
		}
		outcomes[i] = failed
		if model.IsFatal(err) {
			return fmt.Errorf("source %s: %w", src.Name(), err)
		}
		if model.KindOf(err) == model.KindUnknown {
			err = fmt.Errorf("%w: %s: %w", model.ErrTransientFetch, src.Name(), err)
		}
		rec.fail(StageFetch, i, src.Name(), err)
		return nil
	})

	b.raw = nil
	for _, raws := range results {
		b.raw = append(b.raw, raws...)
	}
	return tally(ctx, StageFetch, outcomes, err, start), err
}

type normalizeStage struct {
	n     Normalizer
	limit int
}

func (s *normalizeStage) name() Stage { return StageNormalize }

func (s *normalizeStage) size(b *batch) int { return len(b.raw) }

func (s *normalizeStage) run(ctx context.Context, b *batch, rec *recorder) (StageStats, error) {
	start := time.Now()
	jobs := make([]model.Job, len(b.raw))
	outcomes := make([]outcome, len(b.raw))

	err := fanOut(ctx, len(b.raw), s.limit, func(_ context.Context, i int) error {
		job, err := s.n.NormalizeOne(b.raw[i])
		jobs[i] = job
		if err == nil {
			outcomes[i] = succeeded
			return nil
		}
		outcomes[i] = failed
		if model.IsFatal(err) {
			return err
		}
		rec.fail(StageNormalize, i, b.raw[i].Key().String(), err)
		return nil
	})

	status, ok := notStartedStatus(ctx, err)
	if !ok {
		status = model.StatusRaw
	}
	for i, o := range outcomes {
		if o == pending {
			jobs[i] = unprocessed(b.raw[i], status)
		}
	}
	b.jobs = jobs
	return tally(ctx, StageNormalize, outcomes, err, start), err
}

// unprocessed is the record left for a raw item the stage never started.
func unprocessed(raw model.RawJob, status model.Status) model.Job {
	return model.Job{
		ExternalID:     raw.ExternalID,
		SourcePlatform: raw.SourcePlatform,
		Title:          raw.Title,
		Company:        raw.Company,
		URL:            raw.URL,
		PostedAt:       raw.PostedAt,
		RawData:        raw.RawData,
		Status:         status,
	}
}

type persistStage struct {
	store model.JobStore
	limit int
}

func (s *persistStage) name() Stage { return StagePersist }

func (s *persistStage) size(b *batch) int { return len(persistable(b.jobs)) }

// persistable returns the indices of jobs the persist stage receives.
// Records that already failed or were cancelled upstream pass through.
func persistable(jobs []model.Job) []int {
	var idx []int
	for i, j := range jobs {
		switch j.Status {
		case model.StatusFailed, model.StatusCancelled, model.StatusRaw:
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

// groupByKey splits indices into groups sharing a natural key. Groups are
// ordered by first appearance and keep batch order inside.
func groupByKey(jobs []model.Job, idx []int) [][]int {
	pos := make(map[model.NaturalKey]int)
	var groups [][]int
	for _, i := range idx {
		k := jobs[i].Key()
		g, ok := pos[k]
		if !ok {
			g = len(groups)
			pos[k] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func (s *persistStage) run(ctx context.Context, b *batch, rec *recorder) (StageStats, error) {
	start := time.Now()
	idx := persistable(b.jobs)
	groups := groupByKey(b.jobs, idx)
	outcomes := make([]outcome, len(b.jobs))

	err := fanOut(ctx, len(groups), s.limit, func(stop context.Context, gi int) error {
		for _, i := range groups[gi] {
			if stop.Err() != nil {
				return nil
			}
			stored, err := s.store.Upsert(context.WithoutCancel(stop), b.jobs[i])
			if err == nil {
				b.jobs[i] = stored
				outcomes[i] = succeeded
				continue
			}
			outcomes[i] = failed
			if model.IsFatal(err) {
				return err
			}
			rec.fail(StagePersist, i, b.jobs[i].Key().String(), err)
			b.jobs[i] = store.Reject(b.jobs[i], err)
		}
		return nil
	})

	if status, ok := notStartedStatus(ctx, err); ok {
		for _, i := range idx {
			if outcomes[i] == pending {
				b.jobs[i].Status = status
			}
		}
	}

	received := make([]outcome, 0, len(idx))
	for _, i := range idx {
		received = append(received, outcomes[i])
	}
	return tally(ctx, StagePersist, received, err, start), err
}
