// Package pipeline runs the fetch, normalize and persist stages over a batch
// of postings and reports what happened to every item.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobpipe/internal/model"
	"github.com/amishk599/jobpipe/internal/store"
)

// Concurrency bounds how many items each stage processes at once.
type Concurrency struct {
	Fetch     int
	Normalize int
	Persist   int
}

// Config holds orchestrator settings.
type Config struct {
	Concurrency Concurrency
	MergePolicy string
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Concurrency: Concurrency{Fetch: 4, Normalize: 8, Persist: 4},
		MergePolicy: store.MergePolicyNonNullOverwrites,
	}
}

// Normalizer turns one raw posting into a job. A failed item comes back as a
// FAILED job together with the error.
type Normalizer interface {
	NormalizeOne(raw model.RawJob) (model.Job, error)
}

// Deps are the collaborators a run uses. Only the ones the selected stages
// need must be set.
type Deps struct {
	Sources    []model.Source
	Normalizer Normalizer
	Store      model.JobStore
	Filter     model.JobFilter // nil means every stored job is eligible
	Logger     *slog.Logger
}

// Input seeds a run that does not start at fetch. Raw feeds normalize and
// Jobs feeds persist-only runs.
type Input struct {
	Raw  []model.RawJob
	Jobs []model.Job
}

// Orchestrator runs pipeline stages. It holds no per-run state and is safe
// for concurrent runs.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

// New validates cfg and returns an Orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	c := cfg.Concurrency
	if c.Fetch < 1 || c.Normalize < 1 || c.Persist < 1 {
		return nil, model.Configurationf("stage concurrency must be at least 1 (fetch=%d normalize=%d persist=%d)",
			c.Fetch, c.Normalize, c.Persist)
	}
	if cfg.MergePolicy == "" {
		cfg.MergePolicy = store.MergePolicyNonNullOverwrites
	}
	if cfg.MergePolicy != store.MergePolicyNonNullOverwrites {
		return nil, model.Configurationf("unsupported merge policy %q", cfg.MergePolicy)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, deps: deps, logger: logger}, nil
}

// batch is the data flowing between stages of one run.
type batch struct {
	raw  []model.RawJob
	jobs []model.Job
}

type stage interface {
	name() Stage
	// size is the number of items the stage would receive from b.
	size(b *batch) int
	run(ctx context.Context, b *batch, rec *recorder) (StageStats, error)
}

// Run executes the selected stages in order. Per-item failures are recorded
// in the result and never stop the run. A fatal error aborts the remaining
// work and is returned as a *RunError. When ctx is cancelled, in-flight items
// finish, unstarted items end CANCELLED, and Run returns the partial result
// with the context error.
func (o *Orchestrator) Run(ctx context.Context, in Input, sel Selection) (RunResult, error) {
	res := RunResult{
		RunID:     uuid.NewString(),
		Mode:      sel.String(),
		StartedAt: time.Now().UTC(),
	}

	stages, err := o.plan(sel)
	if err != nil {
		res.FinishedAt = time.Now().UTC()
		return res, err
	}

	// The batch owns its items: the caller's slices are never written, and
	// the result does not alias them.
	b := &batch{raw: slices.Clone(in.Raw), jobs: cloneJobs(in.Jobs)}
	rec := &recorder{}
	logger := o.logger.With("run_id", res.RunID, "mode", res.Mode)

	var runErr error
	for _, st := range stages {
		if runErr != nil {
			res.Stages = append(res.Stages, StageStats{Stage: st.name(), Skipped: st.size(b)})
			continue
		}
		stats, err := st.run(ctx, b, rec)
		res.Stages = append(res.Stages, stats)
		logger.Debug("stage finished",
			"stage", stats.Stage,
			"attempted", stats.Attempted,
			"succeeded", stats.Succeeded,
			"failed", stats.Failed,
			"skipped", stats.Skipped,
			"cancelled", stats.Cancelled,
			"duration", stats.Duration,
		)
		if err != nil {
			runErr = &RunError{Stage: st.name(), Err: err}
			logger.Error("run aborted", "stage", st.name(), "error", err)
		}
	}

	res.Raw = b.raw
	res.Jobs = b.jobs
	if sel.Persist && runErr == nil {
		res.Eligible = o.eligible(b.jobs)
	}
	res.Errors = rec.sorted()
	res.FinishedAt = time.Now().UTC()

	if runErr == nil && ctx.Err() != nil {
		res.Cancelled = true
		runErr = fmt.Errorf("pipeline run cancelled: %w", ctx.Err())
	}

	logger.Info("pipeline run finished",
		"raw", len(res.Raw),
		"jobs", len(res.Jobs),
		"eligible", len(res.Eligible),
		"item_errors", len(res.Errors),
		"cancelled", res.Cancelled,
		"duration", res.FinishedAt.Sub(res.StartedAt),
	)
	return res, runErr
}

// cloneJobs copies jobs along with the slices a stage may append to.
func cloneJobs(jobs []model.Job) []model.Job {
	out := slices.Clone(jobs)
	for i := range out {
		out[i].RequiredSkills = slices.Clone(out[i].RequiredSkills)
		out[i].Warnings = slices.Clone(out[i].Warnings)
	}
	return out
}

// plan validates the selection against the configured collaborators and
// returns the stages to run. Nothing is processed when it fails.
func (o *Orchestrator) plan(sel Selection) ([]stage, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	var stages []stage
	if sel.Fetch {
		if len(o.deps.Sources) == 0 {
			return nil, model.Configurationf("fetch selected but no sources configured")
		}
		stages = append(stages, &fetchStage{sources: o.deps.Sources, limit: o.cfg.Concurrency.Fetch})
	}
	if sel.Normalize {
		if o.deps.Normalizer == nil {
			return nil, model.Configurationf("normalize selected but no normalizer configured")
		}
		stages = append(stages, &normalizeStage{n: o.deps.Normalizer, limit: o.cfg.Concurrency.Normalize})
	}
	if sel.Persist {
		if o.deps.Store == nil {
			return nil, model.Configurationf("persist selected but no store configured")
		}
		stages = append(stages, &persistStage{store: o.deps.Store, limit: o.cfg.Concurrency.Persist})
	}
	return stages, nil
}

// eligible returns the stored jobs that pass the filter, in batch order.
func (o *Orchestrator) eligible(jobs []model.Job) []model.Job {
	var out []model.Job
	for _, j := range jobs {
		if j.Status != model.StatusStored {
			continue
		}
		if o.deps.Filter != nil && !o.deps.Filter.Match(j) {
			continue
		}
		out = append(out, j)
	}
	return out
}

// IsRunError reports whether err aborted a run and returns the failing stage.
func IsRunError(err error) (Stage, bool) {
	var re *RunError
	if errors.As(err, &re) {
		return re.Stage, true
	}
	return "", false
}
