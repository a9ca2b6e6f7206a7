package pipeline

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/amishk599/jobpipe/internal/model"
)

// StageStats counts what happened to the items that entered a stage.
// Attempted = Succeeded + Failed, and Attempted + Skipped + Cancelled is the
// number of items the stage received.
type StageStats struct {
	Stage     Stage         `json:"stage"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Cancelled int           `json:"cancelled"`
	Duration  time.Duration `json:"duration"`
}

// ItemError is one per-item failure. Key is the natural key for jobs and the
// source name for fetches.
type ItemError struct {
	Stage   Stage           `json:"stage"`
	Index   int             `json:"index"`
	Key     string          `json:"key"`
	Kind    model.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

// RunResult is the outcome of one run. It is built by the orchestrator and
// not touched after Run returns.
type RunResult struct {
	RunID      string         `json:"run_id"`
	Mode       string         `json:"mode"`
	Stages     []StageStats   `json:"stages"`
	Errors     []ItemError    `json:"errors,omitempty"`
	Raw        []model.RawJob `json:"-"`
	Jobs       []model.Job    `json:"-"`
	Eligible   []model.Job    `json:"-"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Cancelled  bool           `json:"cancelled"`
}

// Stats returns the stats for stage, if the run executed it.
func (r RunResult) Stats(stage Stage) (StageStats, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s, true
		}
	}
	return StageStats{}, false
}

// CountStatus returns how many jobs in the result ended in status.
func (r RunResult) CountStatus(status model.Status) int {
	n := 0
	for _, j := range r.Jobs {
		if j.Status == status {
			n++
		}
	}
	return n
}

// RunError reports the fatal error that aborted a run.
type RunError struct {
	Stage Stage
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("stage %s aborted: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// recorder collects per-item errors from concurrent workers.
type recorder struct {
	mu     sync.Mutex
	errors []ItemError
}

func (r *recorder) fail(stage Stage, index int, key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, ItemError{
		Stage:   stage,
		Index:   index,
		Key:     key,
		Kind:    model.KindOf(err),
		Message: err.Error(),
	})
}

// sorted returns the errors in stage order, then item order.
func (r *recorder) sorted() []ItemError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]ItemError(nil), r.errors...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Stage != out[j].Stage {
			return stageOrder[out[i].Stage] < stageOrder[out[j].Stage]
		}
		return out[i].Index < out[j].Index
	})
	return out
}
