package browse

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobpipe/internal/model"
)

// Snapshot is the data behind one browse screen.
type Snapshot struct {
	Jobs     []model.Job          // in store order, newest first
	Eligible []model.Job          // STORED jobs from Jobs that pass the respond filter
	Counts   map[model.Status]int // per-status counts over Jobs
}

// Flagged returns the jobs that carry at least one extraction warning.
func (s Snapshot) Flagged() []model.Job {
	var out []model.Job
	for _, j := range s.Jobs {
		if len(j.Warnings) > 0 {
			out = append(out, j)
		}
	}
	return out
}

// LoadSnapshot pages through every job matching f and splits off the ones
// eligible for a response. A nil eligible filter admits every STORED job.
func LoadSnapshot(ctx context.Context, store model.JobStore, f model.Filter, eligible model.JobFilter) (Snapshot, error) {
	snap := Snapshot{Counts: make(map[model.Status]int)}
	page := model.Page{Limit: model.MaxPageSize}
	for {
		jobs, err := store.Query(ctx, f, page)
		if err != nil {
			return Snapshot{}, fmt.Errorf("query jobs at offset %d: %w", page.Offset, err)
		}
		for _, j := range jobs {
			snap.Jobs = append(snap.Jobs, j)
			snap.Counts[j.Status]++
			if j.Status == model.StatusStored && (eligible == nil || eligible.Match(j)) {
				snap.Eligible = append(snap.Eligible, j)
			}
		}
		if len(jobs) < page.Limit {
			return snap, nil
		}
		page.Offset += len(jobs)
	}
}

type snapshotMsg struct {
	snap Snapshot
	err  error
}

// loaderModel shows a spinner until the snapshot arrives. ctrl+c cancels the
// load's context.
type loaderModel struct {
	label   string
	load    func(ctx context.Context) (Snapshot, error)
	ctx     context.Context
	cancel  context.CancelFunc
	spinner spinner.Model

	snap Snapshot
	err  error
	done bool
}

func newLoaderModel(parent context.Context, label string, load func(ctx context.Context) (Snapshot, error)) loaderModel {
	ctx, cancel := context.WithCancel(parent)
	return loaderModel{
		label:  label,
		load:   load,
		ctx:    ctx,
		cancel: cancel,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("33"))),
		),
	}
}

func (m loaderModel) Init() tea.Cmd {
	ctx, load := m.ctx, m.load
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		snap, err := load(ctx)
		return snapshotMsg{snap: snap, err: err}
	})
}

func (m loaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snap, m.err, m.done = msg.snap, msg.err, true
		m.cancel()
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.cancel()
			m.err, m.done = fmt.Errorf("%w: loading %s interrupted", model.ErrCancelled, m.label), true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m loaderModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s Loading %s...\n", m.spinner.View(), m.label)
}

// RunLoader runs load behind an inline spinner and returns its snapshot.
func RunLoader(ctx context.Context, label string, load func(ctx context.Context) (Snapshot, error)) (Snapshot, error) {
	result, err := tea.NewProgram(newLoaderModel(ctx, label, load)).Run()
	if err != nil {
		return Snapshot{}, err
	}
	final := result.(loaderModel)
	return final.snap, final.err
}
