package browse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amishk599/jobpipe/internal/model"
)

type titleFilter string

func (f titleFilter) Match(j model.Job) bool { return strings.Contains(j.Title, string(f)) }

// sliceStore serves Query from a fixed slice and records the pages asked for.
type sliceStore struct {
	model.JobStore
	jobs  []model.Job
	pages []model.Page
	err   error
}

func (s *sliceStore) Query(_ context.Context, _ model.Filter, p model.Page) ([]model.Job, error) {
	s.pages = append(s.pages, p)
	if s.err != nil {
		return nil, s.err
	}
	end := min(p.Offset+p.Limit, len(s.jobs))
	if p.Offset >= end {
		return nil, nil
	}
	return s.jobs[p.Offset:end], nil
}

func ptrTime(t time.Time) *time.Time { return &t }

func testSnapshot() Snapshot {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	jobs := []model.Job{
		{ID: "c", Title: "Go SRE", Company: "Globex", Status: model.StatusResponded, PostedAt: ptrTime(base.Add(48 * time.Hour))},
		{ID: "d", Title: "Go Intern", Company: "Initech", Status: model.StatusStored, PostedAt: ptrTime(base.Add(24 * time.Hour)),
			Description: "Write Go services.", Warnings: []model.Warning{{Kind: model.WarnSalaryUnparsable, Field: "salary"}}},
		{ID: "a", Title: "Go Engineer", Company: "Acme", Status: model.StatusStored, PostedAt: ptrTime(base)},
		{ID: "b", Title: "Java Engineer", Company: "Acme", Status: model.StatusStored},
	}
	snap, err := LoadSnapshot(context.Background(), &sliceStore{jobs: jobs}, model.Filter{}, titleFilter("Go"))
	if err != nil {
		panic(err)
	}
	return snap
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sized(m browseModel) browseModel {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return next.(browseModel)
}

func press(m browseModel, keys ...string) (browseModel, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(key(k))
		m = next.(browseModel)
	}
	return m, cmd
}

func ids(jobs []model.Job) string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return strings.Join(out, ",")
}

func TestLoadSnapshot(t *testing.T) {
	snap := testSnapshot()

	if got := ids(snap.Jobs); got != "c,d,a,b" {
		t.Errorf("Jobs = %s, want store order c,d,a,b", got)
	}
	// c is RESPONDED, b fails the filter.
	if got := ids(snap.Eligible); got != "d,a" {
		t.Errorf("Eligible = %s, want d,a", got)
	}
	if got := ids(snap.Flagged()); got != "d" {
		t.Errorf("Flagged = %s, want d", got)
	}
	if snap.Counts[model.StatusStored] != 3 || snap.Counts[model.StatusResponded] != 1 {
		t.Errorf("Counts = %v", snap.Counts)
	}
}

func TestLoadSnapshot_Pages(t *testing.T) {
	jobs := make([]model.Job, model.MaxPageSize+3)
	for i := range jobs {
		jobs[i] = model.Job{ID: fmt.Sprint(i), Status: model.StatusStored}
	}
	st := &sliceStore{jobs: jobs}

	snap, err := LoadSnapshot(context.Background(), st, model.Filter{}, nil)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(snap.Jobs) != len(jobs) || len(snap.Eligible) != len(jobs) {
		t.Errorf("loaded %d jobs, %d eligible, want %d", len(snap.Jobs), len(snap.Eligible), len(jobs))
	}
	if len(st.pages) != 2 || st.pages[1].Offset != model.MaxPageSize {
		t.Errorf("pages = %+v", st.pages)
	}
}

func TestLoadSnapshot_QueryError(t *testing.T) {
	_, err := LoadSnapshot(context.Background(), &sliceStore{err: model.ErrPersistence}, model.Filter{}, nil)
	if !errors.Is(err, model.ErrPersistence) {
		t.Errorf("err = %v, want persistence error", err)
	}
}

func TestUpdate_TabsAndCursor(t *testing.T) {
	m := sized(newBrowseModel(testSnapshot(), nil))
	if !m.ready {
		t.Fatal("model not ready after resize")
	}

	m, _ = press(m, "j", "j")
	if m.cursor[tabAll] != 2 {
		t.Errorf("cursor = %d, want 2", m.cursor[tabAll])
	}
	m, _ = press(m, "G", "j", "j")
	if m.cursor[tabAll] != 3 {
		t.Errorf("cursor = %d, want clamp at 3", m.cursor[tabAll])
	}

	m, _ = press(m, "tab")
	if m.tab != tabEligible || m.cursor[tabEligible] != 0 {
		t.Fatalf("tab = %d cursor = %d, want eligible tab at 0", m.tab, m.cursor[tabEligible])
	}
	if !strings.Contains(m.list.View(), "Go Intern") || strings.Contains(m.list.View(), "Java Engineer") {
		t.Errorf("eligible list:\n%s", m.list.View())
	}

	m, _ = press(m, "3")
	if m.tab != tabFlagged {
		t.Errorf("tab = %d, want flagged", m.tab)
	}
	m, _ = press(m, "tab")
	if m.tab != tabAll || m.cursor[tabAll] != 3 {
		t.Errorf("tab = %d cursor = %d, want all tab with cursor kept", m.tab, m.cursor[tabAll])
	}
	if !strings.Contains(m.View(), "2 Eligible (2)") {
		t.Errorf("tab header missing:\n%s", m.View())
	}
}

func TestUpdate_Detail(t *testing.T) {
	m := sized(newBrowseModel(testSnapshot(), nil))

	m, _ = press(m, "j", "enter")
	if m.open == nil || m.open.ID != "d" {
		t.Fatalf("open = %+v, want job d", m.open)
	}
	detail := m.renderDetail()
	if !strings.Contains(detail, "Warnings") || strings.Contains(detail, "Write Go services.") {
		t.Errorf("detail before d:\n%s", detail)
	}

	m, _ = press(m, "d")
	if !strings.Contains(m.renderDetail(), "Write Go services.") {
		t.Error("d did not show the description")
	}

	m, _ = press(m, "n")
	if m.open.ID != "a" || m.cursor[tabAll] != 2 {
		t.Errorf("n opened %s (cursor %d), want a", m.open.ID, m.cursor[tabAll])
	}
	m, _ = press(m, "p", "p", "p")
	if m.open.ID != "c" {
		t.Errorf("p opened %s, want c at the top", m.open.ID)
	}

	m, _ = press(m, "esc")
	if m.open != nil {
		t.Error("esc did not return to the list")
	}
	m, cmd := press(m, "esc")
	if m.wantQuit || cmd == nil {
		t.Error("esc in the list should go back without quitting")
	}

	m, cmd = press(sized(newBrowseModel(testSnapshot(), nil)), "enter", "q")
	if !m.wantQuit || cmd == nil {
		t.Error("q should quit from the detail pane")
	}
}

func TestUpdate_EnterOnEmptyTab(t *testing.T) {
	m := sized(newBrowseModel(Snapshot{}, nil))
	m, _ = press(m, "enter", "j")
	if m.open != nil {
		t.Error("opened a job from an empty list")
	}
	if !strings.Contains(m.list.View(), "nothing here") {
		t.Errorf("empty list view:\n%s", m.list.View())
	}
}

func TestUpdate_HistoryLoadedOnDemand(t *testing.T) {
	calls := 0
	m := sized(newBrowseModel(testSnapshot(), func(_ context.Context, id string) ([]model.AuditEntry, error) {
		calls++
		return []model.AuditEntry{{
			JobID:      id,
			RecordedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			Prior:      map[string]any{"title": "Golang SRE", "company": "GLOBEX"},
		}}, nil
	}))

	m, cmd := press(m, "enter", "h")
	if !m.showHistory || cmd == nil || !m.histories["c"].loading {
		t.Fatalf("h should start loading history (show=%v)", m.showHistory)
	}
	if !strings.Contains(m.renderDetail(), "loading...") {
		t.Error("loading state not rendered")
	}

	next, _ := m.Update(cmd())
	m = next.(browseModel)
	if detail := m.renderDetail(); !strings.Contains(detail, "company was GLOBEX; title was Golang SRE") {
		t.Errorf("history not rendered:\n%s", detail)
	}

	m, _ = press(m, "h")
	m, cmd = press(m, "h")
	if cmd != nil || calls != 1 {
		t.Errorf("history reloaded (calls=%d)", calls)
	}
}

func TestUpdate_HistoryErrorIsRetried(t *testing.T) {
	fail := true
	m := sized(newBrowseModel(testSnapshot(), func(context.Context, string) ([]model.AuditEntry, error) {
		if fail {
			return nil, errors.New("db closed")
		}
		return nil, nil
	}))

	m, cmd := press(m, "enter", "h")
	next, _ := m.Update(cmd())
	m = next.(browseModel)
	if !strings.Contains(m.renderDetail(), "db closed") {
		t.Error("history error not rendered")
	}

	fail = false
	m, _ = press(m, "h")
	m, cmd = press(m, "h")
	if cmd == nil {
		t.Fatal("failed history was not retried")
	}
	next, _ = m.Update(cmd())
	m = next.(browseModel)
	if !strings.Contains(m.renderDetail(), "unchanged since first stored") {
		t.Errorf("empty history not rendered:\n%s", m.renderDetail())
	}
}

func TestLoaderModel(t *testing.T) {
	m := newLoaderModel(context.Background(), "jobs", func(context.Context) (Snapshot, error) {
		return Snapshot{Jobs: []model.Job{{ID: "x"}}}, nil
	})
	next, cmd := m.Update(snapshotMsg{snap: Snapshot{Jobs: []model.Job{{ID: "x"}}}})
	got := next.(loaderModel)
	if !got.done || got.err != nil || len(got.snap.Jobs) != 1 || cmd == nil {
		t.Errorf("loader after snapshot: done=%v err=%v jobs=%d", got.done, got.err, len(got.snap.Jobs))
	}
	if got.View() != "" {
		t.Errorf("View after done = %q", got.View())
	}
}

func TestLoaderModel_CtrlCCancelsLoad(t *testing.T) {
	m := newLoaderModel(context.Background(), "jobs", nil)
	next, cmd := m.Update(key("ctrl+c"))
	got := next.(loaderModel)
	if !errors.Is(got.err, model.ErrCancelled) || cmd == nil {
		t.Errorf("err = %v, want cancelled", got.err)
	}
	if got.ctx.Err() == nil {
		t.Error("load context not cancelled")
	}
}

func TestChoices(t *testing.T) {
	got := Choices(map[model.Status]int{
		model.StatusStored:    3,
		model.StatusFailed:    1,
		model.StatusResponded: 2,
	})
	want := []StatusChoice{
		{Count: 6},
		{Status: model.StatusStored, Count: 3},
		{Status: model.StatusResponded, Count: 2},
		{Status: model.StatusFailed, Count: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("Choices = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Choices[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if got[0].label() != "ALL (6)" {
		t.Errorf("label = %q", got[0].label())
	}
}

func TestFormatSalaryAndRowMeta(t *testing.T) {
	lo := int64(90000)
	j := model.Job{Company: "Acme", SalaryMin: &lo, Currency: model.CurrencyEUR,
		PostedAt: ptrTime(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))}
	if got := formatSalary(j); got != "90000 - ? EUR" {
		t.Errorf("formatSalary = %q", got)
	}
	if got := rowMeta(j); got != "Acme · 90000 - ? EUR · 2026-04-01" {
		t.Errorf("rowMeta = %q", got)
	}
	if got := formatSalary(model.Job{}); got != "" {
		t.Errorf("formatSalary(empty) = %q", got)
	}
}
