// Package browse is an interactive terminal browser over the job store.
package browse

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobpipe/internal/model"
)

// tab is one filtered view over the snapshot.
type tab int

const (
	tabAll tab = iota
	tabEligible
	tabFlagged
	tabCount
)

var tabNames = [tabCount]string{"All", "Eligible", "Flagged"}

var (
	tabStyle       = lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("245"))
	activeTabStyle = tabStyle.Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("24"))
	cursorRowStyle = lipgloss.NewStyle().Background(lipgloss.Color("236")).Bold(true)
	faintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Width(12)
	sectionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginTop(1)
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")).Padding(0, 1)

	statusColors = map[model.Status]lipgloss.Color{
		model.StatusStored:     "42",
		model.StatusResponded:  "39",
		model.StatusFailed:     "196",
		model.StatusCancelled:  "240",
		model.StatusNormalized: "214",
		model.StatusRaw:        "245",
	}
)

func statusBadge(s model.Status) string {
	return lipgloss.NewStyle().Width(10).Foreground(statusColors[s]).Render(string(s))
}

// historyLoader loads the audit log of one job.
type historyLoader func(ctx context.Context, id string) ([]model.AuditEntry, error)

// history is the audit log of one job as far as it has been loaded.
type history struct {
	loading bool
	entries []model.AuditEntry
	err     error
}

type historyMsg struct {
	id      string
	entries []model.AuditEntry
	err     error
}

type browseModel struct {
	snap   Snapshot
	lists  [tabCount][]model.Job
	tab    tab
	cursor [tabCount]int

	list   viewport.Model
	detail viewport.Model
	width  int
	height int
	ready  bool

	// open is the job shown in the detail pane, nil in the list.
	open            *model.Job
	showDescription bool
	showHistory     bool
	histories       map[string]history
	loadHistory     historyLoader

	wantQuit bool
}

func newBrowseModel(snap Snapshot, load historyLoader) browseModel {
	m := browseModel{
		snap:        snap,
		histories:   make(map[string]history),
		loadHistory: load,
	}
	m.lists[tabAll] = snap.Jobs
	m.lists[tabEligible] = snap.Eligible
	m.lists[tabFlagged] = snap.Flagged()
	return m
}

func (m browseModel) Init() tea.Cmd { return nil }

func (m browseModel) current() []model.Job { return m.lists[m.tab] }

func (m browseModel) selected() (model.Job, bool) {
	jobs := m.current()
	if len(jobs) == 0 {
		return model.Job{}, false
	}
	return jobs[m.cursor[m.tab]], true
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		// tabs, counts and footer take three lines.
		h := max(m.height-3, 3)
		if !m.ready {
			m.list, m.detail = viewport.New(m.width, h), viewport.New(m.width, h)
			m.ready = true
		} else {
			m.list.Width, m.list.Height = m.width, h
			m.detail.Width, m.detail.Height = m.width, h
		}
		m.refresh()
		return m, nil

	case historyMsg:
		m.histories[msg.id] = history{entries: msg.entries, err: msg.err}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.wantQuit = true
			return m, tea.Quit
		}
		if m.open != nil {
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m browseModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "b":
		return m, tea.Quit
	case "tab", "right", "l":
		m.tab = (m.tab + 1) % tabCount
	case "shift+tab", "left":
		m.tab = (m.tab + tabCount - 1) % tabCount
	case "1", "2", "3":
		m.tab = tab(msg.String()[0] - '1')
	case "down", "j":
		m.move(1)
	case "up", "k":
		m.move(-1)
	case "g", "home":
		m.move(-len(m.current()))
	case "G", "end":
		m.move(len(m.current()))
	case "enter":
		if j, ok := m.selected(); ok {
			m.open = &j
			m.showDescription, m.showHistory = false, false
			m.detail.GotoTop()
		}
	default:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	m.refresh()
	return m, nil
}

func (m browseModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg.String() {
	case "esc", "backspace":
		m.open = nil
	case "n", "p":
		// step through the current tab without leaving the detail pane.
		if msg.String() == "n" {
			m.move(1)
		} else {
			m.move(-1)
		}
		j, _ := m.selected()
		m.open = &j
		m.detail.GotoTop()
		if m.showHistory {
			cmd = m.fetchHistory()
		}
	case "o":
		openURL(m.open.URL)
		return m, nil
	case "d":
		m.showDescription = !m.showDescription
	case "h":
		m.showHistory = !m.showHistory
		if m.showHistory {
			cmd = m.fetchHistory()
		}
	default:
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}
	m.refresh()
	return m, cmd
}

// fetchHistory marks the open job's history as loading and returns the
// command that loads it. Loaded or loading histories are not fetched again;
// a failed load is retried.
func (m *browseModel) fetchHistory() tea.Cmd {
	id := m.open.ID
	if m.loadHistory == nil || id == "" {
		return nil
	}
	if h, seen := m.histories[id]; seen && h.err == nil {
		return nil
	}
	m.histories[id] = history{loading: true}
	load := m.loadHistory
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		entries, err := load(ctx, id)
		return historyMsg{id: id, entries: entries, err: err}
	}
}

func (m *browseModel) move(delta int) {
	n := len(m.current())
	if n == 0 {
		return
	}
	c := min(max(m.cursor[m.tab]+delta, 0), n-1)
	m.cursor[m.tab] = c
	if c < m.list.YOffset {
		m.list.SetYOffset(c)
	} else if c >= m.list.YOffset+m.list.Height {
		m.list.SetYOffset(c - m.list.Height + 1)
	}
}

func (m *browseModel) refresh() {
	if !m.ready {
		return
	}
	m.list.SetContent(m.renderRows())
	if m.open != nil {
		m.detail.SetContent(m.renderDetail())
	}
}

func (m browseModel) renderRows() string {
	jobs := m.current()
	if len(jobs) == 0 {
		return faintStyle.Render("  nothing here")
	}
	rows := make([]string, len(jobs))
	for i, j := range jobs {
		row := fmt.Sprintf("%s %s  %s", statusBadge(j.Status), j.Title, faintStyle.Render(rowMeta(j)))
		if len(j.Warnings) > 0 {
			row += warnStyle.Render(fmt.Sprintf("  ⚠%d", len(j.Warnings)))
		}
		if i == m.cursor[m.tab] {
			row = cursorRowStyle.Width(m.width).Render("▸ " + row)
		} else {
			row = "  " + row
		}
		rows[i] = row
	}
	return strings.Join(rows, "\n")
}

// rowMeta is the company, salary and posting date of a list row.
func rowMeta(j model.Job) string {
	parts := []string{j.Company}
	if s := formatSalary(j); s != "" {
		parts = append(parts, s)
	}
	if j.PostedAt != nil {
		parts = append(parts, j.PostedAt.Format(time.DateOnly))
	}
	return strings.Join(parts, " · ")
}

func (m browseModel) renderDetail() string {
	j := *m.open
	var b strings.Builder
	row := func(label, value string) {
		if value != "" && value != "unknown" {
			fmt.Fprintf(&b, "%s%s\n", labelStyle.Render(label), value)
		}
	}

	b.WriteString(lipgloss.NewStyle().Bold(true).Render(j.Title) + "  " + statusBadge(j.Status) + "\n\n")
	row("Company", j.Company)
	row("Location", j.Location)
	row("Type", strings.TrimSpace(string(j.JobType)+" "+string(j.RemoteType)))
	row("Salary", formatSalary(j))
	row("Skills", strings.Join(j.RequiredSkills, ", "))
	row("Key", j.Key().String())
	row("ID", j.ID)
	if j.PostedAt != nil {
		row("Posted", j.PostedAt.Format(time.DateOnly))
	}
	if !j.UpdatedAt.IsZero() {
		row("Updated", j.UpdatedAt.Local().Format(time.DateTime))
	}
	row("URL", j.URL)

	if len(j.Warnings) > 0 {
		b.WriteString(sectionStyle.Render("Warnings") + "\n")
		for _, w := range j.Warnings {
			b.WriteString(warnStyle.Render("  "+w.String()) + "\n")
		}
	}

	if m.showHistory {
		b.WriteString(sectionStyle.Render("History") + "\n")
		h := m.histories[j.ID]
		switch {
		case j.ID == "":
			b.WriteString(faintStyle.Render("  not stored") + "\n")
		case h.loading:
			b.WriteString(faintStyle.Render("  loading...") + "\n")
		case h.err != nil:
			b.WriteString(errStyle.Render("  "+h.err.Error()) + "\n")
		default:
			b.WriteString(renderHistory(h.entries))
		}
	}

	if m.showDescription && j.Description != "" {
		b.WriteString(sectionStyle.Render("Description") + "\n")
		b.WriteString(lipgloss.NewStyle().Width(max(m.width-2, 20)).Render(j.Description) + "\n")
	}
	return b.String()
}

// renderHistory lists audit entries oldest first with the prior value of
// every field each write changed.
func renderHistory(entries []model.AuditEntry) string {
	if len(entries) == 0 {
		return faintStyle.Render("  unchanged since first stored") + "\n"
	}
	var b strings.Builder
	for _, e := range entries {
		fields := make([]string, 0, len(e.Prior))
		for k := range e.Prior {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		for i, k := range fields {
			fields[i] = fmt.Sprintf("%s was %v", k, e.Prior[k])
		}
		fmt.Fprintf(&b, "  %s  %s\n", faintStyle.Render(e.RecordedAt.Local().Format(time.DateTime)), strings.Join(fields, "; "))
	}
	return b.String()
}

func formatSalary(j model.Job) string {
	if !j.HasSalary() {
		return ""
	}
	bound := func(v *int64) string {
		if v == nil {
			return "?"
		}
		return fmt.Sprintf("%d", *v)
	}
	s := bound(j.SalaryMin) + " - " + bound(j.SalaryMax)
	if j.Currency != "" && j.Currency != model.CurrencyUnknown {
		s += " " + string(j.Currency)
	}
	return s
}

func (m browseModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	tabs := make([]string, tabCount)
	for t := range tabCount {
		label := fmt.Sprintf("%d %s (%d)", t+1, tabNames[t], len(m.lists[t]))
		if t == m.tab {
			tabs[t] = activeTabStyle.Render(label)
		} else {
			tabs[t] = tabStyle.Render(label)
		}
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	var counts []string
	for _, c := range Choices(m.snap.Counts)[1:] {
		counts = append(counts, c.label())
	}
	sub := faintStyle.Render(" " + strings.Join(counts, "  "))

	body, keys := m.list.View(), "tab/1-3 view  ↑/↓ move  enter open  esc back  q quit"
	if m.open != nil {
		body, keys = m.detail.View(), "d description  h history  n/p next/prev  o open url  esc list  q quit"
	}
	return header + "\n" + sub + "\n" + body + "\n" + footerStyle.Width(m.width).Render(keys)
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	if url == "" {
		return
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// Run opens the browser over snap, with tabs for every job, the eligible
// ones and the ones carrying warnings. Audit logs are loaded from store on
// demand. It reports whether the user asked to quit rather than go back.
func Run(snap Snapshot, store model.JobStore) (bool, error) {
	var load historyLoader
	if store != nil {
		load = store.AuditLog
	}
	result, err := tea.NewProgram(newBrowseModel(snap, load), tea.WithAltScreen()).Run()
	if err != nil {
		return false, err
	}
	return result.(browseModel).wantQuit, nil
}
