package browse

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobpipe/internal/model"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(1, 0, 1, 2)

	pickerItemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 0, 0, 2)

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

// StatusChoice is one entry of the status picker. An empty Status stands for
// every job.
type StatusChoice struct {
	Status model.Status
	Count  int
}

func (c StatusChoice) label() string {
	name := string(c.Status)
	if name == "" {
		name = "ALL"
	}
	return fmt.Sprintf("%s (%d)", name, c.Count)
}

// Choices builds the picker entries from per-status counts, in state
// machine order with ALL first.
func Choices(counts map[model.Status]int) []StatusChoice {
	order := []model.Status{
		model.StatusStored,
		model.StatusResponded,
		model.StatusFailed,
		model.StatusNormalized,
		model.StatusRaw,
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	out := []StatusChoice{{Count: total}}
	for _, st := range order {
		if n := counts[st]; n > 0 {
			out = append(out, StatusChoice{Status: st, Count: n})
		}
	}
	return out
}

type pickerModel struct {
	choices []StatusChoice
	cursor  int
	chosen  int // -1 = no choice yet, -2 = quit
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.chosen = -2
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}
		case "enter":
			m.chosen = m.cursor
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	s := pickerTitleStyle.Render("Browse jobs: select a status")
	s += "\n"

	for i, c := range m.choices {
		if i == m.cursor {
			s += pickerSelectedStyle.Render("> "+c.label()) + "\n"
		} else {
			s += pickerItemStyle.Render(c.label()) + "\n"
		}
	}

	s += pickerHintStyle.Render("↑/↓/j/k navigate  enter select  q quit")
	return s
}

// RunStatusPicker shows an interactive status selector.
// Returns the index of the chosen entry, or -1 if the user quit.
func RunStatusPicker(choices []StatusChoice) (int, error) {
	m := pickerModel{
		choices: choices,
		chosen:  -1,
	}

	p := tea.NewProgram(m)
	result, err := p.Run()
	if err != nil {
		return -1, err
	}

	final := result.(pickerModel)
	if final.chosen < 0 {
		return -1, nil
	}
	return final.chosen, nil
}
