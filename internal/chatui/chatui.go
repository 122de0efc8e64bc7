// Package chatui is the terminal front end for the reservation assistant.
package chatui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/example/sabores-reservas/internal/assistant"
)

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#8C3B1F")).
			Padding(0, 1)

	guestStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0a84ff"))
	botStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#30d158"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type Assistant interface {
	HandleUtterance(ctx context.Context, userID int64, text string) string
}

type entry struct {
	guest bool
	text  string
}

type replyMsg string

// Model keeps the transcript for one guest. Only one utterance is in flight
// at a time.
type Model struct {
	ctx        context.Context
	assistant  Assistant
	userID     int64
	guest      string
	restaurant string

	input   textinput.Model
	spinner spinner.Model
	lines   []entry
	waiting bool
	height  int
}

func New(ctx context.Context, a Assistant, userID int64, guest, restaurant string) Model {
	ti := textinput.New()
	ti.Placeholder = "Quiero reservar mañana a las 19:00 para 4..."
	ti.CharLimit = assistant.MaxMessageLen
	ti.Width = 60
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		ctx: ctx, assistant: a, userID: userID,
		guest: guest, restaurant: restaurant,
		input: ti, spinner: s,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(text string) tea.Cmd {
	return func() tea.Msg {
		return replyMsg(m.assistant.HandleUtterance(m.ctx, m.userID, text))
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.waiting {
				return m, nil
			}
			text := assistant.Sanitize(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.lines = append(m.lines, entry{guest: true, text: text})
			m.waiting = true
			return m, tea.Batch(m.spinner.Tick, m.ask(text))
		}
	case replyMsg:
		m.waiting = false
		m.lines = append(m.lines, entry{text: string(msg)})
		return m, nil
	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.restaurant) + "\n\n")

	lines := m.lines
	if keep := m.height - 8; m.height > 0 && keep > 0 && len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	for _, l := range lines {
		if l.guest {
			b.WriteString(guestStyle.Render(m.guest+":") + " " + l.text + "\n")
		} else {
			b.WriteString(botStyle.Render(m.restaurant+":") + " " + l.text + "\n")
		}
	}
	if m.waiting {
		b.WriteString(m.spinner.View() + " pensando...\n")
	}
	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(helpStyle.Render("enter envía · esc sale"))
	return docStyle.Render(b.String())
}

// Run blocks until the guest quits.
func Run(ctx context.Context, a Assistant, userID int64, guest, restaurant string) error {
	p := tea.NewProgram(New(ctx, a, userID, guest, restaurant))
	_, err := p.Run()
	return err
}
