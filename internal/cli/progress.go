package cli

import (
	"fmt"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/chatbot-go/internal/store"
)

const pollInterval = 250 * time.Millisecond

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers polling the typing indicator
type tickMsg time.Time

// sendDoneMsg carries the result of the send flow
type sendDoneMsg struct {
	err error
}

// progressModel shows a spinner while a message is sent and the AI replies.
type progressModel struct {
	send     func() error
	store    *store.Store
	spinner  spinner.Model
	theme    Theme
	started  time.Time
	typing   bool
	done     bool
	quitting bool
	err      error
}

// newProgressModel creates a progress model that runs send when started.
func newProgressModel(st *store.Store, send func() error) progressModel {
	return progressModel{
		send:    send,
		store:   st,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		theme:   defaultTheme,
		started: time.Now(),
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the send flow, the spinner and polling.
func (m progressModel) Init() tea.Cmd {
	send := m.send
	return tea.Batch(
		func() tea.Msg { return sendDoneMsg{err: send()} },
		m.spinner.Tick,
		tickCmd(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		m.typing = m.store.Typing()
		return m, tickCmd()

	case sendDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}
	if m.quitting {
		return m.theme.hintStyle().Render("Cancelled.") + "\n"
	}

	status := "Sending message…"
	if m.typing {
		status = "AI is typing…"
	}
	elapsed := time.Since(m.started).Truncate(100 * time.Millisecond)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")

	return fmt.Sprintf("%s %s %s\n%s\n",
		m.spinner.View(), m.theme.statusStyle().Render(status), elapsed, hint)
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("✗ Failed: %s", m.err)) + "\n"
	}
	elapsed := time.Since(m.started).Truncate(100 * time.Millisecond)
	return m.theme.completedStyle().Render("✓ Reply received") + " " + m.theme.hintStyle().Render(elapsed.String()) + "\n"
}
