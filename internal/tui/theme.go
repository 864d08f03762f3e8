package tui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the color scheme of the chat UI.
type Theme struct {
	Accent    lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Hint      lipgloss.Color
	Text      lipgloss.Color
	Border    lipgloss.Color
	UserBg    lipgloss.Color
	CodeText  lipgloss.Color
	Highlight lipgloss.Color
}

// defaultTheme mirrors the green/teal dark palette of the web client.
var defaultTheme = Theme{
	Accent:    lipgloss.Color("#2DD4BF"), // teal
	Success:   lipgloss.Color("#00D787"), // green
	Error:     lipgloss.Color("#FF005F"), // red
	Hint:      lipgloss.Color("#6C6C6C"), // dim gray
	Text:      lipgloss.Color("#E4E4E4"),
	Border:    lipgloss.Color("#3A3A3A"), // dark gray
	UserBg:    lipgloss.Color("#115E59"),
	CodeText:  lipgloss.Color("#FFAF5F"),
	Highlight: lipgloss.Color("#5FAFD7"), // light blue
}

// renderer forces ANSI colors: output always goes to the bubbletea screen, and
// auto-detection would strip colors when stderr is not a TTY.
var renderer = func() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(termenv.ANSI256))
	r.SetColorProfile(termenv.ANSI256)
	return r
}()

func (t Theme) style() lipgloss.Style {
	return renderer.NewStyle()
}

func (t Theme) accentStyle() lipgloss.Style {
	return t.style().Foreground(t.Accent).Bold(true)
}

func (t Theme) textStyle() lipgloss.Style {
	return t.style().Foreground(t.Text)
}

func (t Theme) successStyle() lipgloss.Style {
	return t.style().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return t.style().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return t.style().Foreground(t.Hint).Italic(true)
}

func (t Theme) dimStyle() lipgloss.Style {
	return t.style().Foreground(t.Hint)
}

func (t Theme) selectedStyle() lipgloss.Style {
	return t.style().Foreground(t.Accent).Bold(true)
}

func (t Theme) sidebarStyle(width, height int) lipgloss.Style {
	return t.style().
		Width(width).
		Height(height).
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(t.Border).
		PaddingRight(1)
}

func (t Theme) userBubbleStyle() lipgloss.Style {
	return t.style().Foreground(lipgloss.Color("#FFFFFF")).Background(t.UserBg).Padding(0, 1)
}

func (t Theme) boxStyle() lipgloss.Style {
	return t.style().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(1, 2)
}
