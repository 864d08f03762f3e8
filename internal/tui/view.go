package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/chatbot-go/internal/models"
	"github.com/raphaelgruber/chatbot-go/internal/service"
)

func (m model) chatView() string {
	footer := m.footerView()
	bodyHeight := max(m.height-lipgloss.Height(footer), 5)
	sidebar := m.theme.sidebarStyle(sidebarWidth-2, bodyHeight).Render(m.sidebarView(sidebarWidth-2, bodyHeight))
	main := m.mainView(m.mainWidth(), bodyHeight)
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " "+main) + "\n" + footer
}

func (m model) sidebarView(width, height int) string {
	t := m.theme
	var lines []string

	email := ""
	if u := m.deps.Auth.User(); u != nil {
		email = u.Email
	}
	lines = append(lines,
		t.accentStyle().Render(oneLine("AI Chat", width)),
		t.dimStyle().Render(oneLine(email, width)),
		"",
	)

	chats := m.state.Chats
	switch {
	case len(chats) == 0 && m.state.Loading:
		lines = append(lines, t.hintStyle().Render("Loading chats…"))
	case len(chats) == 0:
		lines = append(lines, t.hintStyle().Render("No chats yet"), t.hintStyle().Render("ctrl+n to start one"))
	}

	// each entry takes three lines plus a separator
	visible := max((height-len(lines))/4, 1)
	start := 0
	for i, c := range chats {
		if c.ID == m.state.ActiveChat && i >= visible {
			start = i - visible + 1
		}
	}
	now := m.now()
	for i := start; i < len(chats) && i < start+visible; i++ {
		c := chats[i]
		title := oneLine(c.Title, width-2)
		preview := "No messages yet"
		if p := c.Preview(); p != nil {
			preview = p.Content
		}
		if c.ID == m.state.ActiveChat {
			lines = append(lines, t.selectedStyle().Render("▌ "+title))
		} else {
			lines = append(lines, t.textStyle().Render("  "+title))
		}
		lines = append(lines,
			t.dimStyle().Render("  "+oneLine(preview, width-2)),
			t.dimStyle().Render("  "+relativeTime(c.LastActivity(), now)),
			"",
		)
	}
	return strings.Join(lines, "\n")
}

func (m model) mainView(width, height int) string {
	t := m.theme
	chat := m.state.ActiveChatInfo()

	title := "AI Assistant"
	if chat != nil {
		title = chat.Title
	}
	header := t.accentStyle().Render(oneLine(title, width-20)) + t.dimStyle().Render("  ● AI Assistant Online")
	if m.renaming {
		header = m.rename.View()
	}
	rule := t.dimStyle().Render(strings.Repeat("─", width))

	if m.state.ActiveChat == "" {
		welcome := t.accentStyle().Render("Welcome to AI Chat") + "\n\n" +
			t.dimStyle().Render("Select a chat or create a new one to start chatting with AI")
		body := renderer.Place(width, height-2, lipgloss.Center, lipgloss.Center, welcome)
		return header + "\n" + rule + "\n" + body
	}

	composer := m.composerView(width)
	bodyHeight := max(height-2-lipgloss.Height(composer), 1)

	var body string
	if len(m.state.Messages) == 0 && !m.state.Typing {
		body = renderer.Place(width, bodyHeight, lipgloss.Center, lipgloss.Center,
			t.hintStyle().Render("Start a conversation with the AI assistant"))
	} else {
		body = tail(m.messagesView(width), bodyHeight)
	}
	return header + "\n" + rule + "\n" + body + "\n" + composer
}

func (m model) messagesView(width int) string {
	t := m.theme
	var blocks []string
	for _, msg := range m.state.Messages {
		blocks = append(blocks, m.messageView(msg, width))
	}
	if m.state.Typing {
		blocks = append(blocks, t.accentStyle().Render("Assistant")+"\n"+t.hintStyle().Render("  AI is typing…"))
	}
	return strings.Join(blocks, "\n\n")
}

func (m model) messageView(msg models.Message, width int) string {
	t := m.theme
	stamp := t.dimStyle().Render(messageTime(msg.CreatedAt))

	if msg.Role == models.RoleUser {
		bubbleWidth := max(width*7/10, 20)
		bubble := t.userBubbleStyle().Width(min(bubbleWidth, lipgloss.Width(msg.Content)+2)).Render(msg.Content)
		label := t.textStyle().Render("You") + " " + stamp
		return renderer.PlaceHorizontal(width, lipgloss.Right, label) + "\n" +
			renderer.PlaceHorizontal(width, lipgloss.Right, bubble)
	}

	label := t.accentStyle().Render("Assistant") + " " + stamp
	content := renderMarkdown(msg.Content, t, width-2)
	return label + "\n" + indent(content, "  ")
}

func (m model) composerView(width int) string {
	t := m.theme
	label, nearFull := charCounter(m.input.Value())
	counter := t.dimStyle().Render(label)
	if nearFull {
		counter = t.errorStyle().Render(label)
	}
	status := ""
	if m.sending {
		status = t.hintStyle().Render("Sending…")
	}
	gap := max(width-lipgloss.Width(status)-lipgloss.Width(counter), 1)
	return m.input.View() + "\n" + status + strings.Repeat(" ", gap) + counter
}

func (m model) footerView() string {
	t := m.theme
	hints := "enter send • ↑/↓ select • ctrl+n new • ctrl+r rename • ctrl+x delete • ctrl+o sign out • ctrl+c quit"
	line := t.dimStyle().Render(oneLine(hints, m.width))

	if s := m.deps.Metrics.Snapshot().AIAction; s != nil && s.Count > 0 {
		line = t.dimStyle().Render(oneLine(hints, max(m.width-24, 10))) +
			t.dimStyle().Render(fmt.Sprintf("  avg reply %.1fs", s.AvgTimeMs/1000))
	}
	if toasts := m.toastView(); toasts != "" {
		return toasts + "\n" + line
	}
	if m.state.Error != "" {
		return t.errorStyle().Render(oneLine(m.state.Error, m.width)) + "\n" + line
	}
	return line
}

// toastView renders the live notices, newest last.
func (m model) toastView() string {
	t := m.theme
	var lines []string
	for _, ts := range m.toasts {
		n := ts.notice
		text := n.Title + ": " + n.Text
		if n.Level == service.LevelError {
			lines = append(lines, t.errorStyle().Render("✗ "+oneLine(text, m.width-2)))
		} else {
			lines = append(lines, t.successStyle().Render("✓ "+oneLine(text, m.width-2)))
		}
	}
	return strings.Join(lines, "\n")
}

// tail keeps the last n lines of s.
func tail(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}
