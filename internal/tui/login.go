package tui

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/chatbot-go/internal/auth"
	"github.com/raphaelgruber/chatbot-go/internal/service"
)

const (
	fieldEmail = iota
	fieldPassword
)

// loginForm is the sign-in / sign-up screen.
type loginForm struct {
	email    textinput.Model
	password textinput.Model
	focus    int
	signUp   bool
	busy     bool
	err      string
}

func newLoginForm(email, password string) loginForm {
	e := textinput.New()
	e.Prompt = "Email     "
	e.Placeholder = "you@example.com"
	e.SetValue(email)

	p := textinput.New()
	p.Prompt = "Password  "
	p.Placeholder = "••••••••"
	p.EchoMode = textinput.EchoPassword
	p.EchoCharacter = '•'
	p.SetValue(password)

	return loginForm{email: e, password: p}
}

func (f *loginForm) focusCmd() tea.Cmd {
	if f.focus == fieldPassword {
		f.email.Blur()
		return f.password.Focus()
	}
	f.password.Blur()
	return f.email.Focus()
}

// reset clears everything but the email.
func (f *loginForm) reset() {
	f.password.Reset()
	f.focus = fieldEmail
	f.busy = false
	f.err = ""
}

func (m model) updateLogin(msg tea.Msg) (tea.Model, tea.Cmd) {
	f := &m.login
	if key, ok := msg.(tea.KeyPressMsg); ok {
		switch key.String() {
		case "tab", "shift+tab", "up", "down":
			f.focus = 1 - f.focus
			return m, f.focusCmd()
		case "ctrl+t":
			f.signUp = !f.signUp
			f.err = ""
			return m, nil
		case "enter":
			if f.busy {
				return m, nil
			}
			email := strings.TrimSpace(f.email.Value())
			password := f.password.Value()
			if email == "" || password == "" {
				f.err = auth.MissingCredentialsMessage
				return m, func() tea.Msg {
					return noticeMsg(service.Notice{Level: service.LevelError, Title: "Error", Text: auth.MissingCredentialsMessage})
				}
			}
			f.busy = true
			f.err = ""
			return m, m.authenticate(f.signUp, email, password)
		}
	}

	var cmd tea.Cmd
	if f.focus == fieldPassword {
		f.password, cmd = f.password.Update(msg)
	} else {
		f.email, cmd = f.email.Update(msg)
	}
	return m, cmd
}

func (m model) loginView() string {
	t := m.theme
	f := m.login

	title := "Welcome Back"
	subtitle := "Sign in to continue to AI Chat"
	action := "enter sign in"
	toggle := "ctrl+t create an account"
	if f.signUp {
		title = "Create Account"
		subtitle = "Sign up to start chatting with AI"
		action = "enter sign up"
		toggle = "ctrl+t back to sign in"
	}

	var b strings.Builder
	b.WriteString(t.accentStyle().Render(title) + "\n")
	b.WriteString(t.dimStyle().Render(subtitle) + "\n\n")
	b.WriteString(f.email.View() + "\n")
	b.WriteString(f.password.View() + "\n\n")

	switch {
	case f.busy || m.status == auth.StatusLoading:
		b.WriteString(t.hintStyle().Render("Signing in…") + "\n")
	case f.err != "":
		b.WriteString(t.errorStyle().Render(f.err) + "\n")
	default:
		b.WriteString("\n")
	}
	b.WriteString("\n" + t.dimStyle().Render(action+" • tab switch field • "+toggle+" • ctrl+c quit"))

	box := t.boxStyle().Width(min(64, max(m.width-4, 30))).Render(b.String())
	page := renderer.Place(m.width, max(m.height-2, lipgloss.Height(box)), lipgloss.Center, lipgloss.Center, box)
	return page + "\n" + m.toastView()
}
