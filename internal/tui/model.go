package tui

import (
	"context"
	"errors"
	"time"

	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/chatbot-go/internal/auth"
	"github.com/raphaelgruber/chatbot-go/internal/models"
	"github.com/raphaelgruber/chatbot-go/internal/service"
	"github.com/raphaelgruber/chatbot-go/internal/store"
)

const (
	sidebarWidth = 34
	inputHeight  = 3
	toastTTL     = 4 * time.Second
	maxToasts    = 3
)

type (
	stateMsg   store.State
	statusMsg  auth.Status
	noticeMsg  service.Notice
	toastTick  time.Time
	draftClear struct{ text string }
	draftReset struct{ text string }

	submitDoneMsg struct{ err error }
	authDoneMsg   struct{ err error }
	actionDoneMsg struct{ err error }
)

type toast struct {
	notice  service.Notice
	expires time.Time
}

// uiDraft hands the composer to the chat service. Clear and Restore run on
// command goroutines, so they post messages instead of touching the textarea.
type uiDraft struct {
	text string
	b    *bridge
}

func (d *uiDraft) Text() string         { return d.text }
func (d *uiDraft) Clear()               { d.b.post(draftClear{text: d.text}) }
func (d *uiDraft) Restore(text string) { d.b.post(draftReset{text: text}) }

type model struct {
	ctx    context.Context
	deps   Deps
	bridge *bridge
	theme  Theme
	now    func() time.Time

	width  int
	height int

	status auth.Status
	state  store.State

	login    loginForm
	input    textarea.Model
	rename   textinput.Model
	renaming bool
	sending  bool
	toasts   []toast
}

func newModel(ctx context.Context, deps Deps, b *bridge) model {
	input := textarea.New()
	input.Placeholder = "Type your message... (shift+enter for a new line)"
	input.ShowLineNumbers = false
	input.CharLimit = models.MaxMessageLength
	input.SetHeight(inputHeight)
	input.KeyMap.InsertNewline.SetKeys("shift+enter", "alt+enter")

	rename := textinput.New()
	rename.Prompt = "Rename: "
	rename.CharLimit = 120

	return model{
		ctx:    ctx,
		deps:   deps,
		bridge: b,
		theme:  defaultTheme,
		now:    time.Now,
		login:  newLoginForm(deps.Email, deps.Password),
		input:  input,
		rename: rename,
		width:  100,
		height: 30,
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.login.focusCmd()}
	if m.deps.Email != "" && m.deps.Password != "" {
		cmds = append(cmds, m.authenticate(false, m.deps.Email, m.deps.Password))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case statusMsg:
		return m.setStatus(auth.Status(msg))

	case stateMsg:
		return m.setState(store.State(msg))

	case noticeMsg:
		m.toasts = append(m.toasts, toast{notice: service.Notice(msg), expires: m.now().Add(toastTTL)})
		if len(m.toasts) > maxToasts {
			m.toasts = m.toasts[len(m.toasts)-maxToasts:]
		}
		return m, m.tick()

	case toastTick:
		m.pruneToasts(time.Time(msg))
		if len(m.toasts) > 0 {
			return m, m.tick()
		}
		return m, nil

	case draftClear:
		if m.input.Value() == msg.text {
			m.input.Reset()
		}
		return m, nil

	case draftReset:
		m.input.SetValue(msg.text)
		return m, nil

	case submitDoneMsg:
		m.sending = false
		return m, nil

	case authDoneMsg:
		m.login.busy = false
		if msg.err != nil {
			m.login.err = authErrorText(msg.err)
		}
		return m, nil

	case actionDoneMsg:
		return m, nil
	}

	if m.status == auth.StatusAuthenticated {
		return m.updateChat(msg)
	}
	return m.updateLogin(msg)
}

func (m model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

// render draws the current screen.
func (m model) render() string {
	if m.status == auth.StatusAuthenticated {
		return m.chatView()
	}
	return m.loginView()
}

func (m *model) layout() {
	w := m.mainWidth() - 2
	if w < 10 {
		w = 10
	}
	m.input.SetWidth(w)
	m.rename.SetWidth(w - len(m.rename.Prompt))
}

func (m model) mainWidth() int {
	return max(m.width-sidebarWidth-1, 20)
}

func (m model) tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return toastTick(t) })
}

func (m *model) pruneToasts(now time.Time) {
	kept := m.toasts[:0]
	for _, t := range m.toasts {
		if now.Before(t.expires) {
			kept = append(kept, t)
		}
	}
	m.toasts = kept
}

// setStatus switches screens and starts or stops the live feed.
func (m model) setStatus(s auth.Status) (tea.Model, tea.Cmd) {
	prev := m.status
	m.status = s

	switch {
	case s == auth.StatusAuthenticated && prev != auth.StatusAuthenticated:
		m.login.reset()
		user := m.deps.Auth.User()
		if user == nil {
			return m, nil
		}
		feed, ctx, id := m.deps.Feed, m.ctx, user.ID
		focus := m.input.Focus()
		return m, tea.Batch(focus, func() tea.Msg {
			feed.WatchChats(ctx, id)
			return nil
		})

	case s == auth.StatusUnauthenticated && prev == auth.StatusAuthenticated:
		m.input.Blur()
		m.input.Reset()
		m.renaming = false
		m.sending = false
		feed := m.deps.Feed
		return m, tea.Batch(m.login.focusCmd(), func() tea.Msg {
			feed.Close()
			return nil
		})
	}
	return m, nil
}

// setState stores the snapshot and follows the active chat when it changes.
func (m model) setState(s store.State) (tea.Model, tea.Cmd) {
	prev := m.state.ActiveChat
	m.state = s
	if s.ActiveChat == prev || m.deps.Feed == nil {
		return m, nil
	}
	if m.renaming {
		m.renaming = false
		m.rename.Blur()
	}
	feed, ctx, id := m.deps.Feed, m.ctx, s.ActiveChat
	return m, func() tea.Msg {
		feed.Follow(ctx, id)
		return nil
	}
}

func (m model) updateChat(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, isKey := msg.(tea.KeyPressMsg)
	if m.renaming {
		return m.updateRename(msg)
	}
	if !isKey {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "up", "ctrl+k":
		m.moveSelection(-1)
		return m, nil
	case "down", "ctrl+j":
		m.moveSelection(1)
		return m, nil
	case "ctrl+n":
		chats, ctx := m.deps.Chats, m.ctx
		return m, func() tea.Msg {
			_, err := chats.NewChat(ctx)
			return actionDoneMsg{err}
		}
	case "ctrl+x":
		id := m.state.ActiveChat
		if id == "" {
			return m, nil
		}
		chats, ctx := m.deps.Chats, m.ctx
		return m, func() tea.Msg {
			return actionDoneMsg{chats.DeleteChat(ctx, id)}
		}
	case "ctrl+r":
		chat := m.state.ActiveChatInfo()
		if chat == nil {
			return m, nil
		}
		m.renaming = true
		m.rename.SetValue(chat.Title)
		m.rename.CursorEnd()
		m.input.Blur()
		return m, m.rename.Focus()
	case "ctrl+o":
		chats, feed, a, ctx := m.deps.Chats, m.deps.Feed, m.deps.Auth, m.ctx
		return m, func() tea.Msg {
			feed.Close()
			return actionDoneMsg{chats.SignOut(ctx, a)}
		}
	case "enter":
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit hands the composer text to the chat service. Validation, notices and
// draft restoration happen there.
func (m model) submit() (tea.Model, tea.Cmd) {
	if m.sending {
		return m, nil
	}
	text := m.input.Value()
	if m.state.ActiveChat == "" || models.ContentLength(text) == 0 {
		return m, nil
	}
	m.sending = true
	draft := &uiDraft{text: text, b: m.bridge}
	chats, ctx := m.deps.Chats, m.ctx
	return m, func() tea.Msg {
		return submitDoneMsg{chats.Submit(ctx, draft)}
	}
}

func (m model) updateRename(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyPressMsg); ok {
		switch key.String() {
		case "esc":
			m.renaming = false
			m.rename.Blur()
			return m, m.input.Focus()
		case "enter":
			id, title := m.state.ActiveChat, m.rename.Value()
			m.renaming = false
			m.rename.Blur()
			chats, ctx := m.deps.Chats, m.ctx
			return m, tea.Batch(m.input.Focus(), func() tea.Msg {
				err := chats.RenameChat(ctx, id, title)
				if errors.Is(err, service.ErrEmptyTitle) {
					err = nil
				}
				return actionDoneMsg{err}
			})
		}
	}
	var cmd tea.Cmd
	m.rename, cmd = m.rename.Update(msg)
	return m, cmd
}

// moveSelection selects the chat delta rows away from the active one.
func (m *model) moveSelection(delta int) {
	chats := m.state.Chats
	if len(chats) == 0 {
		return
	}
	idx := -1
	for i, c := range chats {
		if c.ID == m.state.ActiveChat {
			idx = i
			break
		}
	}
	switch {
	case idx == -1 && delta > 0:
		idx = 0
	case idx == -1:
		idx = len(chats) - 1
	default:
		idx = min(max(idx+delta, 0), len(chats)-1)
	}
	if chats[idx].ID != m.state.ActiveChat {
		m.deps.Chats.SelectChat(chats[idx].ID)
	}
}

func (m model) authenticate(signUp bool, email, password string) tea.Cmd {
	a, ctx := m.deps.Auth, m.ctx
	return func() tea.Msg {
		var err error
		if signUp {
			_, err = a.SignUp(ctx, email, password)
		} else {
			_, err = a.SignIn(ctx, email, password)
		}
		return authDoneMsg{err}
	}
}

func authErrorText(err error) string {
	var apiErr *auth.APIError
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		return auth.MissingCredentialsMessage
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid email or password"
	}
	return err.Error()
}
