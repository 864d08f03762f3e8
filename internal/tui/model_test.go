package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/raphaelgruber/chatbot-go/internal/auth"
	"github.com/raphaelgruber/chatbot-go/internal/client"
	"github.com/raphaelgruber/chatbot-go/internal/models"
	"github.com/raphaelgruber/chatbot-go/internal/service"
	"github.com/raphaelgruber/chatbot-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	user   *models.User
	signIn error
}

func (a *fakeAuth) SignIn(context.Context, string, string) (*models.User, error) {
	return a.user, a.signIn
}

func (a *fakeAuth) SignUp(context.Context, string, string) (*models.User, error) {
	return a.user, nil
}

func (a *fakeAuth) SignOut(context.Context) error { return nil }

func (a *fakeAuth) Watch() (<-chan auth.Status, func()) {
	ch := make(chan auth.Status)
	return ch, func() {}
}

func (a *fakeAuth) User() *models.User { return a.user }

func (a *fakeAuth) UserID() string {
	if a.user == nil {
		return ""
	}
	return a.user.ID
}

type echoData struct{}

func (echoData) InsertMessage(_ context.Context, in client.NewMessage) (*models.Message, error) {
	return &models.Message{ID: "m", ChatID: in.ChatID, Role: in.Role, Content: in.Content}, nil
}

func (echoData) SendMessage(_ context.Context, _, content string) (*models.SendMessageResult, error) {
	return &models.SendMessageResult{Content: &content, Success: true}, nil
}

func (echoData) CreateChat(_ context.Context, title, _ string) (*models.Chat, error) {
	return &models.Chat{ID: "new", Title: title}, nil
}

func (echoData) DeleteChat(context.Context, string) error { return nil }

func (echoData) UpdateChatTitle(_ context.Context, id, title string) (*models.Chat, error) {
	return &models.Chat{ID: id, Title: title}, nil
}

type posted struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (p *posted) send(msg tea.Msg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

func (p *posted) all() []tea.Msg {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tea.Msg(nil), p.msgs...)
}

type harness struct {
	m      model
	store  *store.Store
	auth   *fakeAuth
	posted *posted
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := store.New()
	a := &fakeAuth{user: &models.User{ID: "u1", Email: "ada@example.com"}}
	p := &posted{}
	deps := Deps{
		Auth:  a,
		Store: st,
		Chats: service.NewChatService(st, echoData{}, a, nil, nil),
		Feed:  service.NewFeed(st, nil, nil),
	}
	m := newModel(context.Background(), deps, &bridge{send: p.send})
	m.width, m.height = 120, 40
	m.layout()
	m.login.focusCmd()
	return &harness{m: m, store: st, auth: a, posted: p}
}

func (h *harness) update(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(model)
	return cmd
}

// sync delivers the current store state the way the pump does.
func (h *harness) sync() tea.Cmd {
	return h.update(stateMsg(h.store.State()))
}

func (h *harness) view() string {
	return ansi.Strip(h.m.render())
}

func key(s string) tea.KeyPressMsg {
	switch s {
	case "enter":
		return tea.KeyPressMsg{Code: tea.KeyEnter}
	case "tab":
		return tea.KeyPressMsg{Code: tea.KeyTab}
	case "down":
		return tea.KeyPressMsg{Code: tea.KeyDown}
	case "esc":
		return tea.KeyPressMsg{Code: tea.KeyEsc}
	}
	if len(s) == 6 && s[:5] == "ctrl+" {
		return tea.KeyPressMsg{Code: rune(s[5]), Mod: tea.ModCtrl}
	}
	return tea.KeyPressMsg{Code: rune(s[0]), Text: s}
}

func (h *harness) typeText(s string) {
	for _, r := range s {
		h.update(tea.KeyPressMsg{Code: r, Text: string(r)})
	}
}

func TestLoginScreenUntilAuthenticated(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.view(), "Welcome Back")

	h.update(statusMsg(auth.StatusLoading))
	assert.Contains(t, h.view(), "Signing in")

	h.update(statusMsg(auth.StatusAuthenticated))
	v := h.view()
	assert.Contains(t, v, "Welcome to AI Chat")
	assert.Contains(t, v, "Select a chat or create a new one to start chatting with AI")
	assert.Contains(t, v, "ada@example.com")

	h.update(statusMsg(auth.StatusUnauthenticated))
	assert.Contains(t, h.view(), "Welcome Back")
}

func TestLoginRequiresAllFields(t *testing.T) {
	h := newHarness(t)

	cmd := h.update(key("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, auth.MissingCredentialsMessage, h.m.login.err)
	assert.False(t, h.m.login.busy)

	n, ok := cmd().(noticeMsg)
	require.True(t, ok)
	assert.Equal(t, service.LevelError, n.Level)
	assert.Equal(t, auth.MissingCredentialsMessage, n.Text)
}

func TestLoginSubmitsCredentials(t *testing.T) {
	h := newHarness(t)
	h.typeText("ada@example.com")
	h.update(key("tab"))
	h.typeText("secret")

	cmd := h.update(key("enter"))
	require.NotNil(t, cmd)
	assert.True(t, h.m.login.busy)

	h.auth.signIn = errors.Join(auth.ErrInvalidCredentials, &auth.APIError{Status: 401, Message: "Incorrect email or password"})
	h.update(cmd())
	assert.False(t, h.m.login.busy)
	assert.Equal(t, "Incorrect email or password", h.m.login.err)
	assert.Contains(t, h.view(), "Incorrect email or password")
}

func TestLoginToggleSignUp(t *testing.T) {
	h := newHarness(t)
	h.update(key("ctrl+t"))
	assert.True(t, h.m.login.signUp)
	assert.Contains(t, h.view(), "Create Account")

	h.update(key("ctrl+t"))
	assert.Contains(t, h.view(), "Welcome Back")
}

func TestAuthErrorText(t *testing.T) {
	assert.Equal(t, auth.MissingCredentialsMessage, authErrorText(auth.ErrMissingCredentials))
	assert.Equal(t, "Invalid email or password", authErrorText(auth.ErrInvalidCredentials))
	assert.Equal(t, "boom", authErrorText(errors.New("boom")))
}

func TestSelectionMovesThroughChats(t *testing.T) {
	h := newHarness(t)
	h.update(statusMsg(auth.StatusAuthenticated))
	h.store.SetChats([]models.Chat{{ID: "a", Title: "Alpha"}, {ID: "b", Title: "Beta"}})
	h.sync()

	h.update(key("down"))
	assert.Equal(t, "a", h.store.ActiveChat())
	cmd := h.sync()
	assert.NotNil(t, cmd, "a new active chat is followed")

	h.update(key("ctrl+j"))
	assert.Equal(t, "b", h.store.ActiveChat())
	h.sync()

	h.update(key("ctrl+j"))
	assert.Equal(t, "b", h.store.ActiveChat())
	assert.Nil(t, h.sync(), "unchanged active chat is not followed again")

	h.update(key("ctrl+k"))
	assert.Equal(t, "a", h.store.ActiveChat())
}

func TestConversationView(t *testing.T) {
	h := newHarness(t)
	h.update(statusMsg(auth.StatusAuthenticated))
	now := time.Now()
	h.store.SetChats([]models.Chat{{ID: "a", Title: "Trip plans", UpdatedAt: now}})
	h.store.SetActiveChat("a")
	h.sync()
	assert.Contains(t, h.view(), "Start a conversation with the AI assistant")

	h.store.SetMessages([]models.Message{
		{ID: "1", Role: models.RoleUser, Content: "where to?", CreatedAt: now},
		{ID: "2", Role: models.RoleAssistant, Content: "Try **Lisbon**", CreatedAt: now},
	})
	h.store.SetTyping(true)
	h.sync()

	v := h.view()
	assert.Contains(t, v, "Trip plans")
	assert.Contains(t, v, "where to?")
	assert.Contains(t, v, "Try Lisbon")
	assert.Contains(t, v, "AI is typing")
	assert.Contains(t, v, "0/2000")
	assert.NotContains(t, v, "Start a conversation")
}

func TestSubmitClearsDraftThroughBridge(t *testing.T) {
	h := newHarness(t)
	h.update(statusMsg(auth.StatusAuthenticated))

	h.typeText("hello")
	assert.Nil(t, h.update(key("enter")), "no active chat")

	h.store.SetActiveChat("a")
	h.sync()
	cmd := h.update(key("enter"))
	require.NotNil(t, cmd)
	assert.True(t, h.m.sending)

	done, ok := cmd().(submitDoneMsg)
	require.True(t, ok)
	assert.NoError(t, done.err)
	assert.Contains(t, h.posted.all(), tea.Msg(draftClear{text: "hello"}))

	h.update(draftClear{text: "hello"})
	h.update(done)
	assert.Equal(t, "", h.m.input.Value())
	assert.False(t, h.m.sending)

	assert.False(t, h.store.Typing())
}

func TestDraftMessages(t *testing.T) {
	h := newHarness(t)
	h.update(statusMsg(auth.StatusAuthenticated))

	h.update(draftReset{text: "restored"})
	assert.Equal(t, "restored", h.m.input.Value())

	h.update(draftClear{text: "something else"})
	assert.Equal(t, "restored", h.m.input.Value(), "edited drafts are kept")

	h.update(draftClear{text: "restored"})
	assert.Equal(t, "", h.m.input.Value())
}

func TestToastsExpire(t *testing.T) {
	h := newHarness(t)
	base := time.Now()
	h.m.now = func() time.Time { return base }

	cmd := h.update(noticeMsg(service.Notice{Level: service.LevelInfo, Title: "Success", Text: "Chat deleted successfully"}))
	assert.NotNil(t, cmd)
	assert.Contains(t, h.view(), "Success: Chat deleted successfully")

	assert.NotNil(t, h.update(toastTick(base.Add(time.Second))))
	assert.Len(t, h.m.toasts, 1)

	assert.Nil(t, h.update(toastTick(base.Add(toastTTL))))
	assert.Empty(t, h.m.toasts)
}

func TestToastsAreCapped(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < maxToasts+2; i++ {
		h.update(noticeMsg(service.Notice{Text: "n"}))
	}
	assert.Len(t, h.m.toasts, maxToasts)
}

func TestRenameFlow(t *testing.T) {
	h := newHarness(t)
	h.update(statusMsg(auth.StatusAuthenticated))
	h.store.SetChats([]models.Chat{{ID: "a", Title: "Old"}})
	h.store.SetActiveChat("a")
	h.sync()

	h.update(key("ctrl+r"))
	require.True(t, h.m.renaming)
	assert.Equal(t, "Old", h.m.rename.Value())

	h.update(key("esc"))
	assert.False(t, h.m.renaming)

	h.update(key("ctrl+r"))
	h.typeText("er")
	cmd := h.update(key("enter"))
	require.NotNil(t, cmd)
	assert.False(t, h.m.renaming)
}

func TestCtrlCQuits(t *testing.T) {
	h := newHarness(t)
	cmd := h.update(key("ctrl+c"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
