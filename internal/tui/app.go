// Package tui is the interactive terminal client: a login screen and a chat screen
// with a chat list, the active conversation and a message composer.
//
// Network work runs in tea.Cmds or feed goroutines; results reach the model as
// messages. Store changes are forwarded by a pump that always delivers the current
// store state and never blocks the goroutine that mutated the store.
package tui

import (
	"context"
	"fmt"
	"log/slog"

	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/chatbot-go/internal/auth"
	"github.com/raphaelgruber/chatbot-go/internal/metrics"
	"github.com/raphaelgruber/chatbot-go/internal/models"
	"github.com/raphaelgruber/chatbot-go/internal/service"
	"github.com/raphaelgruber/chatbot-go/internal/store"
)

// Authenticator is the auth client as seen by the UI.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*models.User, error)
	SignUp(ctx context.Context, email, password string) (*models.User, error)
	SignOut(ctx context.Context) error
	Watch() (<-chan auth.Status, func())
	User() *models.User
}

// Deps wires the UI to the rest of the client.
type Deps struct {
	Auth    Authenticator
	Store   *store.Store
	Chats   *service.ChatService
	Feed    *service.Feed
	Notices *Notifier
	Metrics *metrics.Collector
	Logger  *slog.Logger

	// Prefill for the login form.
	Email    string
	Password string
}

// Notifier queues notices for the UI. Pass the same Notifier to the chat service
// and to Run. Notices beyond the queue size are dropped.
type Notifier struct {
	ch chan service.Notice
}

// NewNotifier creates an empty notice queue.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan service.Notice, 32)}
}

// Notify implements service.Notifier.
func (n *Notifier) Notify(notice service.Notice) {
	select {
	case n.ch <- notice:
	default:
	}
}

// bridge lets commands post messages back into the running program.
type bridge struct {
	send func(tea.Msg)
}

func (b *bridge) post(msg tea.Msg) {
	if b.send != nil {
		b.send(msg)
	}
}

// statePump forwards store changes to the program, coalescing bursts so the
// mutating goroutine never blocks on the UI. Observers only mark the pump dirty;
// the state is read from the store at delivery, so a snapshot that reached the
// observer late can never overwrite a newer one.
type statePump struct {
	store *store.Store
	dirty chan struct{}
}

func newStatePump(st *store.Store) *statePump {
	return &statePump{store: st, dirty: make(chan struct{}, 1)}
}

func (p *statePump) notify(store.State) {
	select {
	case p.dirty <- struct{}{}:
	default:
	}
}

func (p *statePump) run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.dirty:
			send(stateMsg(p.store.State()))
		}
	}
}

// Run starts the UI and blocks until the user quits.
func Run(ctx context.Context, deps Deps) error {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b := &bridge{}
	m := newModel(ctx, deps, b)
	p := tea.NewProgram(m, tea.WithContext(ctx))
	b.send = p.Send

	pump := newStatePump(deps.Store)
	stopObserving := deps.Store.Observe(pump.notify)
	defer stopObserving()
	go pump.run(ctx, p.Send)

	statuses, stopWatching := deps.Auth.Watch()
	defer stopWatching()
	go func() {
		for s := range statuses {
			select {
			case <-ctx.Done():
				return
			default:
				p.Send(statusMsg(s))
			}
		}
	}()

	if deps.Notices != nil {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case n := <-deps.Notices.ch:
					p.Send(noticeMsg(n))
				}
			}
		}()
	}

	_, err := p.Run()
	deps.Feed.Close()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
