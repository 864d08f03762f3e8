package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/raphaelgruber/chatbot-go/internal/models"
	"github.com/raphaelgruber/chatbot-go/internal/store"
)

// FeedSource is the subset of the GraphQL client the feed reads from.
type FeedSource interface {
	ListChats(ctx context.Context, userID string) ([]models.Chat, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
	SubscribeChats(ctx context.Context, userID string, onSnapshot func([]models.Chat)) error
	SubscribeMessages(ctx context.Context, chatID string, onSnapshot func([]models.Message)) error
}

// Feed keeps the store in sync with the backend: an initial fetch plus a live
// subscription for the chat list, and the same pair for the followed chat's messages.
// Snapshots replace the store's lists wholesale. Subscriptions are not restarted
// when they fail; the error is stored instead.
type Feed struct {
	store  *store.Store
	source FeedSource
	logger *slog.Logger

	mu          sync.Mutex
	chatsCancel context.CancelFunc
	msgsCancel  context.CancelFunc
	following   string

	// life is cancelled by Close; one-shot fetches stop with it
	life context.Context
	stop context.CancelFunc
	subs sync.WaitGroup
}

// NewFeed creates a feed writing into st.
func NewFeed(st *store.Store, source FeedSource, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	life, stop := context.WithCancel(context.Background())
	return &Feed{store: st, source: source, logger: logger, life: life, stop: stop}
}

// fetchContext derives a fetch context from ctx that Close also cancels. Callers hold f.mu.
func (f *Feed) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	unlink := context.AfterFunc(f.life, cancel)
	return ctx, func() {
		unlink()
		cancel()
	}
}

// WatchChats loads the user's chats and subscribes to changes. A previous watch is stopped.
// Once a subscription snapshot has arrived, the result of the initial fetch is ignored.
func (f *Feed) WatchChats(ctx context.Context, userID string) {
	f.mu.Lock()
	if f.chatsCancel != nil {
		f.chatsCancel()
	}
	fetchCtx, fetchDone := f.fetchContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	f.chatsCancel = cancel
	f.subs.Add(1)
	f.mu.Unlock()

	var live atomic.Bool

	go func() {
		defer f.subs.Done()
		defer fetchDone()
		f.store.SetLoading(true)
		chats, err := f.source.ListChats(fetchCtx, userID)
		f.store.SetLoading(false)
		if err != nil {
			f.fetchFailed(fetchCtx, "list chats", err)
			return
		}
		if !live.Load() && fetchCtx.Err() == nil {
			f.store.SetChats(chats)
		}
	}()

	f.subs.Add(1)
	go func() {
		defer f.subs.Done()
		err := f.source.SubscribeChats(ctx, userID, func(chats []models.Chat) {
			live.Store(true)
			f.store.SetChats(chats)
		})
		f.subscriptionEnded(ctx, "chats", err)
	}()
}

// Follow switches the message feed to chatID: it fetches the messages once and restarts the
// message subscription with the new chat. The fetch is not cancelled by a later Follow, so a
// slow response for a previous chat can still land; the last write wins. An empty chatID
// only stops the subscription.
//
// Calls for a chat that is no longer the store's active chat are dropped, so concurrent
// calls settle on the active chat whatever order they run in.
func (f *Feed) Follow(ctx context.Context, chatID string) {
	f.mu.Lock()
	if chatID != f.store.ActiveChat() {
		f.mu.Unlock()
		f.logger.Debug("stale follow dropped", "chat_id", chatID)
		return
	}
	if f.msgsCancel != nil {
		f.msgsCancel()
		f.msgsCancel = nil
	}
	f.following = chatID
	if chatID == "" {
		f.mu.Unlock()
		return
	}
	subCtx, cancel := context.WithCancel(ctx)
	f.msgsCancel = cancel
	fetchCtx, fetchDone := f.fetchContext(ctx)
	f.subs.Add(2)
	f.mu.Unlock()

	go func() {
		defer f.subs.Done()
		defer fetchDone()
		f.store.SetLoading(true)
		msgs, err := f.source.ListMessages(fetchCtx, chatID)
		f.store.SetLoading(false)
		if err != nil {
			f.fetchFailed(fetchCtx, "list messages", err)
			return
		}
		if fetchCtx.Err() == nil {
			f.store.SetMessages(msgs)
		}
	}()

	go func() {
		defer f.subs.Done()
		err := f.source.SubscribeMessages(subCtx, chatID, f.store.SetMessages)
		f.subscriptionEnded(subCtx, "messages", err)
	}()
}

// Following returns the chat whose messages are currently followed.
func (f *Feed) Following() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.following
}

// Close stops all subscriptions and pending fetches and waits for them to end.
// The feed can be used again afterwards.
func (f *Feed) Close() {
	f.mu.Lock()
	f.stop()
	f.life, f.stop = context.WithCancel(context.Background())
	if f.chatsCancel != nil {
		f.chatsCancel()
		f.chatsCancel = nil
	}
	if f.msgsCancel != nil {
		f.msgsCancel()
		f.msgsCancel = nil
	}
	f.following = ""
	f.mu.Unlock()

	f.subs.Wait()
}

func (f *Feed) fetchFailed(ctx context.Context, op string, err error) {
	if ctx.Err() != nil {
		return
	}
	f.logger.Error("fetch failed", "operation", op, "error", err)
	f.store.SetError(errorText(err, msgLoadFailed))
}

func (f *Feed) subscriptionEnded(ctx context.Context, name string, err error) {
	switch {
	case err == nil:
		f.logger.Debug("subscription completed", "subscription", name)
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		f.logger.Debug("subscription stopped", "subscription", name)
	default:
		f.logger.Error("subscription failed", "subscription", name, "error", err)
		f.store.SetError(errorText(err, msgLiveFailed))
	}
}
