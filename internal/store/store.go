// Package store holds the chat session state shown by the UI.
//
// The store is a passive container: every mutator replaces or appends and never fails. Snapshots
// arriving from the backend replace the local lists wholesale, so ordering and de-duplication are
// whatever the data layer delivered. Writers race on arrival order; the last write wins.
package store

import (
	"slices"
	"sync"

	"github.com/raphaelgruber/chatbot-go/internal/models"
)

// State is a point-in-time copy of the session.
type State struct {
	ActiveChat string // empty when no conversation is selected
	Chats      []models.Chat
	Messages   []models.Message
	Loading    bool
	Error      string
	Typing     bool
}

// Store is the single source of truth for what is currently displayed.
// It is safe for concurrent use; observers run on the mutating goroutine.
type Store struct {
	mu        sync.RWMutex
	state     State
	observers map[int]func(State)
	nextID    int
}

// New creates an empty store.
func New() *Store {
	return &Store{observers: make(map[int]func(State))}
}

// Observe registers fn to be called with the new state after every mutation.
// The returned function unregisters it.
func (s *Store) Observe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// update applies fn under the write lock and notifies observers outside it.
func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.copyLocked()
	observers := make([]func(State), 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o(snapshot)
	}
}

// SetActiveChat selects the conversation whose messages are shown. Nothing else changes.
func (s *Store) SetActiveChat(id string) {
	s.update(func(st *State) { st.ActiveChat = id })
}

// SetChats replaces the conversation list.
func (s *Store) SetChats(chats []models.Chat) {
	s.update(func(st *State) { st.Chats = slices.Clone(chats) })
}

// SetMessages replaces the message list.
func (s *Store) SetMessages(messages []models.Message) {
	s.update(func(st *State) { st.Messages = slices.Clone(messages) })
}

// AddMessage appends msg to the message list. It does not check that msg belongs to the
// active conversation.
func (s *Store) AddMessage(msg models.Message) {
	s.update(func(st *State) {
		st.Messages = append(slices.Clip(st.Messages), msg)
	})
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.update(func(st *State) { st.Loading = loading })
}

// SetError records the last error message; empty clears it.
func (s *Store) SetError(msg string) {
	s.update(func(st *State) { st.Error = msg })
}

// SetTyping sets the assistant typing indicator.
func (s *Store) SetTyping(typing bool) {
	s.update(func(st *State) { st.Typing = typing })
}

// Clear resets the active conversation, messages, error and typing flag.
// The chat list and loading flag are left alone.
func (s *Store) Clear() {
	s.update(func(st *State) {
		st.ActiveChat = ""
		st.Messages = nil
		st.Error = ""
		st.Typing = false
	})
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() State {
	st := s.state
	st.Chats = slices.Clone(s.state.Chats)
	st.Messages = slices.Clone(s.state.Messages)
	return st
}

// ActiveChat returns the selected conversation id, or "" when none is selected.
func (s *Store) ActiveChat() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ActiveChat
}

// Chats returns a copy of the conversation list.
func (s *Store) Chats() []models.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Chats)
}

// Messages returns a copy of the message list.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Messages)
}

// Typing reports whether the typing indicator is on.
func (s *Store) Typing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Typing
}

// Loading reports the loading flag.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Loading
}

// Error returns the last recorded error message.
func (s *Store) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Error
}

// ActiveChatInfo looks up the active conversation in the chat list.
func (st State) ActiveChatInfo() *models.Chat {
	if st.ActiveChat == "" {
		return nil
	}
	for i := range st.Chats {
		if st.Chats[i].ID == st.ActiveChat {
			return &st.Chats[i]
		}
	}
	return nil
}
