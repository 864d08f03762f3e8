package tui

import (
	"context"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/chatbot-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatePumpDeliversCurrentState(t *testing.T) {
	st := store.New()
	st.SetTyping(true)
	stale := st.State()

	p := newStatePump(st)
	// the typing snapshot reaches the observer after typing was already switched off
	st.SetTyping(false)
	p.notify(stale)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan tea.Msg, 4)
	go p.run(ctx, func(msg tea.Msg) { got <- msg })

	select {
	case msg := <-got:
		s, ok := msg.(stateMsg)
		require.True(t, ok)
		assert.False(t, store.State(s).Typing)
	case <-time.After(time.Second):
		t.Fatal("no state delivered")
	}
}

func TestStatePumpCoalesces(t *testing.T) {
	st := store.New()
	p := newStatePump(st)
	stop := st.Observe(p.notify)
	defer stop()

	for _, id := range []string{"c1", "c2", "c3"} {
		st.SetActiveChat(id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan tea.Msg, 4)
	go p.run(ctx, func(msg tea.Msg) { got <- msg })

	msg := <-got
	assert.Equal(t, "c3", store.State(msg.(stateMsg)).ActiveChat)

	select {
	case extra := <-got:
		t.Fatalf("unexpected extra delivery: %v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}
