package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"seconds", now.Add(-30 * time.Second), "Just now"},
		{"minutes", now.Add(-5 * time.Minute), "5 min ago"},
		{"hours", now.Add(-3 * time.Hour), "3 hours ago"},
		{"older", time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local), "3/1/2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relativeTime(tt.at, now))
		})
	}
}

func TestMessageTime(t *testing.T) {
	at := time.Date(2024, 3, 10, 15, 4, 5, 0, time.Local)
	assert.Equal(t, "3:04 PM", messageTime(at))
}

func TestCharCounter(t *testing.T) {
	label, near := charCounter("héllo")
	assert.Equal(t, "5/2000", label)
	assert.False(t, near)

	label, near = charCounter(strings.Repeat("a", 1801))
	assert.Equal(t, "1801/2000", label)
	assert.True(t, near)

	_, near = charCounter(strings.Repeat("a", 1800))
	assert.False(t, near)
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\n b\t\tc ", 20))
	assert.Equal(t, "", oneLine("anything", 0))

	got := oneLine("a rather long chat title", 10)
	assert.Equal(t, 10, ansi.StringWidth(got))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestTailAndIndent(t *testing.T) {
	assert.Equal(t, "c\nd", tail("a\nb\nc\nd", 2))
	assert.Equal(t, "a", tail("a", 5))
	assert.Equal(t, "  a\n\n  b", indent("a\n\nb", "  "))
}
