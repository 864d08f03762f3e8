package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/raphaelgruber/chatbot-go/internal/models"
)

// relativeTime formats a chat timestamp the way the sidebar shows it.
func relativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d min ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	default:
		return t.Local().Format("1/2/2006")
	}
}

// messageTime formats a message timestamp as a 12-hour clock time without seconds.
func messageTime(t time.Time) string {
	return t.Local().Format("3:04 PM")
}

// charCounter renders "n/2000"; nearFull reports whether more than 90% is used.
func charCounter(text string) (label string, nearFull bool) {
	n := models.ContentLength(text)
	return fmt.Sprintf("%d/%d", n, models.MaxMessageLength), n*10 > models.MaxMessageLength*9
}

// oneLine collapses whitespace and cuts s to width cells.
func oneLine(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, "…")
}
