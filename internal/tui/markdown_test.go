package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
)

func plain(src string, width int) string {
	return ansi.Strip(renderMarkdown(src, defaultTheme, width))
}

func TestRenderMarkdown(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"heading and emphasis", "# Title\n\nSome **bold** and *italic* text", "Some bold and italic text"},
		{"bullet list", "- one\n- two", "• one\n• two"},
		{"ordered list", "1. first\n2. second", "1. first\n2. second"},
		{"code block", "```go\nfmt.Println(\"hi\")\n```", "  fmt.Println(\"hi\")"},
		{"inline code", "run `go test` now", "run go test now"},
		{"link", "see [docs](https://example.com)", "see docs (https://example.com)"},
		{"blockquote", "> quoted", "│ quoted"},
		{"strikethrough", "~~gone~~ kept", "gone kept"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, plain(tt.src, 80), tt.want)
		})
	}
}

func TestRenderMarkdownHeadingOnOwnLine(t *testing.T) {
	got := plain("# Title\n\nbody", 80)
	lines := strings.Split(got, "\n")
	assert.Equal(t, "Title", lines[0])
	assert.Equal(t, "body", lines[len(lines)-1])
}

func TestRenderMarkdownWraps(t *testing.T) {
	src := strings.Repeat("lorem ipsum dolor ", 10)
	for _, line := range strings.Split(plain(src, 24), "\n") {
		assert.LessOrEqual(t, ansi.StringWidth(line), 24, line)
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	assert.Equal(t, "", renderMarkdown("  \n", defaultTheme, 40))
}

func TestRenderMarkdownSkipsHTML(t *testing.T) {
	got := plain("<div>raw</div>\n\ntext", 40)
	assert.NotContains(t, got, "<div>")
	assert.Contains(t, got, "text")
}
