package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// markdown is shared; parsing keeps its state per call.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// renderMarkdown renders assistant replies as styled terminal text wrapped to width.
// Soft line breaks become spaces; code blocks keep their lines.
func renderMarkdown(src string, theme Theme, width int) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	r := &mdRenderer{source: source, theme: theme, width: width}
	_ = ast.Walk(doc, r.walk)
	return strings.TrimRight(r.out.String(), "\n")
}

type mdList struct {
	ordered bool
	next    int
	indent  int // width of the current item's marker
}

type mdRenderer struct {
	source []byte
	theme  Theme
	width  int

	out    strings.Builder
	inline strings.Builder

	prefix string // blockquote / list indentation
	bullet string // replaces prefix on the next line only
	lists  []mdList
	bold   int
	italic int
	strike int
}

func (r *mdRenderer) contentWidth() int {
	w := r.width - ansi.StringWidth(r.prefix)
	if w < 10 {
		w = 10
	}
	return w
}

func (r *mdRenderer) blankLine() {
	s := r.out.String()
	if s == "" || strings.HasSuffix(s, "\n\n") {
		return
	}
	if strings.HasSuffix(s, "\n") {
		r.out.WriteString("\n")
		return
	}
	r.out.WriteString("\n\n")
}

// emit writes block content line by line with the current prefix.
func (r *mdRenderer) emit(content string) {
	for i, line := range strings.Split(content, "\n") {
		if i == 0 && r.bullet != "" {
			r.out.WriteString(r.bullet)
			r.bullet = ""
		} else {
			r.out.WriteString(r.prefix)
		}
		r.out.WriteString(line)
		r.out.WriteString("\n")
	}
}

func (r *mdRenderer) flush() {
	content := r.inline.String()
	r.inline.Reset()
	if content == "" {
		return
	}
	r.emit(ansi.Wrap(content, r.contentWidth(), " ,.;-"))
}

func (r *mdRenderer) styled(s string) string {
	st := r.theme.textStyle()
	if r.bold > 0 {
		st = st.Bold(true)
	}
	if r.italic > 0 {
		st = st.Italic(true)
	}
	if r.strike > 0 {
		st = st.Strikethrough(true)
	}
	return st.Render(s)
}

func (r *mdRenderer) tight() bool {
	return len(r.lists) > 0
}

func (r *mdRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		if !entering {
			r.flush()
			if !r.tight() {
				r.blankLine()
			}
		}

	case *ast.Heading:
		if entering {
			r.inline.Reset()
			return ast.WalkContinue, nil
		}
		content := ansi.Strip(r.inline.String())
		r.inline.Reset()
		r.blankLine()
		r.emit(r.theme.accentStyle().Render(content))
		r.blankLine()

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			r.codeBlock(node)
		}
		return ast.WalkSkipChildren, nil

	case *ast.Blockquote:
		if entering {
			r.prefix += "│ "
		} else {
			r.prefix = strings.TrimSuffix(r.prefix, "│ ")
			r.blankLine()
		}

	case *ast.List:
		if entering {
			r.lists = append(r.lists, mdList{ordered: n.IsOrdered(), next: n.Start})
		} else {
			r.lists = r.lists[:len(r.lists)-1]
			if len(r.lists) == 0 {
				r.blankLine()
			}
		}

	case *ast.ListItem:
		top := &r.lists[len(r.lists)-1]
		if entering {
			marker := "• "
			if top.ordered {
				marker = fmt.Sprintf("%d. ", top.next)
				top.next++
			}
			top.indent = ansi.StringWidth(marker)
			r.bullet = r.prefix + r.theme.dimStyle().Render(marker)
			r.prefix += strings.Repeat(" ", top.indent)
		} else {
			r.prefix = r.prefix[:len(r.prefix)-top.indent]
		}

	case *ast.ThematicBreak:
		if entering {
			r.blankLine()
			r.emit(r.theme.dimStyle().Render(strings.Repeat("─", r.contentWidth())))
			r.blankLine()
		}

	case *ast.Text:
		if entering {
			r.inline.WriteString(r.styled(string(n.Segment.Value(r.source))))
			if n.SoftLineBreak() {
				r.inline.WriteString(" ")
			}
			if n.HardLineBreak() {
				r.inline.WriteString("\n")
			}
		}

	case *ast.String:
		if entering {
			r.inline.WriteString(r.styled(string(n.Value)))
		}

	case *ast.Emphasis:
		counter := &r.italic
		if n.Level >= 2 {
			counter = &r.bold
		}
		if entering {
			*counter++
		} else {
			*counter--
		}

	case *extast.Strikethrough:
		if entering {
			r.strike++
		} else {
			r.strike--
		}

	case *ast.CodeSpan:
		if entering {
			var code strings.Builder
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					code.Write(t.Segment.Value(r.source))
				}
			}
			r.inline.WriteString(r.theme.style().Foreground(r.theme.CodeText).Render(code.String()))
		}
		return ast.WalkSkipChildren, nil

	case *ast.Link:
		if entering {
			return ast.WalkContinue, nil
		}
		r.inline.WriteString(r.theme.dimStyle().Render(" (" + string(n.Destination) + ")"))

	case *ast.AutoLink:
		if entering {
			r.inline.WriteString(r.theme.style().Foreground(r.theme.Highlight).Underline(true).Render(string(n.URL(r.source))))
		}

	case *ast.RawHTML, *ast.HTMLBlock:
		return ast.WalkSkipChildren, nil
	}

	return ast.WalkContinue, nil
}

func (r *mdRenderer) codeBlock(node ast.Node) {
	var code strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(r.source))
	}

	r.blankLine()
	st := r.theme.style().Foreground(r.theme.CodeText)
	body := strings.TrimRight(code.String(), "\n")
	for _, line := range strings.Split(body, "\n") {
		r.out.WriteString(r.prefix + "  " + st.Render(line) + "\n")
	}
	r.blankLine()
}
