// Package export renders a thread for reading outside the application:
// Markdown with YAML front matter, standalone HTML and styled terminal text.
package export

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/gosimple/slug"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/starford/ariadna/internal/thread"
)

// DefaultWidth is the terminal wrap width used when none is known.
const DefaultWidth = 80

type frontMatter struct {
	Title       string  `yaml:"title"`
	RootPath    string  `yaml:"root_path"`
	VCSRev      *string `yaml:"vcs_rev,omitempty"`
	Description *string `yaml:"description,omitempty"`
	Nodes       int     `yaml:"nodes"`
}

// Markdown renders t as a Markdown document with YAML front matter.
func Markdown(t *thread.Thread) ([]byte, error) {
	fm, err := yaml.Marshal(frontMatter{
		Title:       t.Title,
		RootPath:    t.RootPath,
		VCSRev:      t.VCSRev,
		Description: t.Description,
		Nodes:       t.Count(),
	})
	if err != nil {
		return nil, fmt.Errorf("export: front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	buf.WriteString(body(t))
	return buf.Bytes(), nil
}

// HTML renders t as a standalone HTML page.
func HTML(t *thread.Thread) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var content bytes.Buffer
	if err := md.Convert([]byte(body(t)), &content); err != nil {
		return nil, fmt.Errorf("export: html: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&buf, "<title>%s</title>\n", html.EscapeString(t.Title))
	buf.WriteString("</head>\n<body>\n")
	buf.Write(content.Bytes())
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}

// Terminal renders t for a terminal of the given width. styled picks a
// color style matching the terminal background; otherwise the notty style is
// used.
func Terminal(t *thread.Thread, width int, styled bool) (string, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	style := glamour.WithStandardStyle("notty")
	if styled {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("export: terminal: %w", err)
	}
	out, err := r.Render(body(t))
	if err != nil {
		return "", fmt.Errorf("export: terminal: %w", err)
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}

// Filename derives a file name from the thread title, "thread" when the
// title has nothing to slug. ext includes the dot.
func Filename(t *thread.Thread, ext string) string {
	name := slug.Make(t.Title)
	if name == "" {
		name = "thread"
	}
	return name + ext
}

// body is the Markdown outline shared by every format.
func body(t *thread.Thread) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t.Title)
	if t.Description != nil && *t.Description != "" {
		b.WriteString(*t.Description)
		b.WriteString("\n\n")
	}
	if len(t.Children) == 0 {
		b.WriteString("_No nodes._\n")
		return b.String()
	}
	t.Walk(func(n *thread.Node, depth int) bool {
		indent := strings.Repeat("  ", depth)
		b.WriteString(indent)
		b.WriteString("- ")
		b.WriteString(nodeLine(n))
		b.WriteString("\n")
		for _, c := range n.Comments {
			b.WriteString(indent)
			b.WriteString("  - ")
			b.WriteString(strings.ReplaceAll(c, "\n", " "))
			b.WriteString("\n")
		}
		return true
	})
	return b.String()
}

func nodeLine(n *thread.Node) string {
	var parts []string
	for _, m := range n.VisualMarks {
		parts = append(parts, m.Char)
	}
	caption := n.Caption
	if caption == "" {
		caption = "(untitled)"
	}
	parts = append(parts, "**"+caption+"**")
	if n.SrcLink != nil && n.SrcLink.Path != "" {
		ref := n.SrcLink.Path
		if n.SrcLink.LineNum > 0 {
			ref += ":" + strconv.Itoa(n.SrcLink.LineNum)
		}
		parts = append(parts, code(ref))
	}
	return strings.Join(parts, " ")
}

// code wraps s in a code span using a fence longer than any backtick run
// inside it.
func code(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	fence := strings.Repeat("`", longest+1)
	if longest > 0 {
		return fence + " " + s + " " + fence
	}
	return fence + s + fence
}
