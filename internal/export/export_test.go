package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/starford/ariadna/internal/thread"
)

func sample() *thread.Thread {
	th := thread.New("LRU cache walk")
	th.RootPath = "/src"
	rev := "0a1b2c"
	th.VCSRev = &rev

	entry := th.CreateNode(nil)
	entry.Caption = "entry"
	entry.SrcLink = &thread.SrcLink{Path: "cache.go", LineNum: 12, LineContent: "func Get() {"}
	entry.Comments = []string{"hot path", "takes the <lock>"}
	entry.VisualMarks = []thread.VisualMark{{Char: "⚠️", Name: "attention"}}
	th.AppendChild(nil, entry)

	child := th.CreateNode(nil)
	child.Caption = "miss"
	th.AppendChild(entry, child)
	return th
}

func TestMarkdown(t *testing.T) {
	out, err := Markdown(sample())
	require.NoError(t, err)
	s := string(out)

	require.True(t, strings.HasPrefix(s, "---\n"))
	parts := strings.SplitN(s, "---\n", 3)
	require.Len(t, parts, 3)

	var fm frontMatter
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &fm))
	assert.Equal(t, "LRU cache walk", fm.Title)
	assert.Equal(t, "/src", fm.RootPath)
	require.NotNil(t, fm.VCSRev)
	assert.Equal(t, "0a1b2c", *fm.VCSRev)
	assert.Nil(t, fm.Description)
	assert.Equal(t, 2, fm.Nodes)

	assert.Contains(t, s, "# LRU cache walk\n")
	assert.Contains(t, s, "- ⚠️ **entry** `cache.go:12`\n")
	assert.Contains(t, s, "  - hot path\n")
	assert.Contains(t, s, "  - **miss**\n")
}

func TestMarkdownEmptyThread(t *testing.T) {
	out, err := Markdown(thread.New("empty"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "_No nodes._")
}

func TestHTML(t *testing.T) {
	th := sample()
	th.Title = "walk <one>"
	out, err := HTML(th)
	require.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, "<title>walk &lt;one&gt;</title>")
	assert.Contains(t, s, "<strong>entry</strong>")
	assert.Contains(t, s, "<code>cache.go:12</code>")
	assert.NotContains(t, s, "<lock>", "raw HTML in comments is not passed through")
}

func TestTerminalPlain(t *testing.T) {
	out, err := Terminal(sample(), 60, false)
	require.NoError(t, err)
	assert.Contains(t, out, "entry")
	assert.Contains(t, out, "hot path")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "lru-cache-walk.md", Filename(sample(), ".md"))
	assert.Equal(t, "thread.html", Filename(thread.New("!!!"), ".html"))
}

func TestCodeSpan(t *testing.T) {
	assert.Equal(t, "`a.go:3`", code("a.go:3"))
	assert.Equal(t, "`` a`b ``", code("a`b"))
}
