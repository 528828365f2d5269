// Package drift compares the line snapshots stored in a thread with the
// source files they point at.
package drift

import (
	"bytes"
	"os"
	"strings"

	"github.com/starford/ariadna/internal/thread"
)

// Status classifies one link.
type Status string

const (
	// StatusOK means the recorded line still holds the snapshot.
	StatusOK Status = "ok"
	// StatusMoved means the snapshot now sits on another line.
	StatusMoved Status = "moved"
	// StatusChanged means the line exists but its text differs and the
	// snapshot is nowhere else in the file.
	StatusChanged Status = "changed"
	// StatusMissing means the file or the line is gone.
	StatusMissing Status = "missing"
)

// Report describes the state of one node's link.
type Report struct {
	NodeID int    `json:"node_id"`
	Path   string `json:"path"`
	// Line is the recorded 1-based line.
	Line     int    `json:"line"`
	Status   Status `json:"status"`
	Expected string `json:"expected"`
	Actual   string `json:"actual,omitempty"`
	// SuggestedLine is the nearest line holding the snapshot, for StatusMoved.
	SuggestedLine int `json:"suggested_line,omitempty"`
}

// Checker reads source files through ReadFile, os.ReadFile when nil.
type Checker struct {
	ReadFile func(name string) ([]byte, error)
}

// Check inspects every node with a line link, in tree order.
func Check(t *thread.Thread) []Report {
	return Checker{}.Check(t)
}

// Check inspects every node with a line link, in tree order. Each file is
// read once.
func (c Checker) Check(t *thread.Thread) []Report {
	read := c.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	files := make(map[string][]string)

	reports := []Report{}
	t.Walk(func(n *thread.Node, _ int) bool {
		if n.SrcLink == nil || n.SrcLink.LineNum <= 0 {
			return true
		}
		loc := thread.Resolve(n.SrcLink, t.RootPath)
		lines, ok := files[loc.Path]
		if !ok {
			data, err := read(loc.Path)
			if err == nil {
				lines = splitLines(data)
			}
			files[loc.Path] = lines
		}
		r := Report{
			NodeID:   n.ID,
			Path:     loc.Path,
			Line:     n.SrcLink.LineNum,
			Expected: n.SrcLink.LineContent,
		}
		classify(&r, lines)
		reports = append(reports, r)
		return true
	})
	return reports
}

// Drifted returns the reports whose status is not ok.
func Drifted(reports []Report) []Report {
	var out []Report
	for _, r := range reports {
		if r.Status != StatusOK {
			out = append(out, r)
		}
	}
	return out
}

func classify(r *Report, lines []string) {
	idx := r.Line - 1
	want := strings.TrimSpace(r.Expected)

	if idx < len(lines) {
		r.Actual = lines[idx]
		if want == "" || strings.TrimSpace(lines[idx]) == want {
			r.Status = StatusOK
			return
		}
	}
	if want != "" {
		if found := nearest(lines, idx, want); found >= 0 {
			r.Status = StatusMoved
			r.SuggestedLine = found + 1
			return
		}
	}
	if idx < len(lines) {
		r.Status = StatusChanged
		return
	}
	r.Status = StatusMissing
}

// nearest returns the index of the line closest to from whose trimmed text
// equals want, or -1. Ties go to the earlier line. from may lie past the end
// of lines.
func nearest(lines []string, from int, want string) int {
	best, bestDist := -1, 0
	for i, l := range lines {
		if strings.TrimSpace(l) != want {
			continue
		}
		d := i - from
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return []string{}
	}
	data = bytes.TrimSuffix(data, []byte("\n"))
	raw := strings.Split(string(data), "\n")
	for i, l := range raw {
		raw[i] = strings.TrimSuffix(l, "\r")
	}
	return raw
}
