package thread

import "path/filepath"

// Location is an editor position: an absolute file path and a 0-based line.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

// Resolve turns a link into an editor position. Relative link paths are
// joined with rootPath.
func Resolve(link *SrcLink, rootPath string) Location {
	p := link.Path
	if !filepath.IsAbs(p) {
		p = filepath.Join(rootPath, p)
	}
	return Location{Path: p, Line: max(link.LineNum-1, 0)}
}
