// Package models defines small value types shared between storage, index
// and the transport layers.
package models

import "time"

// ThreadFile describes a thread document in the workspace.
type ThreadFile struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ThreadSummary is an indexed thread document.
type ThreadSummary struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	NodeCount int       `json:"node_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecentThread is one entry of the most-recently-used list.
type RecentThread struct {
	Location string    `json:"location"`
	Title    string    `json:"title"`
	OpenedAt time.Time `json:"opened_at"`
}

// NodeRef points at a node of an indexed thread.
type NodeRef struct {
	Path    string `json:"path"`
	NodeID  int    `json:"node_id"`
	Caption string `json:"caption"`
	SrcPath string `json:"src_path,omitempty"`
	LineNum int    `json:"line_num,omitempty"`
	// Snippet is set for search hits.
	Snippet string `json:"snippet,omitempty"`
}
