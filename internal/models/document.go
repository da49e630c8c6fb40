// Package models defines the domain types shared by the backlink pipeline.
package models

import "time"

// DocumentMeta is the lightweight listing entry returned by storage.
type DocumentMeta struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FrontMatter holds the header fields the pipeline cares about.
// An empty Permalink means the document has none (or an invalid one).
type FrontMatter struct {
	Permalink string `json:"permalink,omitempty"`
	Title     string `json:"title,omitempty"`
	HasTitle  bool   `json:"has_title"`
}

// Mention is a tagged reference found in a document body.
type Mention struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

// Document is one note file loaded for a run.
type Document struct {
	Path        string      `json:"path"`
	Text        string      `json:"-"`
	FrontMatter FrontMatter `json:"front_matter"`
	Mentions    []Mention   `json:"mentions,omitempty"`
	Checksum    string      `json:"checksum"`
	// Managed is true when the document carries a well-formed marker pair.
	Managed bool `json:"managed"`
}

// Entry is one aggregated "mentioned by" record for a target document.
type Entry struct {
	SourcePath      string   `json:"source_path"`
	SourcePermalink string   `json:"source_permalink"`
	Title           string   `json:"title"`
	Labels          []string `json:"labels"`
}

// DisplayTitle returns the title used when rendering the entry.
func (e Entry) DisplayTitle() string {
	if e.Title != "" {
		return e.Title
	}
	return e.SourcePermalink
}

// Conflict records documents that claim the same permalink.
type Conflict struct {
	Permalink string   `json:"permalink"`
	Paths     []string `json:"paths"`
	Winner    string   `json:"winner"`
}
