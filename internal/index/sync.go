package index

import (
	"context"

	"github.com/starford/backlinker/internal/models"
	"github.com/starford/backlinker/internal/updater"
)

// Sink stores every run report as the current snapshot.
type Sink struct {
	db *DB
}

// NewSink returns an updater.Sink writing to db.
func NewSink(db *DB) *Sink {
	return &Sink{db: db}
}

var _ updater.Sink = (*Sink)(nil)

// Consume implements updater.Sink.
func (s *Sink) Consume(ctx context.Context, r *updater.Report) error {
	return s.db.Replace(ctx, ContentsOf(r))
}

// ContentsOf flattens a run report into snapshot contents.
func ContentsOf(r *updater.Report) Contents {
	c := Contents{
		Run: RunRow{
			RunID:     r.RunID,
			StartedAt: r.StartedAt,
			Duration:  r.Duration,
			DryRun:    r.DryRun,
			Documents: r.DocumentCount(),
			Rewritten: r.Rewritten,
			Failed:    r.Failed,
		},
		Documents: r.Documents,
		Owners:    make(map[string]string),
		Backlinks: make(map[string][]models.Entry),
		Conflicts: r.Conflicts,
	}
	for _, d := range r.Documents {
		p := d.FrontMatter.Permalink
		if p == "" {
			continue
		}
		if owner, ok := r.Index.Owner(p); ok {
			c.Owners[p] = owner
		}
	}
	for _, target := range r.Index.Targets() {
		c.Backlinks[target] = r.Index.Backlinks(target)
	}
	return c
}
