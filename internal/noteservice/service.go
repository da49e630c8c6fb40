// Package noteservice answers backlink queries from the snapshot index and
// triggers pipeline runs. It is shared by the HTTP API and the MCP server.
package noteservice

import (
	"context"
	"time"

	"github.com/starford/backlinker/internal/apperr"
	"github.com/starford/backlinker/internal/index"
	"github.com/starford/backlinker/internal/models"
	"github.com/starford/backlinker/internal/permalink"
	"github.com/starford/backlinker/internal/updater"
)

// Runner executes pipeline runs.
type Runner interface {
	Run(ctx context.Context) (*updater.Report, error)
	Plan(ctx context.Context) (*updater.Report, error)
}

// BacklinksDetail is the "mentioned by" list of one document.
type BacklinksDetail struct {
	Permalink string              `json:"permalink"`
	Path      string              `json:"path"`
	Title     string              `json:"title,omitempty"`
	Managed   bool                `json:"managed"`
	Backlinks []index.BacklinkRow `json:"backlinks"`
}

// RunSummary is the outcome of a triggered run.
type RunSummary struct {
	RunID     string            `json:"run_id"`
	DryRun    bool              `json:"dry_run"`
	Documents int               `json:"documents"`
	Rewritten []string          `json:"rewritten"`
	Failed    []string          `json:"failed"`
	Conflicts []models.Conflict `json:"conflicts"`
	Duration  time.Duration     `json:"duration"`
}

// Service coordinates the snapshot and the runner.
type Service struct {
	snap   index.Snapshot
	runner Runner
}

// NewService creates a new service.
func NewService(snap index.Snapshot, runner Runner) *Service {
	return &Service{snap: snap, runner: runner}
}

// Documents lists every document of the latest snapshot.
func (s *Service) Documents(ctx context.Context) ([]index.DocumentRow, error) {
	docs, err := s.snap.Documents(ctx)
	if docs == nil && err == nil {
		docs = []index.DocumentRow{}
	}
	return docs, err
}

// Search finds documents by title, permalink or path.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]index.DocumentRow, error) {
	docs, err := s.snap.Search(ctx, query, limit)
	if docs == nil && err == nil {
		docs = []index.DocumentRow{}
	}
	return docs, err
}

// Backlinks returns the entries of the document owning raw, which is
// normalized first.
func (s *Service) Backlinks(ctx context.Context, raw string) (*BacklinksDetail, error) {
	p := permalink.Normalize(raw)
	if p == "" {
		return nil, apperr.ErrNotFound
	}
	doc, err := s.snap.Document(ctx, p)
	if err != nil {
		return nil, err
	}
	bl, err := s.snap.Backlinks(ctx, p)
	if err != nil {
		return nil, err
	}
	return &BacklinksDetail{
		Permalink: p,
		Path:      doc.Path,
		Title:     doc.Title,
		Managed:   doc.Managed,
		Backlinks: bl,
	}, nil
}

// Conflicts lists permalink collisions of the latest snapshot.
func (s *Service) Conflicts(ctx context.Context) ([]models.Conflict, error) {
	return s.snap.Conflicts(ctx)
}

// LatestRun returns the latest stored run.
func (s *Service) LatestRun(ctx context.Context) (*index.RunRow, error) {
	return s.snap.LatestRun(ctx)
}

// Update runs the pipeline, or only plans it when dryRun is set.
func (s *Service) Update(ctx context.Context, dryRun bool) (*RunSummary, error) {
	run := s.runner.Run
	if dryRun {
		run = s.runner.Plan
	}
	rep, err := run(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(rep), nil
}

// Summarize converts a report into its public summary.
func Summarize(rep *updater.Report) *RunSummary {
	conflicts := rep.Conflicts
	if conflicts == nil {
		conflicts = []models.Conflict{}
	}
	return &RunSummary{
		RunID:     rep.RunID,
		DryRun:    rep.DryRun,
		Documents: rep.DocumentCount(),
		Rewritten: nonNil(rep.Rewritten),
		Failed:    nonNil(rep.Failed),
		Conflicts: conflicts,
		Duration:  rep.Duration,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
