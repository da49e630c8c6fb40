// Package updater runs the backlink pipeline over a corpus: read every
// document, build the reverse index, then rewrite the managed block of each
// document whose rendered backlinks changed.
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/backlinker/internal/block"
	"github.com/starford/backlinker/internal/checksum"
	"github.com/starford/backlinker/internal/mentions"
	"github.com/starford/backlinker/internal/models"
	"github.com/starford/backlinker/internal/parser"
	"github.com/starford/backlinker/internal/storage"
)

// Defaults for the tagged-link syntax and managed block markers.
const (
	DefaultClass       = "dsa-mention"
	DefaultStartMarker = "<!-- dsa-mentioned-by:start -->"
	DefaultEndMarker   = "<!-- dsa-mentioned-by:end -->"
	DefaultSeparator   = " — "
)

// Sink receives the report of every completed run.
type Sink interface {
	Consume(ctx context.Context, r *Report) error
}

// Report describes one run.
type Report struct {
	RunID     string            `json:"run_id"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	DryRun    bool              `json:"dry_run"`
	Documents []models.Document `json:"-"`
	Index     *mentions.Index   `json:"-"`
	Rewritten []string          `json:"rewritten"`
	Failed    []string          `json:"failed"`
	Conflicts []models.Conflict `json:"conflicts"`
}

// DocumentCount is the number of documents read successfully.
func (r *Report) DocumentCount() int {
	return len(r.Documents)
}

// Option configures an Updater.
type Option func(*Updater)

// WithClass sets the mention class consumed and produced.
func WithClass(class string) Option {
	return func(u *Updater) { u.class = class }
}

// WithMarkers sets the managed block markers.
func WithMarkers(start, end string) Option {
	return func(u *Updater) { u.markers = block.Markers{Start: start, End: end} }
}

// WithSeparator sets the glyph between a rendered link and its labels.
func WithSeparator(sep string) Option {
	return func(u *Updater) { u.separator = sep }
}

// WithDryRun computes changes without writing them.
func WithDryRun(dry bool) Option {
	return func(u *Updater) { u.dryRun = dry }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(u *Updater) { u.logger = l }
}

// WithSinks registers sinks notified after each run.
func WithSinks(sinks ...Sink) Option {
	return func(u *Updater) { u.sinks = append(u.sinks, sinks...) }
}

// Updater owns the pipeline configuration. Runs are serialized.
type Updater struct {
	store     storage.Provider
	class     string
	markers   block.Markers
	separator string
	dryRun    bool
	logger    *slog.Logger
	sinks     []Sink

	extractor *parser.Extractor
	renderer  *block.Renderer

	mu sync.Mutex
}

// New creates an Updater over store.
func New(store storage.Provider, opts ...Option) *Updater {
	u := &Updater{
		store:     store,
		class:     DefaultClass,
		markers:   block.Markers{Start: DefaultStartMarker, End: DefaultEndMarker},
		separator: DefaultSeparator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.extractor = parser.NewExtractor(u.class, u.markers.Start)
	u.renderer = block.NewRenderer(u.extractor, u.separator)
	return u
}

// Run executes one full pass. Only a failure to list the corpus (or context
// cancellation) is returned as an error; per-document failures are logged
// and recorded in the report.
func (u *Updater) Run(ctx context.Context) (*Report, error) {
	return u.run(ctx, u.dryRun)
}

// Plan is Run without writes, regardless of configuration.
func (u *Updater) Plan(ctx context.Context) (*Report, error) {
	return u.run(ctx, true)
}

func (u *Updater) run(ctx context.Context, dryRun bool) (*Report, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	rep := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		DryRun:    dryRun,
	}
	logger := u.logger.With(slog.String("run_id", rep.RunID))

	docs, err := u.load(ctx, rep, logger)
	if err != nil {
		return nil, err
	}
	rep.Documents = docs
	rep.Index = mentions.Build(docs)
	rep.Conflicts = rep.Index.Conflicts()
	for _, c := range rep.Conflicts {
		logger.Warn("update: permalink conflict",
			slog.String("permalink", c.Permalink),
			slog.Any("paths", c.Paths),
			slog.String("winner", c.Winner))
	}

	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if !d.Managed {
			continue
		}
		lines := u.renderer.Lines(rep.Index.Backlinks(d.Path))
		out, changed := block.Rewrite(d.Text, u.markers, lines)
		if !changed {
			continue
		}
		if !dryRun {
			if err := u.store.Write(d.Path, []byte(out)); err != nil {
				logger.Warn("update: write failed", slog.String("path", d.Path), slog.String("error", err.Error()))
				rep.Failed = append(rep.Failed, d.Path)
				continue
			}
		}
		logger.Debug("update: rewrote", slog.String("path", d.Path), slog.Bool("dry_run", dryRun))
		rep.Rewritten = append(rep.Rewritten, d.Path)
	}
	rep.Duration = time.Since(rep.StartedAt)

	for _, s := range u.sinks {
		if err := s.Consume(ctx, rep); err != nil {
			logger.Warn("update: sink failed", slog.String("error", err.Error()))
		}
	}

	logger.Info("update: completed",
		slog.Int("documents", rep.DocumentCount()),
		slog.Int("rewritten", len(rep.Rewritten)),
		slog.Int("failed", len(rep.Failed)),
		slog.Int("conflicts", len(rep.Conflicts)),
		slog.Bool("dry_run", dryRun),
		slog.Duration("duration", rep.Duration))
	return rep, nil
}

// load reads and analyzes every document. It has no side effects.
func (u *Updater) load(ctx context.Context, rep *Report, logger *slog.Logger) ([]models.Document, error) {
	metas, err := u.store.List()
	if err != nil {
		return nil, fmt.Errorf("updater: %w", err)
	}

	docs := make([]models.Document, 0, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := u.store.Read(m.Path)
		if err != nil {
			logger.Warn("update: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			rep.Failed = append(rep.Failed, m.Path)
			continue
		}
		docs = append(docs, u.analyze(m.Path, string(data)))
	}
	return docs, nil
}

func (u *Updater) analyze(path, text string) models.Document {
	d := models.Document{
		Path:        path,
		Text:        text,
		FrontMatter: parser.ParseFrontMatter(text),
		Checksum:    checksum.String(text),
	}
	if d.FrontMatter.Permalink != "" {
		d.Mentions = u.extractor.Extract(text, d.FrontMatter.Permalink)
	}
	_, d.Managed = block.Split(text, u.markers)
	return d
}
