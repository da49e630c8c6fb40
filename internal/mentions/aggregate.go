// Package mentions builds the reverse "mentioned by" index of a corpus.
//
// Aggregation runs in two passes: Facts flattens every resolvable mention
// into a (source, target, label) fact, and Fold groups the facts into one
// sorted entry list per target document.
package mentions

import (
	"cmp"
	"path"
	"slices"
	"strings"

	"github.com/starford/backlinker/internal/models"
)

// Fact is one resolved mention between two distinct documents.
type Fact struct {
	SourcePath      string
	SourcePermalink string
	SourceTitle     string
	SourceStem      string
	TargetPath      string
	Label           string
}

// Index is the reverse index of a corpus. It is immutable once built.
type Index struct {
	entries   map[string][]models.Entry
	owners    map[string]string
	conflicts []models.Conflict
}

// Build aggregates docs into an Index. Documents are considered in
// lexicographic path order regardless of input order.
func Build(docs []models.Document) *Index {
	sorted := slices.Clone(docs)
	slices.SortFunc(sorted, func(a, b models.Document) int { return strings.Compare(a.Path, b.Path) })

	owners, conflicts := Owners(sorted)
	return &Index{
		entries:   Fold(Facts(sorted, owners)),
		owners:    owners,
		conflicts: conflicts,
	}
}

// Owners maps each permalink to the path of the document that owns it.
// Documents must be in path order: when several claim the same permalink
// the last one wins, and the collision is reported.
func Owners(docs []models.Document) (map[string]string, []models.Conflict) {
	owners := make(map[string]string, len(docs))
	claims := make(map[string][]string)
	for _, d := range docs {
		p := d.FrontMatter.Permalink
		if p == "" {
			continue
		}
		owners[p] = d.Path
		claims[p] = append(claims[p], d.Path)
	}

	var conflicts []models.Conflict
	for p, paths := range claims {
		if len(paths) < 2 {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			Permalink: p,
			Paths:     paths,
			Winner:    owners[p],
		})
	}
	slices.SortFunc(conflicts, func(a, b models.Conflict) int { return strings.Compare(a.Permalink, b.Permalink) })
	return owners, conflicts
}

// Facts resolves each document's mentions through owners. Sources without a
// permalink, unknown targets and self-mentions are dropped.
func Facts(docs []models.Document, owners map[string]string) []Fact {
	var out []Fact
	for _, d := range docs {
		if d.FrontMatter.Permalink == "" {
			continue
		}
		for _, m := range d.Mentions {
			target, ok := owners[m.Target]
			if !ok || target == d.Path {
				continue
			}
			out = append(out, Fact{
				SourcePath:      d.Path,
				SourcePermalink: d.FrontMatter.Permalink,
				SourceTitle:     d.FrontMatter.Title,
				SourceStem:      stem(d.Path),
				TargetPath:      target,
				Label:           m.Label,
			})
		}
	}
	return out
}

// stem is the file name without its extension. A name that is only an
// extension, such as ".md", is its own stem.
func stem(p string) string {
	base := path.Base(p)
	if s := strings.TrimSuffix(base, path.Ext(base)); s != "" {
		return s
	}
	return base
}

type draft struct {
	entry  models.Entry
	labels map[string]struct{}
}

// Fold groups facts by target into entries keyed by source permalink,
// merging labels. A source's front-matter title replaces whatever title the
// entry had; the file stem is used only while no title is known. Each
// target's entries are sorted by (title, permalink).
func Fold(facts []Fact) map[string][]models.Entry {
	drafts := make(map[string]map[string]*draft)
	for _, f := range facts {
		bySource, ok := drafts[f.TargetPath]
		if !ok {
			bySource = make(map[string]*draft)
			drafts[f.TargetPath] = bySource
		}
		d, ok := bySource[f.SourcePermalink]
		if !ok {
			d = &draft{labels: make(map[string]struct{})}
			bySource[f.SourcePermalink] = d
		}
		d.entry.SourcePermalink = f.SourcePermalink
		d.entry.SourcePath = f.SourcePath
		switch {
		case f.SourceTitle != "":
			d.entry.Title = f.SourceTitle
		case d.entry.Title == "":
			d.entry.Title = f.SourceStem
		}
		if f.Label != "" {
			d.labels[f.Label] = struct{}{}
		}
	}

	out := make(map[string][]models.Entry, len(drafts))
	for target, bySource := range drafts {
		entries := make([]models.Entry, 0, len(bySource))
		for _, d := range bySource {
			e := d.entry
			e.Labels = make([]string, 0, len(d.labels))
			for l := range d.labels {
				e.Labels = append(e.Labels, l)
			}
			slices.Sort(e.Labels)
			entries = append(entries, e)
		}
		SortEntries(entries)
		out[target] = entries
	}
	return out
}

// SortEntries orders entries by title, then permalink, byte-wise.
func SortEntries(entries []models.Entry) {
	slices.SortFunc(entries, func(a, b models.Entry) int {
		return cmp.Or(
			strings.Compare(a.Title, b.Title),
			strings.Compare(a.SourcePermalink, b.SourcePermalink),
		)
	})
}

// Backlinks returns the entries for the document at path. The slice must
// not be modified.
func (ix *Index) Backlinks(path string) []models.Entry {
	return ix.entries[path]
}

// Owner returns the path of the document owning permalink.
func (ix *Index) Owner(permalink string) (string, bool) {
	p, ok := ix.owners[permalink]
	return p, ok
}

// Targets returns every document path with at least one backlink, sorted.
func (ix *Index) Targets() []string {
	out := make([]string, 0, len(ix.entries))
	for t := range ix.entries {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Conflicts returns the permalink collisions found while building.
func (ix *Index) Conflicts() []models.Conflict {
	return ix.conflicts
}
