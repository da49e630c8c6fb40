// Package block rewrites the machine-managed "mentioned by" region of a
// document, the text strictly between a start and an end marker.
package block

import (
	"strings"

	"github.com/starford/backlinker/internal/models"
)

// Markers delimit the managed region.
type Markers struct {
	Start string
	End   string
}

// View is a document split around its managed region.
type View struct {
	Prefix  string
	Region  string
	Suffix  string
	markers Markers
}

// Split locates the first start marker and the first end marker after it.
// ok is false when either is missing or the end marker only occurs before
// the start marker.
func Split(text string, m Markers) (View, bool) {
	if m.Start == "" || m.End == "" {
		return View{}, false
	}
	prefix, rest, found := strings.Cut(text, m.Start)
	if !found {
		return View{}, false
	}
	region, suffix, found := strings.Cut(rest, m.End)
	if !found {
		return View{}, false
	}
	return View{Prefix: prefix, Region: region, Suffix: suffix, markers: m}, true
}

// With returns the document text with the managed region replaced.
func (v View) With(region string) string {
	var b strings.Builder
	b.Grow(len(v.Prefix) + len(v.markers.Start) + len(region) + len(v.markers.End) + len(v.Suffix))
	b.WriteString(v.Prefix)
	b.WriteString(v.markers.Start)
	b.WriteString(region)
	b.WriteString(v.markers.End)
	b.WriteString(v.Suffix)
	return b.String()
}

// Region formats rendered lines as the managed region body: a newline, the
// lines each terminated by a newline.
func Region(lines []string) string {
	if len(lines) == 0 {
		return "\n"
	}
	return "\n" + strings.Join(lines, "\n") + "\n"
}

// Rewrite replaces the managed region of text with lines. It returns the
// original text and false when the markers are malformed or nothing changed.
func Rewrite(text string, m Markers, lines []string) (string, bool) {
	v, ok := Split(text, m)
	if !ok {
		return text, false
	}
	out := v.With(Region(lines))
	if out == text {
		return text, false
	}
	return out, true
}

// Linker renders a tagged link.
type Linker interface {
	Link(label, href string) string
}

// Renderer turns backlink entries into list-item lines.
type Renderer struct {
	linker    Linker
	separator string
}

// NewRenderer returns a Renderer writing links with l and joining the link
// and its labels with separator.
func NewRenderer(l Linker, separator string) *Renderer {
	return &Renderer{linker: l, separator: separator}
}

// Lines renders one line per entry, in the order given.
func (r *Renderer) Lines(entries []models.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		line := "- " + r.linker.Link(e.DisplayTitle(), e.SourcePermalink)
		if len(e.Labels) > 0 {
			line += r.separator + strings.Join(e.Labels, ", ")
		}
		out = append(out, line)
	}
	return out
}
