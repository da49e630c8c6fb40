package parser

import (
	"regexp"
	"strings"

	"github.com/starford/backlinker/internal/models"
	"github.com/starford/backlinker/internal/permalink"
)

// taggedLinkRe matches [label](href){: attrs } (a kramdown inline attribute
// list directly after an inline link).
var taggedLinkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)\{:([^}]*)\}`)

// Extractor finds mention links in document bodies.
type Extractor struct {
	classToken  string
	startMarker string
}

// NewExtractor returns an Extractor for links carrying the given class. Text
// from startMarker onwards is never scanned, so a generated backlink block is
// not read back as content.
func NewExtractor(class, startMarker string) *Extractor {
	return &Extractor{
		classToken:  "." + strings.TrimPrefix(class, "."),
		startMarker: startMarker,
	}
}

// Extract returns the mentions in text, in order of appearance, with each
// href resolved against base. Duplicates are kept.
func (e *Extractor) Extract(text, base string) []models.Mention {
	if e.startMarker != "" {
		text, _, _ = strings.Cut(text, e.startMarker)
	}

	var out []models.Mention
	for _, m := range taggedLinkRe.FindAllStringSubmatch(text, -1) {
		label, href, attrs := m[1], strings.TrimSpace(m[2]), m[3]
		if !e.hasClass(attrs) {
			continue
		}
		if href == "" || permalink.IsExternal(href) {
			continue
		}
		target := permalink.Resolve(base, href)
		if target == "" {
			continue
		}
		out = append(out, models.Mention{Label: strings.TrimSpace(label), Target: target})
	}
	return out
}

func (e *Extractor) hasClass(attrs string) bool {
	for _, tok := range strings.Fields(attrs) {
		if tok == e.classToken {
			return true
		}
	}
	return false
}

// Link renders a tagged link in the syntax Extract consumes.
func (e *Extractor) Link(label, href string) string {
	return "[" + label + "](" + href + "){: " + e.classToken + " }"
}
