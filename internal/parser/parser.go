// Package parser reads the restricted front-matter header and the tagged
// mention links of a note document.
package parser

import (
	"strings"

	"github.com/starford/backlinker/internal/models"
	"github.com/starford/backlinker/internal/permalink"
)

const delim = "---"

// ParseFrontMatter extracts the permalink and title from the header block of
// text. A missing or unterminated header yields an empty FrontMatter, not an
// error. The header is a flat list of "key: value" lines; anything richer is
// not interpreted.
func ParseFrontMatter(text string) models.FrontMatter {
	fields, ok := headerFields(text)
	if !ok {
		return models.FrontMatter{}
	}

	var fm models.FrontMatter
	if raw, ok := fields["permalink"]; ok {
		fm.Permalink = permalink.Normalize(raw)
	}
	if title, ok := fields["title"]; ok {
		fm.Title = title
		fm.HasTitle = true
	}
	return fm
}

// headerFields splits the header block (between the leading delimiter lines)
// into key/value pairs. Later duplicates win.
func headerFields(text string) (map[string]string, bool) {
	first, rest, found := strings.Cut(text, "\n")
	if !found || strings.TrimSuffix(first, "\r") != delim {
		return nil, false
	}

	lines := strings.Split(rest, "\n")
	end := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == delim {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, false
	}

	fields := make(map[string]string, end)
	for _, line := range lines[:end] {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	return fields, true
}

// unquote strips one level of matching single or double quotes.
func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
