// Package permalink normalizes document permalinks and resolves relative
// references against them.
package permalink

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var duplicateSlashRe = regexp.MustCompile(`//+`)

// Normalize returns the canonical form of p: a leading slash, no query or
// fragment, no repeated separators and exactly one trailing slash.
// Blank input yields "", which callers treat as "no permalink".
//
// Normalize is idempotent.
func Normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p, _, _ = strings.Cut(p, "?")
	p, _, _ = strings.Cut(p, "#")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = duplicateSlashRe.ReplaceAllString(p, "/")
	return strings.TrimRight(p, "/") + "/"
}

// IsExternal reports whether href points outside the corpus: anything with a
// URL scheme (http, https, mailto, ...) or a network host.
func IsExternal(href string) bool {
	lower := strings.ToLower(strings.TrimSpace(href))
	for _, prefix := range []string{"http://", "https://", "mailto:", "//"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return u.Scheme != "" || u.Host != ""
}

// Resolve resolves href relative to base (an already normalized permalink)
// with RFC 3986 merge and dot-segment removal, then normalizes the result.
// Both strings are used as written: nothing is percent-encoded or decoded.
// It returns "" when href is external.
func Resolve(base, href string) string {
	href = strings.TrimSpace(href)
	href, _, _ = strings.Cut(href, "#")
	href, _, _ = strings.Cut(href, "?")
	if IsExternal(href) {
		return ""
	}

	var merged string
	switch {
	case href == "":
		merged = base
	case strings.HasPrefix(href, "/"):
		merged = href
	default:
		merged = base[:strings.LastIndex(base, "/")+1] + href
	}
	if merged == "" {
		return ""
	}
	if !strings.HasPrefix(merged, "/") {
		merged = "/" + merged
	}
	return Normalize(path.Clean(merged))
}
