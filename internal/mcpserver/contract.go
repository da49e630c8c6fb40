package mcpserver

import "strings"

const mentionSyntaxTemplate = `# Mention Syntax Contract

Backlinks are derived from tagged links. Plain Markdown links are ignored.

## Front matter

` + "```" + `markdown
---
permalink: /section/page/     # REQUIRED to be a mention target or source
title: Human-readable title   # OPTIONAL; the file name is used when absent
---
` + "```" + `

Only flat "key: value" lines are read. Values may be wrapped in single or
double quotes. Permalinks are normalized: leading and trailing slash, no
query or fragment, no repeated slashes.

## Tagged link

` + "```" + `markdown
[label](href){: {{class}} }
` + "```" + `

- href may be relative to the page's own permalink (` + "`../other/`" + `) or
  absolute (` + "`/section/other/`" + `). External links (http, https, mailto) never count.
- The label is listed next to the backlink on the target page.
- Extra classes or attributes inside the braces are allowed.

## Managed block

Pages that want a "mentioned by" list carry both markers, start first:

` + "```" + `markdown
{{start}}
{{end}}
` + "```" + `

Everything between the markers is owned by the tool and rewritten on each
run. Text from the start marker onwards is never scanned for mentions.
`

// MentionSyntax renders the contract for the configured class and markers.
func MentionSyntax(class, start, end string) string {
	return strings.NewReplacer(
		"{{class}}", "."+strings.TrimPrefix(class, "."),
		"{{start}}", start,
		"{{end}}", end,
	).Replace(mentionSyntaxTemplate)
}
