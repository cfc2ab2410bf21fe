// Package ingest fetches a paper from arXiv and turns it into a parsed
// record: metadata from the API, the LaTeX source (or the PDF when the
// source is unusable), and the figure assets uploaded to the blob store.
package ingest

import (
	"regexp"
	"strings"
)

var (
	// newIDRe matches modern arXiv identifiers such as 2101.00001,
	// optionally versioned.
	newIDRe = regexp.MustCompile(`(\d{4}\.\d{4,5})(?:v\d+)?`)
	// oldIDRe matches pre-2007 identifiers such as hep-th/9901001.
	oldIDRe = regexp.MustCompile(`([a-z-]+(?:\.[A-Z]{2})?/\d{7})(?:v\d+)?`)

	spaceRe = regexp.MustCompile(`\s+`)
)

// CleanID extracts a bare arXiv identifier from user input, which may be a
// full abs/pdf URL or carry a version suffix. Returns "" when no identifier
// is found.
func CleanID(input string) string {
	input = strings.TrimSpace(input)
	if m := newIDRe.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	if m := oldIDRe.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	return ""
}

// CleanSpaces collapses all whitespace runs to single spaces. API abstracts
// arrive hard-wrapped with embedded newlines.
func CleanSpaces(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
