// Package pdfdoc builds the document model from a PDF's extracted text and
// its flat outline, reconstructing the section hierarchy by anchoring each
// cleaned heading in the text.
package pdfdoc

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// OutlineEntry is one flat outline item: nesting level (1 for top level),
// cleaned title, and the source page when known (0 otherwise).
type OutlineEntry struct {
	Level int
	Title string
	Page  int
}

// Extraction holds everything pulled from a PDF before tree reconstruction.
type Extraction struct {
	Text    string
	Outline []OutlineEntry
	Title   string
}

// Extract reads a PDF's full text, flattened outline, and metadata title.
func Extract(path string) (*Extraction, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, reader); err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	ex := &Extraction{Text: sb.String()}
	ex.Outline = flattenOutline(r.Outline().Child, 1)
	ex.Title = metadataTitle(r)
	return ex, nil
}

// flattenOutline converts the outline tree into the flat level-tagged list
// the reconstruction algorithm consumes, cleaning each title.
func flattenOutline(items []pdf.Outline, level int) []OutlineEntry {
	var entries []OutlineEntry
	for _, item := range items {
		title := CleanTitle(item.Title)
		if title != "" {
			entries = append(entries, OutlineEntry{Level: level, Title: title})
		}
		entries = append(entries, flattenOutline(item.Child, level+1)...)
	}
	return entries
}

// metadataTitle reads the document info title, if any.
func metadataTitle(r *pdf.Reader) (title string) {
	defer func() {
		// Malformed trailers panic inside the pdf library; treat as no title.
		if recover() != nil {
			title = ""
		}
	}()
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return ""
	}
	return strings.TrimSpace(info.Key("Title").Text())
}
