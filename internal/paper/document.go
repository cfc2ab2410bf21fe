package paper

import (
	"fmt"
	"strings"

	"xplorer/internal/vector"
)

// UnknownCitation is returned by Citation for keys missing from the
// bibliography, so callers can format results without error handling.
const UnknownCitation = "Unknown citation."

// DefaultTitle is used when neither the source nor the metadata carries one.
const DefaultTitle = "Unknown Title."

// Document is the normalized representation of a paper: a title, the section
// tree, the bibliography, and the collected figure map. Capability flags are
// computed once at construction and never drift from the underlying data.
type Document struct {
	Title        string
	Root         *Section
	Bibliography map[string]string
	Figures      map[string]*FigureRecord

	// Index is the lazily built chunk embedding index. It is cached in a
	// separate tier and never serialized with the document itself.
	Index *vector.Index

	hasTOC bool
	hasBib bool
}

// New constructs a Document from a built section tree, computing capability
// flags and collecting figures with their owning section titles.
func New(title string, root *Section, bibliography map[string]string) *Document {
	if title == "" {
		title = DefaultTitle
	}
	d := &Document{
		Title:        title,
		Root:         root,
		Bibliography: bibliography,
	}
	d.hasTOC = len(root.Subsections) > 0
	d.hasBib = len(bibliography) > 0
	d.Figures = d.collectFigures()
	return d
}

// HasTableOfContents reports whether the document has any subsections.
func (d *Document) HasTableOfContents() bool { return d.hasTOC }

// CanReadCitation reports whether the document carries a bibliography.
func (d *Document) CanReadCitation() bool { return d.hasBib }

// Content returns the full concatenated text of the paper.
func (d *Document) Content() string { return d.Root.Content }

// Sections returns the top-level sections.
func (d *Document) Sections() []*Section { return d.Root.Subsections }

// SectionAt walks the subsection tree by a path of 0-based indices.
func (d *Document) SectionAt(path ...int) (*Section, error) {
	s := d.Root
	for depth, i := range path {
		if i < 0 || i >= len(s.Subsections) {
			return nil, fmt.Errorf("section index %d out of range at depth %d", i, depth)
		}
		s = s.Subsections[i]
	}
	if s == d.Root {
		return nil, fmt.Errorf("empty section path")
	}
	return s, nil
}

// Citation looks up a bibliography entry, returning the UnknownCitation
// sentinel rather than failing for missing keys.
func (d *Document) Citation(key string) string {
	if text, ok := d.Bibliography[key]; ok {
		return text
	}
	return UnknownCitation
}

// TableOfContents renders one line per section, indented by depth and
// annotated with word and figure counts.
func (d *Document) TableOfContents() string {
	var lines []string
	walkSections(d.Root.Subsections, 0, "", true, true, func(line string, _ *Section) {
		lines = append(lines, line)
	})
	return strings.Join(lines, "\n")
}

// ChunkTree flattens the section tree into retrieval chunks using the
// default chunking parameters.
func (d *Document) ChunkTree() []string {
	return d.ChunkTreeSized(DefaultChunkSize, DefaultOverlap, DefaultMinLen)
}

// ChunkTreeSized flattens the section tree into retrieval chunks. Each chunk
// is prefixed with its section's table-of-contents line, and parent content
// that duplicates a subsection is removed first.
func (d *Document) ChunkTreeSized(size, overlap, minLen int) []string {
	var chunks []string
	emit := func(title string, s *Section) {
		unique := UniqueContent(s)
		for _, c := range Chunk(unique, size, overlap, minLen) {
			chunks = append(chunks, strings.TrimSpace(title)+"\n"+c)
		}
	}
	emit(d.Title, d.Root)
	walkSections(d.Root.Subsections, 0, "", false, false, emit)
	return chunks
}

// collectFigures gathers every section's figures into one map, stamping each
// record with its owning section title for search-result grouping. Figures
// attached to the root itself (no section claimed them) are stamped with the
// document title.
func (d *Document) collectFigures() map[string]*FigureRecord {
	figures := make(map[string]*FigureRecord)
	for label, f := range d.Root.Figures {
		f.Section = d.Title
		figures[label] = f
	}
	walkSections(d.Root.Subsections, 0, "", false, false, func(title string, s *Section) {
		for label, f := range s.Figures {
			f.Section = strings.TrimSpace(title)
			figures[label] = f
		}
	})
	return figures
}

// walkSections visits sections depth first in document order, passing each
// one's table-of-contents line: hierarchical number, indent by depth, and
// optional word/figure-count annotations.
func walkSections(sections []*Section, level int, prefix string, showWords, showFigures bool, fn func(line string, s *Section)) {
	indent := strings.Repeat("  ", level)
	for i, s := range sections {
		number := fmt.Sprintf("%s%d.", prefix, i+1)

		var info []string
		if showWords {
			info = append(info, fmt.Sprintf("%d words", s.WordCount()))
		}
		if n := s.FigureCount(); showFigures && n > 0 {
			label := fmt.Sprintf("%d figure", n)
			if n > 1 {
				label += "s"
			}
			info = append(info, label)
		}

		line := fmt.Sprintf("%s%s %s", indent, number, s.Title)
		if len(info) > 0 {
			line += " (" + strings.Join(info, ", ") + ")"
		}

		fn(line, s)
		if len(s.Subsections) > 0 {
			walkSections(s.Subsections, level+1, number, showWords, showFigures, fn)
		}
	}
}
