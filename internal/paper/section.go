// Package paper defines the normalized document model shared by both
// builders: a tree of sections with figures, a bibliography, and the
// word-overlap chunking used as the unit of semantic retrieval.
package paper

import "strings"

// SizeHint carries the display hints captured from a figure's source markup.
// Width and Height are pixel sizes; zero means unspecified.
type SizeHint struct {
	Scale  float64 `json:"scale,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
}

// FigureRecord describes one figure of a document. Paths are the unresolved
// source locators inside the paper's packed archive; after resolution they are
// cleared and URLs holds the public image locations.
type FigureRecord struct {
	Label   string     `json:"label"`
	Caption string     `json:"caption,omitempty"`
	Section string     `json:"section,omitempty"`
	Paths   []string   `json:"path,omitempty"`
	URLs    []string   `json:"url,omitempty"`
	Sizes   []SizeHint `json:"size,omitempty"`
}

// Resolved reports whether the figure's source locators have been turned
// into public URLs.
func (f *FigureRecord) Resolved() bool { return len(f.URLs) > 0 }

// Section is a titled span of content with ordered subsections and the
// figures that appeared inside it. Subsections keep document order.
type Section struct {
	Title       string                   `json:"title"`
	Content     string                   `json:"content"`
	Subsections []*Section               `json:"subsections,omitempty"`
	Figures     map[string]*FigureRecord `json:"figures,omitempty"`
}

// WordCount returns the number of whitespace-separated words in the
// section's own content.
func (s *Section) WordCount() int { return len(strings.Fields(s.Content)) }

// FigureCount returns the number of figures attached to this section.
func (s *Section) FigureCount() int { return len(s.Figures) }

// Chunks splits the section's content into overlapping retrieval chunks
// using the default parameters.
func (s *Section) Chunks() []string {
	return Chunk(s.Content, DefaultChunkSize, DefaultOverlap, DefaultMinLen)
}

// AddFigure attaches a figure to the section, allocating the map on first use.
func (s *Section) AddFigure(f *FigureRecord) {
	if s.Figures == nil {
		s.Figures = make(map[string]*FigureRecord)
	}
	s.Figures[f.Label] = f
}
