package paper

// Record is the cache unit for one paper: arXiv metadata plus the parsed
// document. The table of contents and the citation flag are rendered once at
// ingestion so metadata reads never touch the tree.
type Record struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Date            string    `json:"date"`
	Authors         string    `json:"authors"`
	Abstract        string    `json:"abstract"`
	TableOfContents string    `json:"table_of_contents,omitempty"`
	CanReadCitation bool      `json:"can_read_citation"`
	Doc             *Document `json:"-"`
}

// Metadata is the service-facing view of a Record.
type Metadata struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Date            string `json:"date"`
	Authors         string `json:"authors,omitempty"`
	Abstract        string `json:"abstract,omitempty"`
	TableOfContents string `json:"table_of_contents,omitempty"`
	CanReadCitation bool   `json:"can_read_citation"`
	NumFigures      int    `json:"num_figures"`
}

// Metadata returns the record's metadata view, optionally hiding the
// abstract to keep responses small.
func (r *Record) Metadata(showAbstract bool) Metadata {
	m := Metadata{
		ID:              r.ID,
		Title:           r.Title,
		Date:            r.Date,
		Authors:         r.Authors,
		TableOfContents: r.TableOfContents,
		CanReadCitation: r.CanReadCitation,
	}
	if showAbstract {
		m.Abstract = r.Abstract
	}
	if r.Doc != nil {
		m.NumFigures = len(r.Doc.Figures)
	}
	return m
}
