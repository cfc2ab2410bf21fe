package pdfdoc

import (
	"regexp"
	"strings"

	"xplorer/internal/apperr"
	"xplorer/internal/paper"
)

// numberingRe matches a leading section numbering token such as "3.",
// "2.1 " or "IV. " so outline titles can anchor in body text that may or
// may not carry the same numbering.
var numberingRe = regexp.MustCompile(`^\s*(?:\d+(\.\d*)*\.?|[a-zA-Z\d\.]+\s+)\s*`)

// CleanTitle strips a leading numbering token from an outline title.
func CleanTitle(title string) string {
	return strings.TrimSpace(numberingRe.ReplaceAllString(title, ""))
}

// headingPrefix is the optional numbering allowed in front of a heading
// when locating it in the body text.
const headingPrefix = `(?:[A-Z\d\.]+\s*)?(?:\d+(?:\.\d*)*\s*)?`

// locateBody finds the text between the heading `title` and the next
// sibling heading (or end of text when next is empty). Headings are matched
// at line starts, case-insensitively, with an optional numbering prefix.
func locateBody(text, title, next string) (string, bool) {
	pattern := `(?si)(?:^|\n)[ \t]*` + headingPrefix + regexp.QuoteMeta(title) + `[ \t]*\n+([\s\S]+?)`
	if next != "" {
		pattern += `\n+[ \t]*` + headingPrefix + regexp.QuoteMeta(next) + `[ \t]*\n`
	} else {
		pattern += `$`
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// UnflattenSections reconstructs the section tree from the flat outline by
// walking a cursor over the entries: each entry claims the contiguous run of
// following entries at a strictly deeper level as its descendants, locates
// its own body between its heading and the next remaining heading, and
// recurses into that body for the descendants. Entries whose heading cannot
// be located in the text are dropped, unless figures exist for their source
// page, in which case an empty-bodied section keeps the figures reachable.
func UnflattenSections(text string, entries []OutlineEntry, figures map[int][]*paper.FigureRecord) []*paper.Section {
	var sections []*paper.Section
	i := 0
	for i < len(entries) {
		entry := entries[i]
		var descendants []OutlineEntry
		for _, next := range entries[i+1:] {
			if next.Level <= entry.Level {
				break
			}
			descendants = append(descendants, next)
		}
		i += len(descendants) + 1

		next := ""
		if i < len(entries) {
			next = entries[i].Title
		}

		body, ok := locateBody(text, entry.Title, next)
		if ok {
			sec := &paper.Section{
				Title:       entry.Title,
				Content:     body,
				Subsections: UnflattenSections(body, descendants, figures),
			}
			attachFigures(sec, entry.Page, figures)
			sections = append(sections, sec)
			continue
		}
		if entry.Page > 0 && len(figures[entry.Page]) > 0 {
			sec := &paper.Section{Title: entry.Title}
			attachFigures(sec, entry.Page, figures)
			sections = append(sections, sec)
		}
	}
	return sections
}

// attachFigures moves any figures recorded for the page onto the section,
// so each figure is claimed exactly once.
func attachFigures(sec *paper.Section, page int, figures map[int][]*paper.FigureRecord) {
	if page == 0 {
		return
	}
	for _, fig := range figures[page] {
		sec.AddFigure(fig)
	}
	delete(figures, page)
}

// BuildDocument assembles the document model from an extraction. The title
// precedence is the externally supplied title, then the PDF metadata title,
// then the unknown-title placeholder. A PDF with no outline yields a single
// root section holding the full text.
func BuildDocument(ex *Extraction, figures map[int][]*paper.FigureRecord, externalTitle string) (*paper.Document, error) {
	const op = "pdfdoc.BuildDocument"
	if strings.TrimSpace(ex.Text) == "" {
		return nil, apperr.New(apperr.ParseFailure, op, "no text extracted")
	}

	title := externalTitle
	if title == "" {
		title = ex.Title
	}
	if title == "" {
		title = paper.DefaultTitle
	}

	root := &paper.Section{
		Title:       title,
		Content:     ex.Text,
		Subsections: UnflattenSections(ex.Text, ex.Outline, figures),
	}
	// Figures on pages no outline entry claimed land on the root.
	for page := range figures {
		for _, fig := range figures[page] {
			root.AddFigure(fig)
		}
		delete(figures, page)
	}
	return paper.New(title, root, nil), nil
}
