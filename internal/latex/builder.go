package latex

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"xplorer/internal/apperr"
	"xplorer/internal/paper"
)

// graphicsExtensions are tried in order when resolving an \includegraphics
// path without a suffix.
var graphicsExtensions = []string{"", ".png", ".jpg", ".jpeg", ".gif", ".pdf", ".ps", ".eps", ".svg"}

// Builder turns a LaTeX source tree into a Document. The macro handler
// registry is fixed at construction.
type Builder struct {
	encoder *Encoder
	dir     string
}

// NewBuilder creates a Builder; a nil registry selects the defaults.
func NewBuilder(registry Registry) *Builder {
	return &Builder{encoder: NewEncoder(registry)}
}

// BuildDocument locates the main .tex file under dir, parses it, and builds
// the document model. An externally supplied title takes precedence over the
// source's \title metadata.
func (b *Builder) BuildDocument(dir, externalTitle string) (*paper.Document, error) {
	mainFile, err := GuessMainTexFile(dir)
	if err != nil {
		return nil, apperr.Wrap(apperr.ParseFailure, "latex.BuildDocument", err)
	}
	data, err := os.ReadFile(mainFile)
	if err != nil {
		return nil, apperr.Wrap(apperr.ParseFailure, "latex.BuildDocument", err)
	}

	b.dir = filepath.Dir(mainFile)
	src := ExpandInputs(string(data), b.dir, 3)
	tree := Parse(src)

	bibliography := make(map[string]string)
	res := b.buildNodes(tree.Children, bibliography)

	title := externalTitle
	if title == "" {
		title = res.title
	}
	if title == "" {
		title = paper.DefaultTitle
	}

	root := &paper.Section{
		Title:       title,
		Content:     res.content,
		Subsections: res.subsections,
	}
	for _, f := range res.figures {
		root.AddFigure(f)
	}
	return paper.New(title, root, bibliography), nil
}

// buildResult accumulates one recursion level's output.
type buildResult struct {
	content     string
	subsections []*paper.Section
	figures     []*paper.FigureRecord
	title       string
}

// buildNodes walks sibling nodes, branching on node kind. Each node is
// parsed under a recover so a single malformed macro degrades to its raw
// text instead of aborting the document.
func (b *Builder) buildNodes(nodes []*Node, bib map[string]string) buildResult {
	var res buildResult
	for _, n := range nodes {
		one := b.buildNode(n, bib)
		res.content += one.content
		res.subsections = append(res.subsections, one.subsections...)
		res.figures = append(res.figures, one.figures...)
		if one.title != "" {
			res.title = one.title
		}
	}
	return res
}

func (b *Builder) buildNode(n *Node, bib map[string]string) (res buildResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("latex: node parse failed, falling back to raw text: %v", r)
			res = buildResult{content: n.Source}
		}
	}()

	switch {
	case n.Kind == SectionNode:
		title := Clean(b.encoder.Encode(n.Title))
		sub := b.buildNodes(n.Children, bib)
		sec := &paper.Section{
			Title:       title,
			Content:     sub.content,
			Subsections: sub.subsections,
		}
		for _, f := range sub.figures {
			sec.AddFigure(f)
		}
		res.subsections = []*paper.Section{sec}
		res.content = "\n\n" + title + sectionUnderline(n) + "\n" + sub.content
		res.title = sub.title

	case n.Kind == TitleNode:
		res.title = Clean(b.encoder.Encode(n.Title))

	case n.Kind == BibItem:
		res.content = b.encoder.Encode(n.Source)

	case n.Kind == Environment && n.Name == "thebibliography":
		var bibContent strings.Builder
		for _, item := range n.Children {
			text := Clean(b.encoder.Encode(item.Source))
			bib[item.Key] = text
			bibContent.WriteString(text + "\n\n")
		}
		content := strings.TrimSpace(bibContent.String())
		res.content = "\n\nReferences\n" + strings.Repeat("=", 10) + "\n" + content
		res.subsections = []*paper.Section{{Title: "References", Content: content}}

	case n.Kind == Environment && (n.Name == "table" || n.Name == "table*"):
		rendered, err := b.ParseTable(n.Source)
		if err != nil {
			log.Printf("latex: failed to parse table: %v", err)
			res.content = b.encoder.Encode(n.Source)
		} else {
			res.content = "\n\n" + rendered + "\n\n"
		}

	case n.Kind == Environment && (n.Name == "figure" || n.Name == "figure*"):
		fig := b.parseFigure(n.Source)
		if fig != nil {
			res.figures = []*paper.FigureRecord{fig}
			if fig.Caption != "" {
				res.content = fmt.Sprintf("\n<figure. %s - %s>\n", fig.Label, fig.Caption)
			} else {
				res.content = fmt.Sprintf("\n<figure. %s>\n", fig.Label)
			}
		}

	case n.Kind == Environment && len(n.Children) > 0:
		sub := b.buildNodes(n.Children, bib)
		res = sub

	default:
		res.content = b.encoder.Encode(n.Source)
	}
	return res
}

// sectionUnderline returns the heading underline for the node's level;
// subsubsections get none.
func sectionUnderline(n *Node) string {
	if n.Level >= 3 {
		return ""
	}
	ch := "="
	if n.Level == 2 {
		ch = "-"
	}
	return "\n" + strings.Repeat(ch, len(n.Title))
}

var (
	includegraphicsRe = regexp.MustCompile(`\\includegraphics\*?\s*(?:\[([^\]]*)\])?\s*\{([^}]*)\}`)
	labelArgRe        = regexp.MustCompile(`\\label\{([^}]*)\}`)
	dimensionRe       = regexp.MustCompile(`^([\d.]+)\s*([a-z]*)$`)
)

// parseFigure extracts the graphics, caption, and label of a figure
// environment. Graphics whose files cannot be located are skipped; a figure
// with no locatable graphics is dropped entirely.
func (b *Builder) parseFigure(body string) *paper.FigureRecord {
	fig := &paper.FigureRecord{}
	var baseNames []string

	for _, m := range includegraphicsRe.FindAllStringSubmatch(body, -1) {
		path, ok := b.resolveGraphic(m[2])
		if !ok {
			continue
		}
		fig.Paths = append(fig.Paths, path)
		fig.Sizes = append(fig.Sizes, parseGraphicsOptions(m[1]))
		base := filepath.Base(path)
		baseNames = append(baseNames, strings.TrimSuffix(base, filepath.Ext(base)))
	}
	if len(fig.Paths) == 0 {
		return nil
	}

	if i := strings.Index(body, `\caption`); i >= 0 {
		if caption, _, ok := readBraceArg(body, i+len(`\caption`)); ok {
			fig.Caption = Clean(b.encoder.Encode(caption))
		}
	}
	if m := labelArgRe.FindStringSubmatch(body); m != nil {
		fig.Label = m[1]
	}
	if fig.Label == "" {
		fig.Label = strings.Join(baseNames, "_")
	}
	return fig
}

// resolveGraphic locates a graphics file relative to the source directory,
// trying the usual extensions when the path has none.
func (b *Builder) resolveGraphic(name string) (string, bool) {
	for _, ext := range graphicsExtensions {
		candidate := filepath.Join(b.dir, name+ext)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// parseGraphicsOptions reads scale/width/height from an includegraphics
// option list. Dimensions with units convert to pixels at 96dpi; a length
// expressed as a fraction of a layout width becomes a scale hint.
func parseGraphicsOptions(opts string) paper.SizeHint {
	hint := paper.SizeHint{Scale: 1}
	for _, kv := range strings.Split(opts, ",") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "scale":
			if s, err := strconv.ParseFloat(value, 64); err == nil {
				hint.Scale = s
			}
		case "width":
			if px, scale, ok := parseDimension(value); ok {
				hint.Width = px
			} else if scale > 0 {
				hint.Scale = scale
			}
		case "height":
			if px, scale, ok := parseDimension(value); ok {
				hint.Height = px
			} else if scale > 0 {
				hint.Scale = scale
			}
		}
	}
	return hint
}

// parseDimension converts a length like "8cm" or "120pt" to pixels at 96dpi.
// For lengths relative to a layout width, e.g. "0.8\linewidth", it returns
// the fraction as a scale instead.
func parseDimension(value string) (px int, scale float64, ok bool) {
	if i := strings.IndexByte(value, '\\'); i >= 0 {
		frac := strings.TrimSpace(value[:i])
		if frac == "" {
			return 0, 1, false
		}
		if s, err := strconv.ParseFloat(frac, 64); err == nil {
			return 0, s, false
		}
		return 0, 0, false
	}

	m := dimensionRe.FindStringSubmatch(value)
	if m == nil {
		return 0, 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, false
	}
	const dpi = 96
	switch m[2] {
	case "cm":
		v = v / 2.54 * dpi
	case "in":
		v *= dpi
	case "pt":
		v = v / 72 * dpi
	case "px", "":
	default:
		return 0, 0, false
	}
	return int(v + 0.5), 0, true
}

// GuessMainTexFile picks the paper's entry point: a .tex file declaring a
// documentclass or a document environment; failing that, main.tex; failing
// that, the largest file in the directory.
func GuessMainTexFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read source dir: %w", err)
	}

	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tex") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		src := string(data)
		if strings.Contains(src, `\documentclass`) ||
			(strings.Contains(src, `\begin{document}`) && strings.Contains(src, `\end{document}`)) {
			candidates = append(candidates, path)
		}
	}

	if len(candidates) == 0 {
		mainPath := filepath.Join(dir, "main.tex")
		if _, err := os.Stat(mainPath); err == nil {
			return mainPath, nil
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				candidates = append(candidates, filepath.Join(dir, entry.Name()))
			}
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no source files in %s", dir)
	}

	largest := candidates[0]
	var largestSize int64 = -1
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && info.Size() > largestSize {
			largest, largestSize = path, info.Size()
		}
	}
	return largest, nil
}
