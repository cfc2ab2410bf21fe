// Package latex parses a LaTeX source tree into the normalized document
// model. A lightweight scanner produces a macro/element tree; the builder
// walks it with per-node fallback so one malformed macro never aborts the
// whole parse. Macro rendering goes through an injectable handler registry
// rather than a full TeX implementation.
package latex

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Kind discriminates element tree nodes.
type Kind int

const (
	// Text is a leaf span of prose, possibly containing inline macros.
	Text Kind = iota
	// Environment is a \begin{...}...\end{...} block.
	Environment
	// SectionNode is a \section/\subsection/\subsubsection heading with the
	// nodes that follow it, up to the next heading of equal or lower level.
	SectionNode
	// BibItem is one \bibitem entry inside a thebibliography environment.
	BibItem
	// TitleNode carries the \title{...} metadata macro.
	TitleNode
)

// Node is one element of the parsed tree.
type Node struct {
	Kind     Kind
	Name     string // environment name, or "section"/"subsection"/...
	Level    int    // section nesting level, 1 for \section
	Title    string // section or document title, raw
	Key      string // bibitem citation key
	Source   string // raw source of the node's body
	Children []*Node
}

// leafEnvs are environments whose body is rendered from raw source rather
// than recursed into.
var leafEnvs = map[string]bool{
	"equation": true, "equation*": true, "math": true, "displaymath": true,
	"align": true, "align*": true, "eqnarray": true, "eqnarray*": true,
	"itemize": true, "enumerate": true, "description": true,
	"verbatim": true, "lstlisting": true, "tabular": true, "tabular*": true,
}

var commentRe = regexp.MustCompile(`(?m)(^|[^\\])%[^\n]*`)

// stripComments removes % comments while keeping escaped percent signs.
func stripComments(src string) string {
	return commentRe.ReplaceAllString(src, "$1")
}

// Parse scans LaTeX source into an element tree. Section headings are nested
// by level; environments become their own nodes; everything else stays as
// text for the encoder.
func Parse(src string) *Node {
	flat := scan(stripComments(src))
	return &Node{Kind: Environment, Name: "root", Children: nestSections(flat)}
}

// scan produces a flat node list: text runs, environments, bibitems, section
// markers, and the title macro.
func scan(src string) []*Node {
	var nodes []*Node
	var text strings.Builder

	flush := func() {
		if strings.TrimSpace(text.String()) != "" {
			nodes = append(nodes, &Node{Kind: Text, Source: text.String()})
		}
		text.Reset()
	}

	i := 0
	for i < len(src) {
		if src[i] != '\\' {
			text.WriteByte(src[i])
			i++
			continue
		}

		name, after := macroName(src, i)
		switch {
		case name == "begin":
			env, bodyStart, ok := readBraceArg(src, after)
			if !ok {
				text.WriteByte(src[i])
				i++
				continue
			}
			body, end, ok := findEnvEnd(src, bodyStart, env)
			if !ok {
				text.WriteByte(src[i])
				i++
				continue
			}
			flush()
			nodes = append(nodes, envNode(env, body, src[i:end]))
			i = end

		case name == "section" || name == "subsection" || name == "subsubsection":
			j := after
			if j < len(src) && src[j] == '*' {
				j++
			}
			j = skipOptArg(src, j)
			title, end, ok := readBraceArg(src, j)
			if !ok {
				text.WriteByte(src[i])
				i++
				continue
			}
			flush()
			nodes = append(nodes, &Node{
				Kind:  SectionNode,
				Name:  name,
				Level: strings.Count(name, "sub") + 1,
				Title: strings.TrimSpace(title),
			})
			i = end

		case name == "title":
			title, end, ok := readBraceArg(src, after)
			if !ok {
				text.WriteByte(src[i])
				i++
				continue
			}
			flush()
			nodes = append(nodes, &Node{Kind: TitleNode, Title: strings.TrimSpace(title)})
			i = end

		default:
			// Inline macro, left in the text for the encoder.
			text.WriteString(src[i:after])
			i = after
		}
	}
	flush()
	return nodes
}

// envNode classifies an environment and, for container environments,
// recursively scans its body.
func envNode(env, body, source string) *Node {
	n := &Node{Kind: Environment, Name: env, Source: source}
	switch {
	case env == "thebibliography":
		n.Children = parseBibItems(body)
	case env == "figure" || env == "figure*":
		// Body kept raw; the builder extracts graphics, caption, and label.
		n.Source = body
	case env == "table" || env == "table*":
		n.Source = source
	case leafEnvs[env]:
		n.Source = source
	default:
		// Generic container: recurse and let the builder splice.
		n.Children = nestSections(scan(body))
	}
	return n
}

// parseBibItems splits a thebibliography body on \bibitem entries.
func parseBibItems(body string) []*Node {
	var items []*Node
	idx := bibitemRe.FindAllStringSubmatchIndex(body, -1)
	for k, m := range idx {
		key := body[m[2]:m[3]]
		end := len(body)
		if k+1 < len(idx) {
			end = idx[k+1][0]
		}
		items = append(items, &Node{
			Kind:   BibItem,
			Key:    key,
			Source: strings.TrimSpace(body[m[1]:end]),
		})
	}
	return items
}

var bibitemRe = regexp.MustCompile(`\\bibitem(?:\[[^\]]*\])?\{([^}]*)\}`)

// nestSections converts a flat node list into a hierarchy: each section
// marker adopts the nodes that follow it until a marker of equal or lower
// level appears.
func nestSections(flat []*Node) []*Node {
	var root []*Node
	var stack []*Node

	for _, n := range flat {
		if n.Kind == SectionNode {
			for len(stack) > 0 && stack[len(stack)-1].Level >= n.Level {
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				root = append(root, n)
			} else {
				top := stack[len(stack)-1]
				top.Children = append(top.Children, n)
			}
			stack = append(stack, n)
			continue
		}
		if len(stack) == 0 {
			root = append(root, n)
		} else {
			top := stack[len(stack)-1]
			top.Children = append(top.Children, n)
		}
	}
	return root
}

// macroName reads the macro name starting at the backslash at src[i],
// returning the name and the index just past it.
func macroName(src string, i int) (string, int) {
	j := i + 1
	for j < len(src) && isLetter(src[j]) {
		j++
	}
	if j == i+1 && j < len(src) {
		// Single-character control sequence like \\ or \%.
		return src[j : j+1], j + 1
	}
	return src[i+1 : j], j
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// skipOptArg advances past whitespace and one optional [...] argument.
func skipOptArg(src string, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t' || src[i] == '\n') {
		i++
	}
	if i < len(src) && src[i] == '[' {
		depth := 0
		for ; i < len(src); i++ {
			if src[i] == '[' {
				depth++
			} else if src[i] == ']' {
				depth--
				if depth == 0 {
					return i + 1
				}
			}
		}
	}
	return i
}

// readBraceArg reads one balanced {...} argument starting at or after i,
// returning the content and the index just past the closing brace.
func readBraceArg(src string, i int) (string, int, bool) {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t' || src[i] == '\n') {
		i++
	}
	if i >= len(src) || src[i] != '{' {
		return "", i, false
	}
	depth := 0
	for j := i; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++ // skip escaped character
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return src[i+1 : j], j + 1, true
			}
		}
	}
	return "", i, false
}

// findEnvEnd locates the matching \end{env} for a body starting at start,
// honoring nested environments of the same name. It returns the body, the
// index just past the \end, and whether the end was found.
func findEnvEnd(src string, start int, env string) (string, int, bool) {
	begin := `\begin{` + env + `}`
	end := `\end{` + env + `}`
	depth := 1
	i := start
	for i < len(src) {
		b := strings.Index(src[i:], begin)
		e := strings.Index(src[i:], end)
		if e < 0 {
			return "", 0, false
		}
		if b >= 0 && b < e {
			depth++
			i += b + len(begin)
			continue
		}
		depth--
		if depth == 0 {
			return src[start : i+e], i + e + len(end), true
		}
		i += e + len(end)
	}
	return "", 0, false
}

// ExpandInputs inlines \input and \include files relative to dir, to a small
// fixed depth, so multi-file papers parse as one tree.
func ExpandInputs(src, dir string, depth int) string {
	if depth <= 0 {
		return src
	}
	return inputRe.ReplaceAllStringFunc(src, func(m string) string {
		name := inputRe.FindStringSubmatch(m)[1]
		if !strings.HasSuffix(name, ".tex") {
			name += ".tex"
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return ""
		}
		return ExpandInputs(string(data), dir, depth-1)
	})
}

var inputRe = regexp.MustCompile(`\\(?:input|include)\{([^}]*)\}`)
