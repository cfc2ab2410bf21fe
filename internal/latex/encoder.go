package latex

import (
	"fmt"
	"regexp"
	"strings"
)

// Handler renders one macro to text. opt is the raw optional argument, args
// the raw brace arguments; enc can render nested markup.
type Handler func(opt string, args []string, enc *Encoder) string

// Registry maps macro names to handlers. It is injected into the builder's
// construction so callers can extend or override macro rendering without
// touching shared state.
type Registry map[string]Handler

// Labeller returns a handler that renders a macro's argument as a tagged
// inline marker, e.g. "<cit. smith2020>".
func Labeller(name string) Handler {
	return func(_ string, args []string, _ *Encoder) string {
		if len(args) == 0 {
			return fmt.Sprintf("<%s>", name)
		}
		return fmt.Sprintf("<%s. %s>", name, args[0])
	}
}

// DefaultRegistry returns the curated handler set: citations and references
// become inline markers, hyperlinks become markdown-style links, and list
// items become dashes.
func DefaultRegistry() Registry {
	return Registry{
		"cite":  Labeller("cit"),
		"citep": Labeller("cit"),
		"citet": Labeller("cit"),
		"ref":   Labeller("ref"),
		"eqref": Labeller("ref"),
		"label": Labeller("label"),
		"href": func(_ string, args []string, enc *Encoder) string {
			if len(args) < 2 {
				return ""
			}
			return fmt.Sprintf("[%s](%s)", enc.Encode(args[1]), enc.Encode(args[0]))
		},
		"url": func(_ string, args []string, _ *Encoder) string {
			if len(args) == 0 {
				return ""
			}
			return args[0]
		},
		"item": func(opt string, _ []string, enc *Encoder) string {
			if opt != "" {
				return enc.Encode(opt) + " "
			}
			return "- "
		},
		"includegraphics": func(_ string, _ []string, _ *Encoder) string {
			return "<image>"
		},
	}
}

// passthroughMacros render as their first argument's text.
var passthroughMacros = map[string]bool{
	"textbf": true, "textit": true, "texttt": true, "textsc": true,
	"emph": true, "underline": true, "mbox": true, "text": true,
	"mathrm": true, "mathbf": true, "section": true, "subsection": true,
	"subsubsection": true, "paragraph": true, "caption": true, "title": true,
	"author": true, "footnote": true,
}

// symbolMacros are single-token replacements.
var symbolMacros = map[string]string{
	"%": "%", "&": "&", "_": "_", "#": "#", "$": "$", "{": "{", "}": "}",
	"\\": "\n", ",": " ", ";": " ", " ": " ",
	"ldots": "...", "dots": "...", "quad": "  ", "qquad": "    ",
	"alpha": "α", "beta": "β", "gamma": "γ", "delta": "δ", "epsilon": "ε",
	"lambda": "λ", "mu": "μ", "pi": "π", "sigma": "σ", "theta": "θ",
	"times": "×", "pm": "±", "leq": "≤", "geq": "≥", "neq": "≠",
	"infty": "∞", "sum": "∑", "prod": "∏", "int": "∫",
}

// listEnvs get a leading newline when unwrapped, matching the original's
// environment replacements.
var listEnvs = map[string]bool{"itemize": true, "enumerate": true, "exenumerate": true, "description": true}

// Encoder converts LaTeX markup into plain text through the handler
// registry. Unknown macros degrade to their arguments' text, preserving
// markup-sensitive content verbatim-ish rather than failing.
type Encoder struct {
	registry Registry
}

// NewEncoder creates an Encoder with the given registry; nil means the
// default registry.
func NewEncoder(registry Registry) *Encoder {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Encoder{registry: registry}
}

// Encode renders LaTeX source to text. It never fails: input it cannot make
// sense of passes through unchanged.
func (e *Encoder) Encode(src string) string {
	src = stripComments(src)
	var out strings.Builder
	i := 0
	for i < len(src) {
		c := src[i]
		switch c {
		case '\\':
			text, next := e.encodeMacro(src, i)
			out.WriteString(text)
			i = next
		case '~':
			out.WriteByte(' ')
			i++
		case '{', '}', '$':
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

// Clean trims text and normalizes spacing around punctuation.
func Clean(text string) string {
	return punctRe.ReplaceAllString(strings.TrimSpace(text), "$1 ")
}

var punctRe = regexp.MustCompile(`[ \t]*([.,;:!?])[ \t]+`)

// encodeMacro renders one macro starting at the backslash at src[i] and
// returns the rendered text and the index to resume at.
func (e *Encoder) encodeMacro(src string, i int) (string, int) {
	name, after := macroName(src, i)

	if name == "begin" {
		env, bodyStart, ok := readBraceArg(src, after)
		if ok {
			if body, end, found := findEnvEnd(src, bodyStart, env); found {
				inner := e.Encode(body)
				if listEnvs[env] {
					inner = "\n" + inner
				}
				return inner, end
			}
		}
		return "", after
	}
	if name == "end" {
		_, end, ok := readBraceArg(src, after)
		if ok {
			return "", end
		}
		return "", after
	}

	if repl, ok := symbolMacros[name]; ok {
		return repl, after
	}

	opt, afterOpt := readOptArg(src, after)
	args, next := readBraceArgs(src, afterOpt, 3)

	if handler, ok := e.registry[name]; ok {
		return handler(opt, args, e), next
	}
	if passthroughMacros[name] {
		if len(args) > 0 {
			return e.Encode(args[0]), next
		}
		return "", next
	}
	// Unknown macro: degrade to its arguments' text.
	var out strings.Builder
	for _, a := range args {
		out.WriteString(e.Encode(a))
	}
	return out.String(), next
}

// readOptArg reads one optional [...] argument if present.
func readOptArg(src string, i int) (string, int) {
	j := i
	for j < len(src) && (src[j] == ' ' || src[j] == '\t') {
		j++
	}
	if j >= len(src) || src[j] != '[' {
		return "", i
	}
	depth := 0
	for k := j; k < len(src); k++ {
		if src[k] == '[' {
			depth++
		} else if src[k] == ']' {
			depth--
			if depth == 0 {
				return src[j+1 : k], k + 1
			}
		}
	}
	return "", i
}

// readBraceArgs reads up to max consecutive {...} arguments.
func readBraceArgs(src string, i, max int) ([]string, int) {
	var args []string
	for len(args) < max {
		arg, next, ok := readBraceArgTight(src, i)
		if !ok {
			break
		}
		args = append(args, arg)
		i = next
	}
	return args, i
}

// readBraceArgTight is readBraceArg without whitespace skipping, so prose
// following a macro is not mistaken for an argument.
func readBraceArgTight(src string, i int) (string, int, bool) {
	if i >= len(src) || src[i] != '{' {
		return "", i, false
	}
	return readBraceArg(src, i)
}
