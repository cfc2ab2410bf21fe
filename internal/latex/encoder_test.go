package latex

import (
	"strings"
	"testing"
)

func TestEncode_CitationsAndReferences(t *testing.T) {
	enc := NewEncoder(nil)

	tests := []struct {
		in   string
		want string
	}{
		{`see \cite{smith2020}`, "see <cit. smith2020>"},
		{`see \citep{smith2020}`, "see <cit. smith2020>"},
		{`as in Figure \ref{fig:plot}`, "as in Figure <ref. fig:plot>"},
		{`Eq. \eqref{eq:main}`, "Eq. <ref. eq:main>"},
	}
	for _, tt := range tests {
		if got := enc.Encode(tt.in); got != tt.want {
			t.Errorf("Encode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEncode_Hyperlinks(t *testing.T) {
	enc := NewEncoder(nil)

	got := enc.Encode(`\href{https://example.com}{the site}`)
	if got != "[the site](https://example.com)" {
		t.Errorf("href = %q", got)
	}
	if got := enc.Encode(`\url{https://example.com}`); got != "https://example.com" {
		t.Errorf("url = %q", got)
	}
}

func TestEncode_TextFormatting(t *testing.T) {
	enc := NewEncoder(nil)

	tests := []struct {
		in   string
		want string
	}{
		{`\textbf{bold} and \emph{stressed}`, "bold and stressed"},
		{`\texttt{code}`, "code"},
		{`non~breaking`, "non breaking"},
		{`inline $x + y$ math`, "inline x + y math"},
		{`grouped {text} here`, "grouped text here"},
	}
	for _, tt := range tests {
		if got := enc.Encode(tt.in); got != tt.want {
			t.Errorf("Encode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEncode_SymbolMacros(t *testing.T) {
	enc := NewEncoder(nil)

	tests := []struct {
		in   string
		want string
	}{
		{`\alpha\beta`, "αβ"},
		{`a \times b`, "a × b"},
		{`p \leq 0.05`, "p ≤ 0.05"},
		{`100\% done`, "100% done"},
		{`A \& B`, "A & B"},
		{`etc\ldots`, "etc..."},
	}
	for _, tt := range tests {
		if got := enc.Encode(tt.in); got != tt.want {
			t.Errorf("Encode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEncode_UnknownMacroDegradesToArguments(t *testing.T) {
	enc := NewEncoder(nil)
	if got := enc.Encode(`\unknownmacro{visible}`); got != "visible" {
		t.Errorf("unknown macro = %q", got)
	}
	if got := enc.Encode(`\unknownbare after`); got != " after" {
		t.Errorf("bare unknown macro = %q", got)
	}
}

func TestEncode_ListItems(t *testing.T) {
	enc := NewEncoder(nil)
	got := enc.Encode("\\begin{itemize}\n\\item first\n\\item second\n\\end{itemize}")
	if !strings.Contains(got, "- first") || !strings.Contains(got, "- second") {
		t.Errorf("itemize items not rendered: %q", got)
	}
	if !strings.HasPrefix(got, "\n") {
		t.Errorf("list environment should start on a new line: %q", got)
	}
}

func TestEncode_IncludeGraphicsPlaceholder(t *testing.T) {
	enc := NewEncoder(nil)
	got := enc.Encode(`\includegraphics[width=3cm]{plot.png}`)
	if got != "<image>" {
		t.Errorf("includegraphics = %q", got)
	}
}

func TestEncode_CustomRegistry(t *testing.T) {
	reg := DefaultRegistry()
	reg["cite"] = func(_ string, args []string, _ *Encoder) string {
		return "[" + args[0] + "]"
	}
	enc := NewEncoder(reg)
	if got := enc.Encode(`\cite{smith2020}`); got != "[smith2020]" {
		t.Errorf("custom handler = %q", got)
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  padded  ", "padded"},
		{"word , next . done", "word, next. done"},
		{"fine already.", "fine already."},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
