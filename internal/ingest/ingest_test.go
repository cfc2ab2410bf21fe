package ingest

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"xplorer/internal/apperr"
)

func TestCleanID(t *testing.T) {
	cases := []struct {
		input, want string
	}{
		{"2101.00001", "2101.00001"},
		{"2101.00001v3", "2101.00001"},
		{"https://arxiv.org/abs/2101.00001", "2101.00001"},
		{"https://arxiv.org/pdf/2101.00001v2", "2101.00001"},
		{"hep-th/9901001", "hep-th/9901001"},
		{"https://arxiv.org/abs/hep-th/9901001v1", "hep-th/9901001"},
		{"not a paper", ""},
	}
	for _, c := range cases {
		if got := CleanID(c.input); got != c.want {
			t.Errorf("CleanID(%q) = %q, want %q", c.input, got, c.want)
		}
	}
}

func TestCleanSpaces(t *testing.T) {
	in := "  We study\n  a thing\twith care.  "
	want := "We study a thing with care."
	if got := CleanSpaces(in); got != want {
		t.Errorf("CleanSpaces = %q, want %q", got, want)
	}
}

const atomResponse = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2101.00001v1</id>
    <published>2021-01-01T12:00:00Z</published>
    <title>A Study of
  Things</title>
    <summary>We study
  things carefully.</summary>
    <author><name>A. Author</name></author>
    <author><name>B. Author</name></author>
  </entry>
</feed>`

func TestClient_Metadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id_list") != "2101.00001" {
			t.Errorf("unexpected id_list %q", r.URL.Query().Get("id_list"))
		}
		w.Write([]byte(atomResponse))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL+"/e-print")
	meta, err := c.Metadata(context.Background(), "2101.00001")
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if meta.Title != "A Study of Things" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Abstract != "We study things carefully." {
		t.Errorf("Abstract = %q", meta.Abstract)
	}
	if meta.Date != "2021-01-01" {
		t.Errorf("Date = %q", meta.Date)
	}
	if meta.Authors != "A. Author, B. Author" {
		t.Errorf("Authors = %q", meta.Authors)
	}
}

func TestClient_MetadataUnknownID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"><entry><title></title></entry></feed>`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL+"/e-print")
	_, err := c.Metadata(context.Background(), "9999.99999")
	if !apperr.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(atomResponse))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL+"/e-print")
	c.sleep = func(time.Duration) {}

	if _, err := c.Metadata(context.Background(), "2101.00001"); err != nil {
		t.Fatalf("Metadata failed after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestClient_PDFURLDerivedFromEprint(t *testing.T) {
	c := NewClient("http://api.local/query", "http://mirror.local/e-print")
	if c.PDFURL != "http://mirror.local/pdf" {
		t.Errorf("PDFURL = %q", c.PDFURL)
	}
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestUnpack_BarePDF(t *testing.T) {
	dir := t.TempDir()
	kind, err := Unpack([]byte("%PDF-1.5 rest of file"), dir)
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	if kind != SourcePDF {
		t.Errorf("kind = %v, want SourcePDF", kind)
	}
	if _, err := os.Stat(filepath.Join(dir, PDFName)); err != nil {
		t.Errorf("pdf not written: %v", err)
	}
}

func TestUnpack_GzippedSingleTex(t *testing.T) {
	dir := t.TempDir()
	kind, err := Unpack(gzipBytes(t, []byte(`\documentclass{article}`)), dir)
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	if kind != SourceLatex {
		t.Errorf("kind = %v, want SourceLatex", kind)
	}
	data, err := os.ReadFile(filepath.Join(dir, "main.tex"))
	if err != nil {
		t.Fatalf("main.tex not written: %v", err)
	}
	if string(data) != `\documentclass{article}` {
		t.Errorf("main.tex = %q", data)
	}
}

func TestUnpack_GzippedTar(t *testing.T) {
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	for name, content := range map[string]string{
		"main.tex":    `\documentclass{article}`,
		"figs/a.png":  "imagedata",
	} {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	kind, err := Unpack(gzipBytes(t, tarBuf.Bytes()), dir)
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	if kind != SourceLatex {
		t.Errorf("kind = %v, want SourceLatex", kind)
	}
	if _, err := os.Stat(filepath.Join(dir, "main.tex")); err != nil {
		t.Errorf("main.tex not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "figs", "a.png")); err != nil {
		t.Errorf("figs/a.png not written: %v", err)
	}
}

func TestUnpack_TruncatedTarKeepsEntries(t *testing.T) {
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	for _, f := range []struct{ name, content string }{
		{"main.tex", `\documentclass{article}`},
		{"appendix.tex", `\section{Appendix}`},
	} {
		if err := tw.WriteHeader(&tar.Header{Name: f.name, Mode: 0o644, Size: int64(len(f.content))}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(f.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	// Cut into the second entry's header: the first entry is intact.
	truncated := tarBuf.Bytes()[:1024+100]

	dir := t.TempDir()
	kind, err := Unpack(gzipBytes(t, truncated), dir)
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	if kind != SourceLatex {
		t.Errorf("kind = %v, want SourceLatex", kind)
	}
	// main.tex holds the unpacked entry, not the raw tar bytes.
	data, err := os.ReadFile(filepath.Join(dir, "main.tex"))
	if err != nil {
		t.Fatalf("main.tex not written: %v", err)
	}
	if string(data) != `\documentclass{article}` {
		t.Errorf("main.tex = %q", data)
	}
}

func TestUnpack_Garbage(t *testing.T) {
	_, err := Unpack([]byte("neither pdf nor gzip"), t.TempDir())
	if !apperr.IsParseFailure(err) {
		t.Errorf("expected parse-failure, got %v", err)
	}
}
