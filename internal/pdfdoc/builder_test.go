package pdfdoc

import (
	"strings"
	"testing"

	"xplorer/internal/apperr"
	"xplorer/internal/paper"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1. Introduction", "Introduction"},
		{"2.1 Setup", "Setup"},
		{"IV. Results", "Results"},
		{"3 Method", "Method"},
		{"Discussion", "Discussion"},
		{"  4.2.  Deep Dive  ", "Deep Dive"},
	}
	for _, tt := range tests {
		if got := CleanTitle(tt.in); got != tt.want {
			t.Errorf("CleanTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLocateBody(t *testing.T) {
	text := "preamble\nIntroduction\nintro body here\nResults\nresults body\n"

	body, ok := locateBody(text, "Introduction", "Results")
	if !ok {
		t.Fatal("heading not located")
	}
	if strings.TrimSpace(body) != "intro body here" {
		t.Errorf("body = %q", body)
	}

	// Final heading runs to end of text.
	body, ok = locateBody(text, "Results", "")
	if !ok {
		t.Fatal("final heading not located")
	}
	if strings.TrimSpace(body) != "results body" {
		t.Errorf("body = %q", body)
	}
}

func TestLocateBody_NumberedHeadingInText(t *testing.T) {
	text := "start\n1. Introduction\nthe body\n2 Results\ntail\n"

	body, ok := locateBody(text, "Introduction", "Results")
	if !ok {
		t.Fatal("numbered heading not located")
	}
	if strings.TrimSpace(body) != "the body" {
		t.Errorf("body = %q", body)
	}
}

func TestLocateBody_CaseInsensitive(t *testing.T) {
	text := "x\nINTRODUCTION\nbody text\n"
	body, ok := locateBody(text, "Introduction", "")
	if !ok {
		t.Fatal("case-insensitive match failed")
	}
	if strings.TrimSpace(body) != "body text" {
		t.Errorf("body = %q", body)
	}
}

func TestLocateBody_Missing(t *testing.T) {
	if _, ok := locateBody("no headings here\n", "Introduction", ""); ok {
		t.Fatal("expected no match")
	}
}

func TestUnflattenSections_NestsDeeperRuns(t *testing.T) {
	text := "head\nIntroduction\nintro opening\nBackground\nbackground body\nResults\nresults body\n"
	entries := []OutlineEntry{
		{Level: 1, Title: "Introduction"},
		{Level: 2, Title: "Background"},
		{Level: 1, Title: "Results"},
	}

	sections := UnflattenSections(text, entries, map[int][]*paper.FigureRecord{})
	if len(sections) != 2 {
		t.Fatalf("expected 2 top-level sections, got %d", len(sections))
	}
	intro := sections[0]
	if intro.Title != "Introduction" {
		t.Errorf("first section = %q", intro.Title)
	}
	if len(intro.Subsections) != 1 || intro.Subsections[0].Title != "Background" {
		t.Fatalf("Background not nested under Introduction: %+v", intro.Subsections)
	}
	if strings.TrimSpace(intro.Subsections[0].Content) != "background body" {
		t.Errorf("Background body = %q", intro.Subsections[0].Content)
	}
	if sections[1].Title != "Results" {
		t.Errorf("second section = %q", sections[1].Title)
	}
}

func TestUnflattenSections_SiblingAtSameLevelEndsRun(t *testing.T) {
	text := "A\nfirst body\nB\nsecond body\n"
	entries := []OutlineEntry{
		{Level: 1, Title: "A"},
		{Level: 1, Title: "B"},
	}

	sections := UnflattenSections(text, entries, map[int][]*paper.FigureRecord{})
	if len(sections) != 2 {
		t.Fatalf("expected 2 siblings, got %d", len(sections))
	}
	if len(sections[0].Subsections) != 0 {
		t.Errorf("sibling wrongly adopted as descendant: %+v", sections[0].Subsections)
	}
}

func TestUnflattenSections_DropsUnlocatableEntries(t *testing.T) {
	text := "Introduction\nbody\n"
	entries := []OutlineEntry{
		{Level: 1, Title: "Phantom Heading"},
		{Level: 1, Title: "Introduction"},
	}

	sections := UnflattenSections(text, entries, map[int][]*paper.FigureRecord{})
	if len(sections) != 1 || sections[0].Title != "Introduction" {
		t.Fatalf("expected phantom entry dropped, got %+v", sections)
	}
}

func TestUnflattenSections_KeepsUnlocatableEntryWithPageFigures(t *testing.T) {
	text := "Introduction\nbody\n"
	fig := &paper.FigureRecord{Label: "fig1"}
	figures := map[int][]*paper.FigureRecord{7: {fig}}
	entries := []OutlineEntry{
		{Level: 1, Title: "Phantom Heading", Page: 7},
		{Level: 1, Title: "Introduction"},
	}

	sections := UnflattenSections(text, entries, figures)
	if len(sections) != 2 {
		t.Fatalf("expected figure-bearing entry kept, got %d sections", len(sections))
	}
	phantom := sections[0]
	if phantom.Content != "" {
		t.Errorf("phantom content = %q", phantom.Content)
	}
	if _, ok := phantom.Figures["fig1"]; !ok {
		t.Errorf("figure not attached: %+v", phantom.Figures)
	}
	if len(figures) != 0 {
		t.Errorf("figure claimed twice: %+v", figures)
	}
}

func TestBuildDocument_NoOutline(t *testing.T) {
	ex := &Extraction{Text: "just a wall of text"}
	doc, err := BuildDocument(ex, nil, "")
	if err != nil {
		t.Fatalf("BuildDocument failed: %v", err)
	}
	if len(doc.Root.Subsections) != 0 {
		t.Errorf("expected flat document, got %d sections", len(doc.Root.Subsections))
	}
	if doc.Root.Content != "just a wall of text" {
		t.Errorf("content = %q", doc.Root.Content)
	}
	if doc.HasTableOfContents() {
		t.Error("flat document should not report a table of contents")
	}
}

func TestBuildDocument_TitlePrecedence(t *testing.T) {
	ex := &Extraction{Text: "text", Title: "Metadata Title"}

	doc, err := BuildDocument(ex, nil, "External Title")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "External Title" {
		t.Errorf("title = %q", doc.Title)
	}

	doc, err = BuildDocument(ex, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Metadata Title" {
		t.Errorf("title = %q", doc.Title)
	}

	doc, err = BuildDocument(&Extraction{Text: "text"}, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != paper.DefaultTitle {
		t.Errorf("title = %q", doc.Title)
	}
}

func TestBuildDocument_UnclaimedFiguresLandOnRoot(t *testing.T) {
	fig := &paper.FigureRecord{Label: "orphan"}
	figures := map[int][]*paper.FigureRecord{3: {fig}}

	doc, err := BuildDocument(&Extraction{Text: "text"}, figures, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.Root.Figures["orphan"]; !ok {
		t.Errorf("orphan figure not attached to root: %+v", doc.Root.Figures)
	}
	// Root figures are still reachable through the document's figure map.
	if _, ok := doc.Figures["orphan"]; !ok {
		t.Errorf("orphan figure not collected: %+v", doc.Figures)
	}
}

func TestBuildDocument_EmptyText(t *testing.T) {
	_, err := BuildDocument(&Extraction{Text: "  \n "}, nil, "")
	if !apperr.IsParseFailure(err) {
		t.Fatalf("expected parse failure, got %v", err)
	}
}
