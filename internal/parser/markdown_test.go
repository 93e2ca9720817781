package parser

import (
	"strings"
	"testing"
)

func TestMarkdownParser_FlattensHeadingsInOrder(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content.

### Subsection A1

Subsection A1 content.

## Section B

Section B content.
`
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "doc" {
		t.Errorf("expected title %q, got %q", "doc", doc.Title)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}

	text := doc.Pages[0].Text
	wantOrder := []string{
		"# Title",
		"Intro text.",
		"## Section A",
		"Section A content.",
		"### Subsection A1",
		"## Section B",
	}
	last := -1
	for _, w := range wantOrder {
		idx := strings.Index(text, w)
		if idx < 0 {
			t.Fatalf("expected %q in output, got %q", w, text)
		}
		if idx < last {
			t.Errorf("expected %q after previous marker, got position %d", w, idx)
		}
		last = idx
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	input := `Just some plain text.

Another paragraph here.`

	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	text := doc.Pages[0].Text
	if !strings.Contains(text, "Just some plain text.") {
		t.Errorf("expected text to contain first paragraph, got %q", text)
	}
	if !strings.Contains(text, "Another paragraph here.") {
		t.Errorf("expected text to contain second paragraph, got %q", text)
	}
}

func TestMarkdownParser_CodeBlocksKept(t *testing.T) {
	input := "# API Reference\n\nSome intro.\n\n## Endpoints\n\nList of endpoints:\n\n```\nGET /api/users\nPOST /api/users\n```\n\nMore text after code.\n"

	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "api.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	text := doc.Pages[0].Text
	if !strings.Contains(text, "GET /api/users") {
		t.Errorf("expected code block content in text, got %q", text)
	}
	if !strings.Contains(text, "More text after code.") {
		t.Errorf("expected post-code text, got %q", text)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 0 {
		t.Errorf("expected 0 pages for empty input, got %d", len(doc.Pages))
	}
}

func TestMarkdownParser_TitleStripping(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"readme.md", "readme"},
		{"notes.markdown", "notes"},
		{"plain.md", "plain"},
	}
	p := &MarkdownParser{}
	for _, tt := range tests {
		doc, err := p.Parse(strings.NewReader("text"), tt.filename)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.filename, err)
		}
		if doc.Title != tt.want {
			t.Errorf("filename=%q: expected title %q, got %q", tt.filename, tt.want, doc.Title)
		}
	}
}
