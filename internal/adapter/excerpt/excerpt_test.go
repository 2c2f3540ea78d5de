package excerpt

import (
	"strings"
	"testing"

	"kb/internal/domain"
)

func TestFromDocument(t *testing.T) {
	e := NewExcerpter(300, 0.1, 0.25, 10, true)

	doc := domain.Document{
		ID:   domain.NewDocumentID(),
		Text: "Blocks are reusable units of configuration used across the system.",
		Metadata: domain.Metadata{
			Title: "Concept docs",
			Link:  "https://docs.example.com/blocks",
		},
	}

	excerpts := e.FromDocument(doc)
	if len(excerpts) != 1 {
		t.Fatalf("expected 1 excerpt, got %d", len(excerpts))
	}

	ex := excerpts[0]
	if ex.ParentID != doc.ID {
		t.Errorf("expected parent ID %s, got %s", doc.ID, ex.ParentID)
	}
	if !strings.Contains(ex.Text, "Blocks are reusable") {
		t.Errorf("excerpt missing source text: %q", ex.Text)
	}
	if !strings.Contains(ex.Text, "Concept docs") {
		t.Errorf("excerpt missing metadata title: %q", ex.Text)
	}
	if len(ex.Keywords) == 0 {
		t.Error("expected extracted keywords")
	}
	if ex.Tokens <= 0 {
		t.Error("expected positive token estimate")
	}
}

func TestFromDocument_MarkdownMinimap(t *testing.T) {
	e := NewExcerpter(300, 0.1, 0.25, 5, true)

	doc := domain.Document{
		ID:       domain.NewDocumentID(),
		Text:     "# Reference\n\n## Blocks\n\nblocks store configuration for reuse",
		Metadata: domain.Metadata{Link: "https://docs.example.com/reference.md"},
	}

	excerpts := e.FromDocument(doc)
	if len(excerpts) != 1 {
		t.Fatalf("expected 1 excerpt, got %d", len(excerpts))
	}
	if !strings.Contains(excerpts[0].Text, "location in document") {
		t.Errorf("expected minimap section in markdown excerpt: %q", excerpts[0].Text)
	}
}

func TestFromDocument_Empty(t *testing.T) {
	e := NewExcerpter(300, 0.1, 0.25, 10, false)
	if got := e.FromDocument(domain.Document{Text: ""}); got != nil {
		t.Errorf("expected nil for empty document, got %v", got)
	}
}
