package excerpt

import (
	"strings"

	"kb/internal/domain"
)

// Excerpter splits documents into storable excerpts: chunked text with
// a metadata header, extracted keywords, and (for markdown sources) a
// minimap of the headers above each chunk.
type Excerpter struct {
	splitter *Splitter
	keywords int
	minimap  bool
}

func NewExcerpter(chunkTokens int, overlap, lastChunkThreshold float64, keywords int, minimap bool) *Excerpter {
	return &Excerpter{
		splitter: NewSplitter(chunkTokens, overlap, lastChunkThreshold),
		keywords: keywords,
		minimap:  minimap,
	}
}

// FromDocument returns excerpt documents derived from doc. Each excerpt
// carries the parent's metadata, its own keywords, and a token
// estimate; parent ID links it back to doc.
func (e *Excerpter) FromDocument(doc domain.Document) []domain.Document {
	chunks := e.splitter.Split(doc.Text)
	if len(chunks) == 0 {
		return nil
	}

	var minimapFn MinimapFn
	if e.minimap && isMarkdown(doc) {
		minimapFn = NewMinimap(doc.Text)
	}

	excerpts := make([]domain.Document, 0, len(chunks))
	for _, chunk := range chunks {
		keywords := Keywords(chunk.Text, e.keywords)

		location := ""
		if minimapFn != nil {
			location = minimapFn(chunk.Offset)
		}

		text := render(doc, chunk.Text, keywords, location)
		excerpts = append(excerpts, domain.Document{
			ID:       domain.NewDocumentID(),
			ParentID: doc.ID,
			Text:     text,
			Metadata: doc.Metadata,
			Keywords: keywords,
			Tokens:   EstimateTokens(text),
		})
	}
	return excerpts
}

// render produces the excerpt text stored in the index: a short header
// locating the excerpt, followed by the excerpt content.
func render(doc domain.Document, text string, keywords []string, location string) string {
	var b strings.Builder
	b.WriteString("The following is an excerpt from a document")

	if doc.Metadata.Title != "" || doc.Metadata.Link != "" {
		b.WriteString("\n\n# Document metadata\n")
		if doc.Metadata.Title != "" {
			b.WriteString("title: " + doc.Metadata.Title + "\n")
		}
		if doc.Metadata.Link != "" {
			b.WriteString("link: " + doc.Metadata.Link + "\n")
		}
	}
	if len(keywords) > 0 {
		b.WriteString("\n# Document keywords\n")
		b.WriteString(strings.Join(keywords, ", "))
		b.WriteString("\n")
	}
	if location != "" {
		b.WriteString("\n# Excerpt's location in document\n")
		b.WriteString(location)
		b.WriteString("\n")
	}
	b.WriteString("\n# Excerpt content: ")
	b.WriteString(text)
	return b.String()
}

func isMarkdown(doc domain.Document) bool {
	return strings.HasSuffix(doc.Metadata.Link, ".md") ||
		doc.Metadata.Extra["format"] == "markdown"
}
