package domain

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Metadata describes where a document came from.
type Metadata struct {
	Title  string            `json:"title,omitempty"`
	Link   string            `json:"link,omitempty"`
	Source string            `json:"source,omitempty"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// Document is a source of information that is storable and searchable.
// Anything representable as text can be a document: web pages, forum
// posts, repository files, plain text.
type Document struct {
	ID        string
	ParentID  string
	Text      string
	Metadata  Metadata
	Keywords  []string
	Tokens    int
	Embedding []float32
}

// Hash returns a content hash of the document text, used as the
// vector-store ID so repeated loads upsert instead of duplicating.
func (d Document) Hash() string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(d.Text))
}

// NewDocumentID returns a fresh prefixed document ID.
func NewDocumentID() string {
	return "doc_" + uuid.NewString()
}

// Fragment is a single matched text excerpt returned from a query.
type Fragment struct {
	ID       string            `json:"id,omitempty"`
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ResultSet is an ordered list of fragments, ranked best-first.
type ResultSet struct {
	Query     string     `json:"query"`
	Fragments []Fragment `json:"fragments"`
}
