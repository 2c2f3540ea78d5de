package port

import (
	"context"

	"kb/internal/domain"
)

// VectorStore is an externally-maintained searchable document index.
// Implementations own the connection lifecycle; all calls are
// read-or-write round trips to the index server.
type VectorStore interface {
	// Add stores documents, skipping IDs already present in the
	// collection. Returns the number of documents actually added.
	Add(ctx context.Context, docs []domain.Document) (int, error)

	// Upsert stores documents, overwriting any existing IDs.
	Upsert(ctx context.Context, docs []domain.Document) error

	// Query returns ranked fragments matching the query, best first.
	// Result count is bounded by spec.NResults.
	Query(ctx context.Context, spec QuerySpec) ([]domain.Fragment, error)

	// Delete removes documents by ID.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of documents in the collection.
	Count(ctx context.Context) (int, error)

	// Reset wipes the collection.
	Reset(ctx context.Context) error

	// Heartbeat checks connectivity to the index server.
	Heartbeat(ctx context.Context) error

	Close() error
}

// QuerySpec describes a single index lookup.
type QuerySpec struct {
	Text          string
	Embedding     []float32 // used instead of Text when set
	NResults      int
	Where         map[string]any // metadata filter
	WhereDocument map[string]any // document content filter
}
