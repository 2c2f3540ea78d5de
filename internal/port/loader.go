package port

import (
	"context"

	"kb/internal/domain"
)

// Loader pulls documents from some external source: web pages, forum
// threads, repository files.
type Loader interface {
	// Name identifies the loader for progress output and result
	// caching. Two loaders with the same name and configuration are
	// assumed to load the same documents.
	Name() string

	Load(ctx context.Context) ([]domain.Document, error)
}
