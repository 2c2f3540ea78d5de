package usecase

import (
	"context"
	"fmt"
	"strings"

	"kb/internal/domain"
	"kb/internal/port"
)

const defaultDescription = "Retrieve document excerpts from a knowledge-base given a query."

// QueryTool answers a free-text question with ranked excerpts from the
// vector store. It is stateless: every Run is a single read-only round
// trip, with no retry (retry policy belongs to the caller).
type QueryTool struct {
	store       port.VectorStore
	expander    *Expander
	description string
	nResults    int
	maxChars    int
	where       map[string]any
}

// QueryToolOptions configures a QueryTool. Zero values fall back to
// sensible defaults.
type QueryToolOptions struct {
	Description string
	NResults    int
	MaxChars    int
	Where       map[string]any // metadata filter applied to every query
	Expander    *Expander      // optional query expansion
}

func NewQueryTool(store port.VectorStore, opts QueryToolOptions) *QueryTool {
	if opts.Description == "" {
		opts.Description = defaultDescription
	}
	if opts.NResults <= 0 {
		opts.NResults = 3
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 2000
	}
	return &QueryTool{
		store:       store,
		expander:    opts.Expander,
		description: opts.Description,
		nResults:    opts.NResults,
		maxChars:    opts.MaxChars,
		where:       opts.Where,
	}
}

func (t *QueryTool) Description() string {
	return t.description
}

// Run searches the store for excerpts matching the query. Results are
// deduplicated, ranked best-first, bounded by the configured result
// count, and trimmed to the character budget.
func (t *QueryTool) Run(ctx context.Context, query string) (domain.ResultSet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.ResultSet{}, fmt.Errorf("empty query: %w", domain.ErrInvalidInput)
	}

	queries := []string{query}
	if t.expander != nil {
		queries = t.expander.Expand(ctx, query)
	}

	fragments, err := searchAll(ctx, t.store, queries, t.nResults, t.where)
	if err != nil {
		return domain.ResultSet{}, fmt.Errorf("query %q: %w", query, err)
	}

	fragments = dedupe(fragments)
	if len(fragments) > t.nResults {
		fragments = fragments[:t.nResults]
	}
	fragments = trimToBudget(fragments, t.maxChars)

	return domain.ResultSet{Query: query, Fragments: fragments}, nil
}
