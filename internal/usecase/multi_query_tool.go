package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"kb/internal/domain"
	"kb/internal/port"
)

// MultiQueryTool runs several sub-queries against the store in one
// call. The incoming query is split on newlines into sub-queries (the
// orchestrator sends one per line), capped at maxQueries; the character
// budget is divided evenly across them.
type MultiQueryTool struct {
	store       port.VectorStore
	description string
	nResults    int
	maxChars    int
	maxQueries  int
	where       map[string]any
}

// MultiQueryToolOptions configures a MultiQueryTool.
type MultiQueryToolOptions struct {
	Description string
	NResults    int
	MaxChars    int
	MaxQueries  int
	Where       map[string]any
}

func NewMultiQueryTool(store port.VectorStore, opts MultiQueryToolOptions) *MultiQueryTool {
	if opts.Description == "" {
		opts.Description = defaultDescription +
			" Accepts multiple queries, one per line."
	}
	if opts.NResults <= 0 {
		opts.NResults = 3
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 2000
	}
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = 3
	}
	return &MultiQueryTool{
		store:       store,
		description: opts.Description,
		nResults:    opts.NResults,
		maxChars:    opts.MaxChars,
		maxQueries:  opts.MaxQueries,
		where:       opts.Where,
	}
}

func (t *MultiQueryTool) Description() string {
	return t.description
}

// Run fans the sub-queries out concurrently. Any sub-query failure
// fails the whole call; no partial results are returned alongside an
// error.
func (t *MultiQueryTool) Run(ctx context.Context, query string) (domain.ResultSet, error) {
	queries := splitQueries(query)
	if len(queries) == 0 {
		return domain.ResultSet{}, fmt.Errorf("empty query: %w", domain.ErrInvalidInput)
	}
	if len(queries) > t.maxQueries {
		// keep excerpts from getting too short
		queries = queries[:t.maxQueries]
	}

	perQueryChars := t.maxChars / len(queries)

	var mu sync.Mutex
	merged := make([]domain.Fragment, 0, len(queries)*t.nResults)

	g, ctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		q := q
		g.Go(func() error {
			fragments, err := t.store.Query(ctx, port.QuerySpec{
				Text:     q,
				NResults: t.nResults,
				Where:    t.where,
			})
			if err != nil {
				return fmt.Errorf("query %q: %w", q, err)
			}
			fragments = trimToBudget(dedupe(fragments), perQueryChars)
			mu.Lock()
			merged = append(merged, fragments...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.ResultSet{}, err
	}

	merged = dedupe(merged)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	return domain.ResultSet{Query: query, Fragments: merged}, nil
}

func splitQueries(query string) []string {
	var queries []string
	for _, line := range strings.Split(query, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			queries = append(queries, line)
		}
	}
	return queries
}
