package usecase

import (
	"context"
	"strings"

	"kb/internal/domain"
	"kb/internal/port"
)

// searchAll queries the store once per query and merges the results in
// order, keeping each fragment's best score.
func searchAll(ctx context.Context, store port.VectorStore, queries []string, nResults int, where map[string]any) ([]domain.Fragment, error) {
	var merged []domain.Fragment
	for _, q := range queries {
		fragments, err := store.Query(ctx, port.QuerySpec{
			Text:     q,
			NResults: nResults,
			Where:    where,
		})
		if err != nil {
			return nil, err
		}
		merged = append(merged, fragments...)
	}
	return merged, nil
}

// dedupe removes fragments with duplicate text, keeping the first
// (highest-ranked) occurrence. Order is preserved.
func dedupe(fragments []domain.Fragment) []domain.Fragment {
	seen := make(map[string]struct{}, len(fragments))
	out := fragments[:0:0]
	for _, f := range fragments {
		key := f.ID
		if key == "" {
			key = f.Text
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}

// trimToBudget drops or truncates trailing fragments so the combined
// text stays within maxChars.
func trimToBudget(fragments []domain.Fragment, maxChars int) []domain.Fragment {
	if maxChars <= 0 {
		return fragments
	}

	used := 0
	for i, f := range fragments {
		remaining := maxChars - used
		if remaining <= 0 {
			return fragments[:i]
		}
		if len(f.Text) > remaining {
			truncated := f
			truncated.Text = strings.TrimSpace(f.Text[:remaining])
			if truncated.Text == "" {
				return fragments[:i]
			}
			fragments[i] = truncated
			return fragments[:i+1]
		}
		used += len(f.Text)
	}
	return fragments
}
