package usecase

import (
	"context"
	"strings"

	"kb/internal/port"
)

// Expander turns a single query into a handful of related queries to
// widen recall. Expansion is best-effort: any failure degrades to the
// original query alone, never to an error.
type Expander struct {
	llm port.LLM // optional
	max int
}

func NewExpander(llm port.LLM, max int) *Expander {
	if max <= 0 {
		max = 4
	}
	return &Expander{llm: llm, max: max}
}

const expandSystemPrompt = `You are a search query expansion assistant for a documentation search system.
Given a user's question, generate 2-3 alternative queries that might surface relevant documents.
Focus on synonyms, related terms, and different phrasings of the same concept.
Output ONLY the alternative queries, one per line. No explanations or numbering.`

// Expand returns the original query first, followed by alternatives.
func (e *Expander) Expand(ctx context.Context, query string) []string {
	if e.llm == nil {
		return e.expandWithKeywords(query)
	}

	response, err := e.llm.GenerateWithSystem(ctx, expandSystemPrompt,
		"Original query: "+query+"\n\nGenerate alternative search queries:")
	if err != nil {
		return []string{query}
	}

	queries := []string{query}
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-") || strings.Contains(line, ":") {
			continue
		}
		line = strings.TrimLeft(line, "0123456789. ")
		if line != "" && line != query {
			queries = append(queries, line)
		}
	}

	if len(queries) > e.max {
		queries = queries[:e.max]
	}
	return queries
}

// expandWithKeywords substitutes common documentation shorthand for its
// long forms without calling an LLM.
func (e *Expander) expandWithKeywords(query string) []string {
	expansions := map[string][]string{
		"auth":   {"authentication", "login"},
		"config": {"configuration", "settings"},
		"db":     {"database", "storage"},
		"deploy": {"deployment", "release"},
		"docs":   {"documentation", "reference"},
		"env":    {"environment variable", "environment"},
		"err":    {"error", "failure"},
		"k8s":    {"kubernetes", "cluster"},
		"repo":   {"repository", "project"},
		"sched":  {"schedule", "cron"},
	}

	queries := []string{query}
	lower := strings.ToLower(query)
	for abbrev, synonyms := range expansions {
		if !containsWord(lower, abbrev) {
			continue
		}
		for _, syn := range synonyms {
			expanded := strings.ReplaceAll(lower, abbrev, syn)
			if expanded != lower {
				queries = append(queries, expanded)
			}
		}
	}

	if len(queries) > e.max {
		queries = queries[:e.max]
	}
	return queries
}

func containsWord(text, word string) bool {
	for _, w := range strings.Fields(text) {
		if strings.Trim(w, "?.,!:;") == word {
			return true
		}
	}
	return false
}
