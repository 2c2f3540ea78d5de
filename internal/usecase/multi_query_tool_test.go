package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"kb/internal/domain"
)

func TestMultiQueryTool_FansOutSubQueries(t *testing.T) {
	store := &fakeStore{texts: []string{
		"Blocks are reusable units of configuration.",
		"A deployment schedules a flow on infrastructure.",
	}}
	tool := NewMultiQueryTool(store, MultiQueryToolOptions{NResults: 2})

	result, err := tool.Run(context.Background(), "what are blocks?\nwhat is a deployment?")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(store.queries) != 2 {
		t.Errorf("expected 2 store queries, got %v", store.queries)
	}

	var sawBlocks, sawDeployment bool
	for _, f := range result.Fragments {
		if strings.Contains(f.Text, "Blocks") {
			sawBlocks = true
		}
		if strings.Contains(f.Text, "deployment") {
			sawDeployment = true
		}
	}
	if !sawBlocks || !sawDeployment {
		t.Errorf("expected fragments for both sub-queries, got %v", result.Fragments)
	}
}

func TestMultiQueryTool_CapsSubQueries(t *testing.T) {
	store := &fakeStore{texts: []string{"blocks flows deployments schedules workers"}}
	tool := NewMultiQueryTool(store, MultiQueryToolOptions{MaxQueries: 2})

	_, err := tool.Run(context.Background(), "blocks\nflows\ndeployments\nschedules")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(store.queries) != 2 {
		t.Errorf("expected sub-queries capped at 2, got %d", len(store.queries))
	}
}

func TestMultiQueryTool_DeduplicatesAcrossQueries(t *testing.T) {
	store := &fakeStore{texts: []string{"blocks and flows together"}}
	tool := NewMultiQueryTool(store, MultiQueryToolOptions{NResults: 3})

	result, err := tool.Run(context.Background(), "blocks\nflows")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.Fragments) != 1 {
		t.Errorf("expected one deduplicated fragment, got %d", len(result.Fragments))
	}
}

func TestMultiQueryTool_EmptyInputIsInvalid(t *testing.T) {
	tool := NewMultiQueryTool(&fakeStore{}, MultiQueryToolOptions{})

	_, err := tool.Run(context.Background(), " \n \n ")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestMultiQueryTool_FailureYieldsNoPartialResults(t *testing.T) {
	tool := NewMultiQueryTool(&fakeStore{failing: true}, MultiQueryToolOptions{})

	result, err := tool.Run(context.Background(), "blocks\nflows")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if len(result.Fragments) != 0 {
		t.Errorf("no partial results allowed, got %v", result.Fragments)
	}
}

func TestMultiQueryTool_RanksMergedResults(t *testing.T) {
	store := &fakeStore{texts: []string{
		"blocks",
		"blocks blocks configuration reusable",
	}}
	tool := NewMultiQueryTool(store, MultiQueryToolOptions{NResults: 3})

	result, err := tool.Run(context.Background(), "blocks reusable configuration")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.Fragments) < 2 {
		t.Fatalf("expected both fragments, got %d", len(result.Fragments))
	}
	if result.Fragments[0].Score < result.Fragments[1].Score {
		t.Error("expected fragments sorted best-first")
	}
}
