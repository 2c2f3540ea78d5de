package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"kb/internal/adapter/cache"
	"kb/internal/adapter/excerpt"
	"kb/internal/domain"
	"kb/internal/port"
)

type fakeLoader struct {
	name  string
	docs  []domain.Document
	err   error
	calls int
}

func (f *fakeLoader) Name() string { return f.name }

func (f *fakeLoader) Load(context.Context) ([]domain.Document, error) {
	f.calls++
	return f.docs, f.err
}

func testExcerpter() *excerpt.Excerpter {
	return excerpt.NewExcerpter(300, 0.1, 0.25, 5, false)
}

func TestRefresh_LoadsAndStores(t *testing.T) {
	store := &fakeStore{}
	loader := &fakeLoader{
		name: "fake",
		docs: []domain.Document{
			{ID: "doc_1", Text: "blocks are reusable configuration"},
			{ID: "doc_2", Text: "flows orchestrate tasks"},
		},
	}

	uc := NewRefreshUseCase(store, []port.Loader{loader}, testExcerpter(), nil, false)
	result, err := uc.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if result.DocumentsLoaded != 2 {
		t.Errorf("expected 2 documents loaded, got %d", result.DocumentsLoaded)
	}
	if result.ExcerptsAdded != 2 {
		t.Errorf("expected 2 excerpts added, got %d", result.ExcerptsAdded)
	}
	if len(store.texts) != 2 {
		t.Errorf("expected 2 stored texts, got %d", len(store.texts))
	}
}

func TestRefresh_WipeResetsCollection(t *testing.T) {
	store := &fakeStore{texts: []string{"stale excerpt"}}
	loader := &fakeLoader{
		name: "fake",
		docs: []domain.Document{{ID: "doc_1", Text: "fresh content here"}},
	}

	uc := NewRefreshUseCase(store, []port.Loader{loader}, testExcerpter(), nil, false)
	if _, err := uc.Refresh(context.Background(), true); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if len(store.texts) != 1 {
		t.Fatalf("expected only fresh excerpts after wipe, got %d", len(store.texts))
	}
}

func TestRefresh_LoaderFailureIsRecordedNotFatal(t *testing.T) {
	store := &fakeStore{}
	good := &fakeLoader{
		name: "good",
		docs: []domain.Document{{ID: "doc_1", Text: "usable content"}},
	}
	bad := &fakeLoader{name: "bad", err: fmt.Errorf("connection refused")}

	uc := NewRefreshUseCase(store, []port.Loader{bad, good}, testExcerpter(), nil, false)
	result, err := uc.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if len(result.Errors) != 1 {
		t.Errorf("expected 1 recorded error, got %v", result.Errors)
	}
	if result.ExcerptsAdded != 1 {
		t.Errorf("expected the good loader's excerpt stored, got %d", result.ExcerptsAdded)
	}
}

func TestRefresh_StoreFailureIsFatal(t *testing.T) {
	store := &fakeStore{failing: true}
	loader := &fakeLoader{
		name: "fake",
		docs: []domain.Document{{ID: "doc_1", Text: "content"}},
	}

	uc := NewRefreshUseCase(store, []port.Loader{loader}, testExcerpter(), nil, false)
	_, err := uc.Refresh(context.Background(), false)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestRefresh_NoLoadersIsInvalid(t *testing.T) {
	uc := NewRefreshUseCase(&fakeStore{}, nil, testExcerpter(), nil, false)
	_, err := uc.Refresh(context.Background(), false)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRefresh_SecondRunHitsLoaderCache(t *testing.T) {
	loaderCache, err := cache.NewLoaderCache(filepath.Join(t.TempDir(), "cache.db"), time.Hour)
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	defer loaderCache.Close()

	store := &fakeStore{}
	loader := &fakeLoader{
		name: "cached",
		docs: []domain.Document{{ID: "doc_1", Text: "cache me if you can"}},
	}

	uc := NewRefreshUseCase(store, []port.Loader{loader}, testExcerpter(), loaderCache, false)

	first, err := uc.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if first.CacheHits != 0 {
		t.Errorf("expected no cache hits on first run, got %d", first.CacheHits)
	}

	second, err := uc.Refresh(context.Background(), true)
	if err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}
	if second.CacheHits != 1 {
		t.Errorf("expected 1 cache hit on second run, got %d", second.CacheHits)
	}
	if loader.calls != 1 {
		t.Errorf("expected loader called once, got %d", loader.calls)
	}
}
