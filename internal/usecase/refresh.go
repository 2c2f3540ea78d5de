package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/schollz/progressbar/v3"

	"kb/internal/adapter/cache"
	"kb/internal/adapter/excerpt"
	"kb/internal/domain"
	"kb/internal/port"
)

// RefreshUseCase repopulates the vector store from the configured
// loaders: load documents, split them into excerpts, and add everything
// to the collection.
type RefreshUseCase struct {
	store     port.VectorStore
	loaders   []port.Loader
	excerpter *excerpt.Excerpter
	cache     *cache.LoaderCache // optional
	progress  bool
}

func NewRefreshUseCase(
	store port.VectorStore,
	loaders []port.Loader,
	excerpter *excerpt.Excerpter,
	loaderCache *cache.LoaderCache,
	progress bool,
) *RefreshUseCase {
	return &RefreshUseCase{
		store:     store,
		loaders:   loaders,
		excerpter: excerpter,
		cache:     loaderCache,
		progress:  progress,
	}
}

// RefreshResult summarizes one refresh run.
type RefreshResult struct {
	DocumentsLoaded int
	ExcerptsAdded   int
	CacheHits       int
	Errors          []string
}

// Refresh runs every loader and adds the resulting excerpts to the
// store. With wipe set, the collection is reset first. A loader failure
// is recorded and skipped; the refresh only fails when the store does.
func (u *RefreshUseCase) Refresh(ctx context.Context, wipe bool) (*RefreshResult, error) {
	if len(u.loaders) == 0 {
		return nil, fmt.Errorf("no loaders configured: %w", domain.ErrInvalidInput)
	}

	if wipe {
		if err := u.store.Reset(ctx); err != nil {
			return nil, fmt.Errorf("wipe collection: %w", err)
		}
	}

	var bar *progressbar.ProgressBar
	if u.progress {
		bar = progressbar.Default(int64(len(u.loaders)), "loading sources")
	}

	result := &RefreshResult{}
	var excerpts []domain.Document

	for _, loader := range u.loaders {
		docs, fromCache, err := u.loadOne(ctx, loader)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", loader.Name(), err))
			log.Printf("refresh: loader %s failed: %v", loader.Name(), err)
			if bar != nil {
				bar.Add(1)
			}
			continue
		}
		if fromCache {
			result.CacheHits++
		}

		result.DocumentsLoaded += len(docs)
		for _, doc := range docs {
			excerpts = append(excerpts, u.excerpter.FromDocument(doc)...)
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	if len(excerpts) == 0 {
		return result, nil
	}

	added, err := u.store.Add(ctx, excerpts)
	if err != nil {
		return nil, fmt.Errorf("store excerpts: %w", err)
	}
	result.ExcerptsAdded = added

	return result, nil
}

func (u *RefreshUseCase) loadOne(ctx context.Context, loader port.Loader) ([]domain.Document, bool, error) {
	if u.cache != nil {
		if docs, hit, err := u.cache.Get(loader.Name()); err == nil && hit {
			return docs, true, nil
		} else if err != nil {
			log.Printf("refresh: cache read failed for %s: %v", loader.Name(), err)
		}
	}

	docs, err := loader.Load(ctx)
	if err != nil {
		return nil, false, err
	}

	if u.cache != nil {
		if err := u.cache.Put(loader.Name(), docs); err != nil {
			log.Printf("refresh: cache write failed for %s: %v", loader.Name(), err)
		}
	}
	return docs, false, nil
}
