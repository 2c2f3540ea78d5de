package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"kb/config"
	"kb/internal/adapter/cache"
	"kb/internal/adapter/excerpt"
	"kb/internal/adapter/loader"
	"kb/internal/port"
	"kb/internal/usecase"
)

var (
	refreshWipe    bool
	refreshNoCache bool
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Load configured sources into the vector store",
	Long: `Run every configured loader, split the loaded documents into
excerpts, and add them to the collection.

Examples:
  kb refresh
  kb refresh --wipe      # reset the collection first
  kb refresh --no-cache  # ignore cached loader results`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().BoolVar(&refreshWipe, "wipe", false, "reset the collection before loading")
	refreshCmd.Flags().BoolVar(&refreshNoCache, "no-cache", false, "bypass the loader result cache")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	rootDir := GetRootDir()

	loaders := buildLoaders()
	if len(loaders) == 0 {
		return fmt.Errorf("no sources configured. Add urls, sitemaps, discourse or github entries to kb.yaml")
	}

	store, err := dialStore(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}
	defer store.Close()

	var loaderCache *cache.LoaderCache
	if cfg.Cache.Enabled && !refreshNoCache {
		if err := config.EnsureKBDir(rootDir); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
		ttl := time.Duration(cfg.Cache.LoaderTTLHrs) * time.Hour
		loaderCache, err = cache.NewLoaderCache(config.CacheDBPath(rootDir), ttl)
		if err != nil {
			return fmt.Errorf("failed to open loader cache: %w", err)
		}
		defer loaderCache.Close()
	}

	excerpter := excerpt.NewExcerpter(
		cfg.Excerpt.ChunkTokens,
		cfg.Excerpt.Overlap,
		cfg.Excerpt.LastChunkThreshold,
		cfg.Excerpt.Keywords,
		cfg.Excerpt.Minimap,
	)

	uc := usecase.NewRefreshUseCase(store, loaders, excerpter, loaderCache, true)
	result, err := uc.Refresh(cmd.Context(), refreshWipe)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	fmt.Printf("Loaded %d documents, added %d excerpts", result.DocumentsLoaded, result.ExcerptsAdded)
	if result.CacheHits > 0 {
		fmt.Printf(" (%d sources from cache)", result.CacheHits)
	}
	fmt.Println()

	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "warning: %s\n", e)
	}

	return nil
}

// buildLoaders assembles the loader list from the config. Each source
// entry becomes one loader.
func buildLoaders() []port.Loader {
	cfg := GetConfig()
	concurrency := cfg.Loaders.Concurrency

	var loaders []port.Loader

	if len(cfg.Loaders.URLs) > 0 {
		loaders = append(loaders, loader.NewURLLoader(cfg.Loaders.URLs, concurrency, true))
	}

	for _, s := range cfg.Loaders.Sitemaps {
		loaders = append(loaders, loader.NewSitemapLoader(s.URL, s.Include, s.Exclude, concurrency))
	}

	for _, d := range cfg.Loaders.Discourse {
		loaders = append(loaders, loader.NewDiscourseLoader(d.URL, loader.DiscourseOptions{
			APIKey:      os.Getenv(d.APIKeyEnv),
			APIUsername: d.APIUsername,
			NTopics:     d.NTopics,
			Categories:  d.Categories,
			Tags:        d.Tags,
		}))
	}

	for _, g := range cfg.Loaders.GitHub {
		loaders = append(loaders, loader.NewGitHubLoader(g.Repo, loader.GitHubOptions{
			Ref:         g.Ref,
			Include:     g.Include,
			Exclude:     g.Exclude,
			Token:       os.Getenv(g.TokenEnv),
			MaxFileSize: g.MaxFileSize,
			Concurrency: concurrency,
		}))
	}

	return loaders
}
