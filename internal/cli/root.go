package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"kb/config"
	"kb/internal/adapter/chroma"
	"kb/internal/adapter/embedding"
	"kb/internal/port"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "kb",
	Short: "Knowledge-base toolkit - load documents and query them through a vector store",
	Long: `kb loads documents from the web, sitemaps, Discourse forums and GitHub
repositories, splits them into excerpts, and stores them in a Chroma
collection for retrieval.

Example usage:
  kb refresh                     # Load configured sources into the store
  kb query -q "what are blocks?" # Retrieve relevant excerpts
  kb health                      # Check the Chroma server`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./kb.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

// dialStore connects to the configured Chroma server, wiring in a
// client-side embedder when one is enabled.
func dialStore(ctx context.Context) (*chroma.Store, error) {
	embedder, err := buildEmbedder()
	if err != nil {
		return nil, err
	}

	return chroma.Dial(ctx, chroma.Config{
		Host:       cfg.Chroma.Host,
		Port:       cfg.Chroma.Port,
		Collection: cfg.Chroma.Collection,
		Timeout:    time.Duration(cfg.Chroma.TimeoutSeconds) * time.Second,
		Embedder:   embedder,
	})
}

func buildEmbedder() (port.Embedder, error) {
	if !cfg.Embedding.Enabled {
		return nil, nil
	}

	switch cfg.Embedding.Provider {
	case "openai":
		return embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model)
	case "jina":
		return embedding.NewJinaEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model)
	case "ollama":
		return embedding.NewOllamaEmbedder(cfg.Embedding.Model, cfg.Embedding.BaseURL)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return embedding.NewOpenAICompatibleEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.BaseURL)
	}
}

// queryTimeout returns a context bounded by the configured query
// timeout.
func queryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	seconds := cfg.Query.TimeoutSeconds
	if seconds <= 0 {
		seconds = 30
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}
