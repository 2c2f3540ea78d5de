package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the knowledge-base toolkit.
type Config struct {
	Chroma    ChromaConfig    `yaml:"chroma"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Excerpt   ExcerptConfig   `yaml:"excerpt"`
	Query     QueryConfig     `yaml:"query"`
	Loaders   LoadersConfig   `yaml:"loaders"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ChromaConfig holds the connection settings for the Chroma server.
type ChromaConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Collection     string `yaml:"collection"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// EmbeddingConfig holds client-side embedding configuration. When
// disabled, the Chroma server embeds query text itself.
type EmbeddingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider"`    // "openai", "jina", "ollama", "mock"
	Model     string `yaml:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv string `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string `yaml:"base_url"`    // Override for OpenAI-compatible endpoints
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// ExcerptConfig controls how loaded documents are split before storage.
type ExcerptConfig struct {
	ChunkTokens        int     `yaml:"chunk_tokens"`
	Overlap            float64 `yaml:"overlap"`              // fraction of chunk_tokens, 0..1
	LastChunkThreshold float64 `yaml:"last_chunk_threshold"` // merge trailing chunk below this fraction
	Minimap            bool    `yaml:"minimap"`              // markdown header minimap in excerpts
	Keywords           int     `yaml:"keywords"`             // keywords extracted per excerpt
}

// QueryConfig controls the query tools.
type QueryConfig struct {
	NResults       int    `yaml:"n_results"`
	MaxCharacters  int    `yaml:"max_characters"`
	MaxQueries     int    `yaml:"max_queries"` // sub-query cap for the multi-query tool
	Expansion      bool   `yaml:"expansion"`   // keyword-based query expansion
	LLMExpansion   bool   `yaml:"llm_expansion"`
	LLMModel       string `yaml:"llm_model"`
	LLMAPIKeyEnv   string `yaml:"llm_api_key_env"`
	LLMBaseURL     string `yaml:"llm_base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// LoadersConfig lists the document sources for a refresh run.
type LoadersConfig struct {
	Concurrency int               `yaml:"concurrency"`
	URLs        []string          `yaml:"urls"`
	Sitemaps    []SitemapConfig   `yaml:"sitemaps"`
	Discourse   []DiscourseConfig `yaml:"discourse"`
	GitHub      []GitHubConfig    `yaml:"github"`
}

// SitemapConfig describes one sitemap crawl.
type SitemapConfig struct {
	URL     string   `yaml:"url"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// DiscourseConfig describes one Discourse forum source.
type DiscourseConfig struct {
	URL         string   `yaml:"url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	APIUsername string   `yaml:"api_username"`
	NTopics     int      `yaml:"n_topics"`
	Categories  []int    `yaml:"categories"` // allow-list, empty = all
	Tags        []string `yaml:"tags"`       // require any of these tags, empty = all
}

// GitHubConfig describes one GitHub repository source.
type GitHubConfig struct {
	Repo        string   `yaml:"repo"` // "owner/name"
	Ref         string   `yaml:"ref"`
	Include     []string `yaml:"include"` // doublestar globs
	Exclude     []string `yaml:"exclude"`
	TokenEnv    string   `yaml:"token_env"`
	MaxFileSize int      `yaml:"max_file_size"`
}

// CacheConfig controls the loader result cache and the query cache.
type CacheConfig struct {
	Enabled      bool `yaml:"enabled"`
	LoaderTTLHrs int  `yaml:"loader_ttl_hours"`
	QueryTTLSecs int  `yaml:"query_ttl_seconds"`
	QueryMaxSize int  `yaml:"query_max_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chroma: ChromaConfig{
			Host:           "localhost",
			Port:           8000,
			Collection:     "knowledge",
			TimeoutSeconds: 30,
		},
		Embedding: EmbeddingConfig{
			Enabled:   false,
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			BatchSize: 100,
		},
		Excerpt: ExcerptConfig{
			ChunkTokens:        300,
			Overlap:            0.1,
			LastChunkThreshold: 0.25,
			Minimap:            true,
			Keywords:           10,
		},
		Query: QueryConfig{
			NResults:       3,
			MaxCharacters:  2000,
			MaxQueries:     3,
			Expansion:      false,
			LLMExpansion:   false,
			LLMModel:       "gpt-4o-mini",
			LLMAPIKeyEnv:   "OPENAI_API_KEY",
			TimeoutSeconds: 30,
		},
		Loaders: LoadersConfig{
			Concurrency: 5,
		},
		Cache: CacheConfig{
			Enabled:      true,
			LoaderTTLHrs: 24,
			QueryTTLSecs: 300,
			QueryMaxSize: 100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for kb.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "kb.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".kb", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// CacheDBPath returns the path to the loader cache database.
func CacheDBPath(dir string) string {
	return filepath.Join(dir, ".kb", "cache.db")
}

// EnsureKBDir ensures the .kb directory exists.
func EnsureKBDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".kb"), 0755)
}
