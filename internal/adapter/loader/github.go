package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"kb/internal/domain"
)

// GitHubLoader loads files from a GitHub repository through the REST
// API: the recursive tree listing selects paths by glob, then raw file
// contents are fetched for the survivors.
type GitHubLoader struct {
	repo        string // "owner/name"
	ref         string
	include     []string
	exclude     []string
	token       string
	maxFileSize int
	concurrency int
	apiBase     string
	rawBase     string
	client      *http.Client
	limiter     *rate.Limiter
}

// GitHubOptions configures a GitHubLoader.
type GitHubOptions struct {
	Ref         string
	Include     []string
	Exclude     []string
	Token       string
	MaxFileSize int
	Concurrency int
}

func NewGitHubLoader(repo string, opts GitHubOptions) *GitHubLoader {
	if opts.Ref == "" {
		opts.Ref = "main"
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 512 * 1024
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	return &GitHubLoader{
		repo:        repo,
		ref:         opts.Ref,
		include:     opts.Include,
		exclude:     opts.Exclude,
		token:       opts.Token,
		maxFileSize: opts.MaxFileSize,
		concurrency: opts.Concurrency,
		apiBase:     "https://api.github.com",
		rawBase:     "https://raw.githubusercontent.com",
		client:      &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
	}
}

func (l *GitHubLoader) Name() string {
	return "github(" + l.repo + "@" + l.ref + ")"
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int    `json:"size"`
}

type treeResponse struct {
	Tree      []treeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

func (l *GitHubLoader) Load(ctx context.Context) ([]domain.Document, error) {
	paths, err := l.listFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("github %s: %w", l.repo, err)
	}

	docs := make([]domain.Document, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			text, err := l.fetchRaw(ctx, path)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("loader: skipping %s/%s: %v", l.repo, path, err)
				return nil
			}
			docs[i] = domain.Document{
				ID:   domain.NewDocumentID(),
				Text: text,
				Metadata: domain.Metadata{
					Title:  path,
					Link:   fmt.Sprintf("https://github.com/%s/blob/%s/%s", l.repo, l.ref, path),
					Source: "github",
					Extra:  map[string]string{"repo": l.repo, "path": path},
				},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	final := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		if d.Text != "" {
			final = append(final, d)
		}
	}
	return final, nil
}

func (l *GitHubLoader) listFiles(ctx context.Context) ([]string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/repos/%s/git/trees/%s?recursive=1", l.apiBase, l.repo, l.ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", defaultUserAgent)
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tree listing status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var tree treeResponse
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse tree listing: %w", err)
	}
	if tree.Truncated {
		log.Printf("loader: tree listing for %s truncated by the API", l.repo)
	}

	var paths []string
	for _, entry := range tree.Tree {
		if entry.Type != "blob" || entry.Size > l.maxFileSize {
			continue
		}
		if l.keep(entry.Path) {
			paths = append(paths, entry.Path)
		}
	}
	return paths, nil
}

func (l *GitHubLoader) keep(path string) bool {
	for _, pattern := range l.exclude {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return false
		}
	}
	if len(l.include) == 0 {
		return true
	}
	for _, pattern := range l.include {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

func (l *GitHubLoader) fetchRaw(ctx context.Context, path string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/%s/%s", l.rawBase, l.repo, l.ref, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if !strings.ContainsAny(string(data), " \n") && len(data) > 0 {
		// Single opaque token, likely binary; not useful as text.
		return "", fmt.Errorf("not text content")
	}
	return string(data), nil
}
