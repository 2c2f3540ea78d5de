package loader

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"

	"kb/internal/domain"
)

const defaultUserAgent = "kb-loader/1.0"

// URLLoader fetches a fixed set of URLs and turns each page into a
// document. HTML pages go through readability extraction; anything else
// is kept as-is.
type URLLoader struct {
	urls        []string
	client      *http.Client
	concurrency int
	extract     bool
}

// NewURLLoader creates a loader for the given URLs. When extract is
// set, HTML responses are reduced to their readable article text.
func NewURLLoader(urls []string, concurrency int, extract bool) *URLLoader {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &URLLoader{
		urls:        urls,
		client:      &http.Client{Timeout: 30 * time.Second},
		concurrency: concurrency,
		extract:     extract,
	}
}

func (l *URLLoader) Name() string {
	return fmt.Sprintf("url(%d urls)", len(l.urls))
}

// Load fetches all URLs with bounded concurrency. Pages that fail to
// load are logged and skipped; the loader only errors when the context
// is canceled.
func (l *URLLoader) Load(ctx context.Context) ([]domain.Document, error) {
	docs := make([]domain.Document, len(l.urls))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, u := range l.urls {
		i, u := i, u
		g.Go(func() error {
			doc, err := l.loadURL(ctx, u)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("loader: skipping %s: %v", u, err)
				return nil
			}
			docs[i] = doc
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

func (l *URLLoader) loadURL(ctx context.Context, pageURL string) (domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ensureHTTP(pageURL), nil)
	if err != nil {
		return domain.Document{}, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return domain.Document{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Document{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	title := ""
	text := ""
	contentType := resp.Header.Get("Content-Type")

	if l.extract && strings.Contains(contentType, "html") {
		parsed, err := url.Parse(pageURL)
		if err != nil {
			return domain.Document{}, err
		}
		article, err := readability.FromReader(resp.Body, parsed)
		if err != nil {
			return domain.Document{}, fmt.Errorf("readability extraction: %w", err)
		}
		title = article.Title
		text = article.TextContent
	} else {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return domain.Document{}, err
		}
		text = string(body)
	}

	if strings.TrimSpace(text) == "" {
		return domain.Document{}, fmt.Errorf("no content")
	}

	return domain.Document{
		ID:   domain.NewDocumentID(),
		Text: text,
		Metadata: domain.Metadata{
			Title:  title,
			Link:   pageURL,
			Source: "url",
		},
	}, nil
}

func ensureHTTP(u string) string {
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return "http://" + u
	}
	return u
}
