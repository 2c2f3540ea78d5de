package loader

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"kb/internal/domain"
)

// SitemapLoader discovers page URLs from sitemap.xml files and loads
// them through a URLLoader. Include and exclude are substring filters
// on the discovered URLs; exclude wins.
type SitemapLoader struct {
	sitemapURL  string
	include     []string
	exclude     []string
	concurrency int
	client      *http.Client
}

func NewSitemapLoader(sitemapURL string, include, exclude []string, concurrency int) *SitemapLoader {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &SitemapLoader{
		sitemapURL:  sitemapURL,
		include:     include,
		exclude:     exclude,
		concurrency: concurrency,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (l *SitemapLoader) Name() string {
	return "sitemap(" + l.sitemapURL + ")"
}

func (l *SitemapLoader) Load(ctx context.Context) ([]domain.Document, error) {
	urls, err := l.discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("sitemap %s: %w", l.sitemapURL, err)
	}
	if len(urls) == 0 {
		return nil, nil
	}

	pages := NewURLLoader(urls, l.concurrency, true)
	pages.client = l.client
	docs, err := pages.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Metadata.Source = "sitemap"
	}
	return docs, nil
}

func (l *SitemapLoader) discover(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.sitemapURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}

	var urls []string
	doc.Find("loc").Each(func(_ int, s *goquery.Selection) {
		u := strings.TrimSpace(s.Text())
		if u != "" && l.keep(u) {
			urls = append(urls, u)
		}
	})
	return urls, nil
}

func (l *SitemapLoader) keep(u string) bool {
	for _, e := range l.exclude {
		if strings.Contains(u, e) {
			return false
		}
	}
	if len(l.include) == 0 {
		return true
	}
	for _, i := range l.include {
		if strings.Contains(u, i) {
			return true
		}
	}
	return false
}
