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

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"kb/internal/domain"
)

// DiscourseLoader pulls recent topics from a Discourse forum and turns
// each post into a document. Topics can be filtered by category and
// tag. Requests are rate limited to stay inside forum API budgets.
type DiscourseLoader struct {
	baseURL     string
	apiKey      string
	apiUsername string
	nTopics     int
	categories  map[int]struct{} // empty = all categories
	tags        []string         // empty = all tags
	client      *http.Client
	limiter     *rate.Limiter
}

// DiscourseOptions configures a DiscourseLoader.
type DiscourseOptions struct {
	APIKey      string
	APIUsername string
	NTopics     int
	Categories  []int
	Tags        []string
}

func NewDiscourseLoader(baseURL string, opts DiscourseOptions) *DiscourseLoader {
	if opts.NTopics <= 0 {
		opts.NTopics = 30
	}
	if opts.APIUsername == "" {
		opts.APIUsername = "system"
	}

	categories := make(map[int]struct{}, len(opts.Categories))
	for _, c := range opts.Categories {
		categories[c] = struct{}{}
	}

	return &DiscourseLoader{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      opts.APIKey,
		apiUsername: opts.APIUsername,
		nTopics:     opts.NTopics,
		categories:  categories,
		tags:        opts.Tags,
		client:      &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

func (l *DiscourseLoader) Name() string {
	return "discourse(" + l.baseURL + ")"
}

type discourseTopic struct {
	ID         int      `json:"id"`
	Slug       string   `json:"slug"`
	Title      string   `json:"title"`
	CategoryID int      `json:"category_id"`
	Tags       []string `json:"tags"`
}

type discourseLatest struct {
	TopicList struct {
		Topics []discourseTopic `json:"topics"`
	} `json:"topic_list"`
}

type discoursePost struct {
	ID        int    `json:"id"`
	TopicID   int    `json:"topic_id"`
	TopicSlug string `json:"topic_slug"`
	Cooked    string `json:"cooked"`
	CreatedAt string `json:"created_at"`
}

type discourseTopicDetail struct {
	PostStream struct {
		Posts []discoursePost `json:"posts"`
	} `json:"post_stream"`
}

func (l *DiscourseLoader) Load(ctx context.Context) ([]domain.Document, error) {
	topics, err := l.latestTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("discourse %s: %w", l.baseURL, err)
	}

	var docs []domain.Document
	for _, topic := range topics {
		if !l.keepTopic(topic) {
			continue
		}
		posts, err := l.topicPosts(ctx, topic.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("loader: skipping topic %d: %v", topic.ID, err)
			continue
		}
		for _, post := range posts {
			text := htmlToText(post.Cooked)
			if text == "" {
				continue
			}
			docs = append(docs, domain.Document{
				ID:   domain.NewDocumentID(),
				Text: text,
				Metadata: domain.Metadata{
					Title:  topic.Title,
					Link:   fmt.Sprintf("%s/t/%s/%d", l.baseURL, post.TopicSlug, post.TopicID),
					Source: "discourse",
					Extra: map[string]string{
						"created_at": post.CreatedAt,
					},
				},
			})
		}
	}
	return docs, nil
}

func (l *DiscourseLoader) keepTopic(t discourseTopic) bool {
	if len(l.categories) > 0 {
		if _, ok := l.categories[t.CategoryID]; !ok {
			return false
		}
	}
	if len(l.tags) == 0 {
		return true
	}
	for _, want := range l.tags {
		for _, have := range t.Tags {
			if want == have {
				return true
			}
		}
	}
	return false
}

func (l *DiscourseLoader) latestTopics(ctx context.Context) ([]discourseTopic, error) {
	var latest discourseLatest
	if err := l.getJSON(ctx, "/latest.json?order=created", &latest); err != nil {
		return nil, err
	}
	topics := latest.TopicList.Topics
	if len(topics) > l.nTopics {
		topics = topics[:l.nTopics]
	}
	return topics, nil
}

func (l *DiscourseLoader) topicPosts(ctx context.Context, topicID int) ([]discoursePost, error) {
	var detail discourseTopicDetail
	if err := l.getJSON(ctx, fmt.Sprintf("/t/%d.json", topicID), &detail); err != nil {
		return nil, err
	}
	return detail.PostStream.Posts, nil
}

func (l *DiscourseLoader) getJSON(ctx context.Context, path string, out any) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	if l.apiKey != "" {
		req.Header.Set("Api-Key", l.apiKey)
		req.Header.Set("Api-Username", l.apiUsername)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// htmlToText strips tags from cooked Discourse HTML.
func htmlToText(cooked string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cooked))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}
