package loader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDiscourseLoader(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/latest.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"topic_list": map[string]any{
				"topics": []map[string]any{
					{"id": 1, "slug": "about-blocks", "title": "About blocks", "category_id": 27, "tags": []string{"help"}},
					{"id": 2, "slug": "off-topic", "title": "Off topic", "category_id": 5, "tags": []string{"random"}},
				},
			},
		})
	})
	mux.HandleFunc("/t/1.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"post_stream": map[string]any{
				"posts": []map[string]any{
					{"id": 10, "topic_id": 1, "topic_slug": "about-blocks",
						"cooked": "<p>Blocks are <em>reusable</em> configuration.</p>", "created_at": "2023-07-01T00:00:00Z"},
				},
			},
		})
	})
	mux.HandleFunc("/t/2.json", func(w http.ResponseWriter, r *http.Request) {
		t.Error("filtered topic was fetched")
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	l := NewDiscourseLoader(srv.URL, DiscourseOptions{
		NTopics:    10,
		Categories: []int{26, 27},
	})

	docs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if !strings.Contains(docs[0].Text, "Blocks are reusable configuration") {
		t.Errorf("cooked HTML not stripped: %q", docs[0].Text)
	}
	if docs[0].Metadata.Link != srv.URL+"/t/about-blocks/1" {
		t.Errorf("unexpected link: %s", docs[0].Metadata.Link)
	}
}

func TestDiscourseKeepTopic(t *testing.T) {
	l := NewDiscourseLoader("https://forum.example.com", DiscourseOptions{
		Categories: []int{26, 27},
		Tags:       []string{"marvin"},
	})

	cases := []struct {
		name  string
		topic discourseTopic
		want  bool
	}{
		{"matching", discourseTopic{CategoryID: 27, Tags: []string{"marvin"}}, true},
		{"wrong category", discourseTopic{CategoryID: 5, Tags: []string{"marvin"}}, false},
		{"missing tag", discourseTopic{CategoryID: 27, Tags: []string{"other"}}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := l.keepTopic(c.topic); got != c.want {
				t.Errorf("keepTopic = %v, want %v", got, c.want)
			}
		})
	}
}
