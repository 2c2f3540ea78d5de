package loader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGitHubLoader(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("recursive") != "1" {
			t.Error("expected recursive tree listing")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"tree": []map[string]any{
				{"path": "README.md", "type": "blob", "size": 100},
				{"path": "docs/guide.md", "type": "blob", "size": 200},
				{"path": "tests/test_a.py", "type": "blob", "size": 50},
				{"path": "docs", "type": "tree", "size": 0},
			},
		})
	})
	mux.HandleFunc("/acme/widgets/main/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("contents of " + strings.TrimPrefix(r.URL.Path, "/acme/widgets/main/")))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	l := NewGitHubLoader("acme/widgets", GitHubOptions{
		Include: []string{"**/*.md", "*.md"},
		Exclude: []string{"tests/**"},
	})
	l.apiBase = srv.URL
	l.rawBase = srv.URL

	docs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	paths := map[string]bool{}
	for _, d := range docs {
		paths[d.Metadata.Extra["path"]] = true
		if d.Metadata.Source != "github" {
			t.Errorf("expected source=github, got %s", d.Metadata.Source)
		}
		if !strings.HasPrefix(d.Text, "contents of ") {
			t.Errorf("unexpected text: %q", d.Text)
		}
	}
	if !paths["README.md"] || !paths["docs/guide.md"] {
		t.Errorf("unexpected paths: %v", paths)
	}
}

func TestGitHubKeep(t *testing.T) {
	l := NewGitHubLoader("acme/widgets", GitHubOptions{
		Include: []string{"flows/**", "README.md"},
		Exclude: []string{"**/__init__.py"},
	})

	cases := []struct {
		path string
		want bool
	}{
		{"README.md", true},
		{"flows/daily.py", true},
		{"flows/pkg/__init__.py", false},
		{"src/main.py", false},
	}
	for _, c := range cases {
		if got := l.keep(c.path); got != c.want {
			t.Errorf("keep(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}
