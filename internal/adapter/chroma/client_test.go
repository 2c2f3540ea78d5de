package chroma

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kb/internal/domain"
	"kb/internal/port"
)

// fakeServer implements just enough of the Chroma v1 REST API for the
// client to run against.
type fakeServer struct {
	docs      map[string]string
	collectID string
}

func newFakeServer() *fakeServer {
	return &fakeServer{docs: map[string]string{}, collectID: "coll-1"}
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int64{"nanosecond heartbeat": 1})
	})
	mux.HandleFunc("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode("0.4.24")
	})
	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": f.collectID, "name": "test"})
	})
	mux.HandleFunc("/api/v1/collections/"+f.collectID+"/add", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs       []string `json:"ids"`
			Documents []string `json:"documents"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		for _, id := range req.IDs {
			if _, exists := f.docs[id]; exists {
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{"error": "IDAlreadyExistsError: IDs already exist"})
				return
			}
		}
		for i, id := range req.IDs {
			f.docs[id] = req.Documents[i]
		}
		json.NewEncoder(w).Encode(true)
	})
	mux.HandleFunc("/api/v1/collections/"+f.collectID+"/query", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QueryTexts []string `json:"query_texts"`
			NResults   int      `json:"n_results"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		// Rank by naive term overlap; enough for ordering assertions.
		var ids, docs []string
		var dists []float64
		for id, text := range f.docs {
			if len(ids) >= req.NResults {
				break
			}
			overlap := 0
			for _, w := range strings.Fields(strings.ToLower(req.QueryTexts[0])) {
				if strings.Contains(strings.ToLower(text), strings.Trim(w, "?.,")) {
					overlap++
				}
			}
			if overlap > 0 {
				ids = append(ids, id)
				docs = append(docs, text)
				dists = append(dists, 1.0/float64(overlap))
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ids":       [][]string{ids},
			"documents": [][]string{docs},
			"distances": [][]float64{dists},
			"metadatas": [][]map[string]string{make([]map[string]string, len(ids))},
		})
	})
	mux.HandleFunc("/api/v1/collections/"+f.collectID+"/count", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(len(f.docs))
	})
	mux.HandleFunc("/api/v1/collections/"+f.collectID+"/delete", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs []string `json:"ids"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		for _, id := range req.IDs {
			delete(f.docs, id)
		}
		json.NewEncoder(w).Encode([]string{})
	})
	mux.HandleFunc("/api/v1/collections/test", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			f.docs = map[string]string{}
		}
		json.NewEncoder(w).Encode(true)
	})

	return mux
}

func dialFake(t *testing.T, f *fakeServer) (*Store, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	store, err := DialURL(context.Background(), srv.URL, "test", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return store, srv
}

func TestAddAndCount(t *testing.T) {
	store, _ := dialFake(t, newFakeServer())
	ctx := context.Background()

	added, err := store.Add(ctx, []domain.Document{
		{Text: "blocks are reusable configuration"},
		{Text: "flows orchestrate tasks"},
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if added != 2 {
		t.Errorf("expected 2 added, got %d", added)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count=2, got %d", count)
	}
}

func TestAddDuplicatesReportsZero(t *testing.T) {
	store, _ := dialFake(t, newFakeServer())
	ctx := context.Background()

	docs := []domain.Document{{Text: "the same document"}}
	if _, err := store.Add(ctx, docs); err != nil {
		t.Fatalf("first add failed: %v", err)
	}

	added, err := store.Add(ctx, docs)
	if err != nil {
		t.Fatalf("duplicate add should not error, got %v", err)
	}
	if added != 0 {
		t.Errorf("expected 0 added for duplicates, got %d", added)
	}
}

func TestQueryRanksAndBounds(t *testing.T) {
	store, _ := dialFake(t, newFakeServer())
	ctx := context.Background()

	_, err := store.Add(ctx, []domain.Document{
		{Text: "blocks are reusable units of configuration"},
		{Text: "a deployment schedules a flow"},
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	fragments, err := store.Query(ctx, port.QuerySpec{Text: "what are blocks?", NResults: 1})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(fragments) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(fragments))
	}
	if !strings.Contains(fragments[0].Text, "blocks") {
		t.Errorf("expected fragment mentioning blocks, got %q", fragments[0].Text)
	}
	if fragments[0].Score <= 0 {
		t.Errorf("expected positive score, got %f", fragments[0].Score)
	}
}

func TestQueryEmptyCollection(t *testing.T) {
	store, _ := dialFake(t, newFakeServer())

	fragments, err := store.Query(context.Background(), port.QuerySpec{Text: "anything", NResults: 3})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(fragments) != 0 {
		t.Errorf("expected empty result set, got %d fragments", len(fragments))
	}
}

func TestUnreachableServerIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(newFakeServer().handler())
	store, err := DialURL(context.Background(), srv.URL, "test", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	srv.Close()

	_, err = store.Query(context.Background(), port.QuerySpec{Text: "anything", NResults: 3})
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestHeartbeatAndVersion(t *testing.T) {
	store, _ := dialFake(t, newFakeServer())
	ctx := context.Background()

	if err := store.Heartbeat(ctx); err != nil {
		t.Errorf("heartbeat failed: %v", err)
	}
	version, err := store.Version(ctx)
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if version == "" {
		t.Error("expected non-empty version")
	}
}
