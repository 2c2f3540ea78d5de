package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kb/internal/domain"
	"kb/internal/port"
)

// Store is a Chroma collection reachable over the v1 REST API. It
// implements port.VectorStore. One Store is bound to one collection;
// the collection is created on dial if it does not exist.
type Store struct {
	baseURL  string
	client   *http.Client
	collName string
	collID   string
	embedder port.Embedder // optional, client-side embedding
}

// Config holds the connection settings for a Chroma server.
type Config struct {
	Host       string
	Port       int
	Collection string
	Timeout    time.Duration
	Embedder   port.Embedder
}

// Dial connects to a Chroma server and gets-or-creates the collection.
func Dial(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection name required: %w", domain.ErrInvalidInput)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	s := &Store{
		baseURL:  fmt.Sprintf("http://%s:%d/api/v1", cfg.Host, cfg.Port),
		client:   &http.Client{Timeout: cfg.Timeout},
		collName: cfg.Collection,
		embedder: cfg.Embedder,
	}

	if err := s.getOrCreateCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// DialURL is Dial with an explicit base URL, used in tests against
// httptest servers.
func DialURL(ctx context.Context, baseURL, collection string, embedder port.Embedder) (*Store, error) {
	s := &Store{
		baseURL:  strings.TrimSuffix(baseURL, "/") + "/api/v1",
		client:   &http.Client{Timeout: 30 * time.Second},
		collName: collection,
		embedder: embedder,
	}
	if err := s.getOrCreateCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

type collectionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Store) getOrCreateCollection(ctx context.Context) error {
	req := map[string]any{
		"name":          s.collName,
		"get_or_create": true,
	}

	var coll collectionResponse
	if err := s.post(ctx, "/collections", req, &coll); err != nil {
		return fmt.Errorf("get or create collection %q: %w", s.collName, err)
	}
	s.collID = coll.ID
	return nil
}

type addRequest struct {
	IDs        []string            `json:"ids"`
	Documents  []string            `json:"documents"`
	Metadatas  []map[string]string `json:"metadatas"`
	Embeddings [][]float32         `json:"embeddings,omitempty"`
}

func (s *Store) buildAddRequest(ctx context.Context, docs []domain.Document) (*addRequest, error) {
	req := &addRequest{
		IDs:       make([]string, len(docs)),
		Documents: make([]string, len(docs)),
		Metadatas: make([]map[string]string, len(docs)),
	}
	for i, d := range docs {
		req.IDs[i] = d.Hash()
		req.Documents[i] = d.Text
		req.Metadatas[i] = flattenMetadata(d)
	}

	if s.embedder != nil {
		texts := make([]string, len(docs))
		for i, d := range docs {
			texts[i] = d.Text
		}
		embeddings, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed documents: %w", err)
		}
		req.Embeddings = embeddings
	}

	return req, nil
}

// Add stores documents. The server rejects the whole batch on a
// duplicate ID; that case reports zero additions without error, so
// re-adding an already-loaded batch is a no-op.
func (s *Store) Add(ctx context.Context, docs []domain.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	req, err := s.buildAddRequest(ctx, docs)
	if err != nil {
		return 0, err
	}

	err = s.post(ctx, "/collections/"+s.collID+"/add", req, nil)
	if err != nil {
		if isDuplicateIDError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("add documents: %w", err)
	}
	return len(docs), nil
}

// Upsert stores documents, overwriting any existing IDs.
func (s *Store) Upsert(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	req, err := s.buildAddRequest(ctx, docs)
	if err != nil {
		return err
	}

	if err := s.post(ctx, "/collections/"+s.collID+"/upsert", req, nil); err != nil {
		return fmt.Errorf("upsert documents: %w", err)
	}
	return nil
}

type queryRequest struct {
	QueryTexts      []string       `json:"query_texts,omitempty"`
	QueryEmbeddings [][]float32    `json:"query_embeddings,omitempty"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	WhereDocument   map[string]any `json:"where_document,omitempty"`
	Include         []string       `json:"include"`
}

type queryResponse struct {
	IDs       [][]string            `json:"ids"`
	Documents [][]string            `json:"documents"`
	Distances [][]float64           `json:"distances"`
	Metadatas [][]map[string]string `json:"metadatas"`
}

// Query returns ranked fragments for the query spec, best first.
func (s *Store) Query(ctx context.Context, spec port.QuerySpec) ([]domain.Fragment, error) {
	if spec.NResults <= 0 {
		spec.NResults = 10
	}

	req := queryRequest{
		NResults:      spec.NResults,
		Where:         spec.Where,
		WhereDocument: spec.WhereDocument,
		Include:       []string{"documents", "distances", "metadatas"},
	}

	switch {
	case spec.Embedding != nil:
		req.QueryEmbeddings = [][]float32{spec.Embedding}
	case s.embedder != nil:
		embeddings, err := s.embedder.Embed(ctx, []string{spec.Text})
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		req.QueryEmbeddings = embeddings
	default:
		req.QueryTexts = []string{spec.Text}
	}

	var resp queryResponse
	if err := s.post(ctx, "/collections/"+s.collID+"/query", req, &resp); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	if len(resp.Documents) == 0 {
		return nil, nil
	}

	docs := resp.Documents[0]
	fragments := make([]domain.Fragment, 0, len(docs))
	for i, text := range docs {
		f := domain.Fragment{Text: text}
		if len(resp.IDs) > 0 && i < len(resp.IDs[0]) {
			f.ID = resp.IDs[0][i]
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			// Chroma returns distances; smaller is closer.
			f.Score = 1.0 / (1.0 + resp.Distances[0][i])
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			f.Metadata = resp.Metadatas[0][i]
		}
		fragments = append(fragments, f)
	}
	return fragments, nil
}

// Delete removes documents by ID.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	req := map[string]any{"ids": ids}
	if err := s.post(ctx, "/collections/"+s.collID+"/delete", req, nil); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// Count returns the number of documents in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.get(ctx, "/collections/"+s.collID+"/count", &count); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

// Reset wipes the collection by deleting and recreating it.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.delete(ctx, "/collections/"+s.collName); err != nil {
		return fmt.Errorf("reset collection: %w", err)
	}
	return s.getOrCreateCollection(ctx)
}

// Heartbeat checks connectivity to the Chroma server.
func (s *Store) Heartbeat(ctx context.Context) error {
	var beat map[string]any
	if err := s.get(ctx, "/heartbeat", &beat); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

// Version returns the Chroma server version string.
func (s *Store) Version(ctx context.Context) (string, error) {
	var version string
	if err := s.get(ctx, "/version", &version); err != nil {
		return "", fmt.Errorf("version: %w", err)
	}
	return version, nil
}

// Collection returns the bound collection name.
func (s *Store) Collection() string {
	return s.collName
}

func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Store) post(ctx context.Context, path string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return s.do(ctx, http.MethodPost, path, bytes.NewReader(jsonData), out)
}

func (s *Store) get(ctx context.Context, path string, out any) error {
	return s.do(ctx, http.MethodGet, path, nil, out)
}

func (s *Store) delete(ctx context.Context, path string) error {
	return s.do(ctx, http.MethodDelete, path, nil, nil)
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Store) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && (apiErr.Error != "" || apiErr.Message != "") {
			msg := apiErr.Message
			if msg == "" {
				msg = apiErr.Error
			}
			return fmt.Errorf("server returned status %d: %s", resp.StatusCode, msg)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response (body: %s): %w", truncate(string(data), 200), err)
		}
	}
	return nil
}

func isDuplicateIDError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exist")
}

func flattenMetadata(d domain.Document) map[string]string {
	m := map[string]string{}
	if d.Metadata.Title != "" {
		m["title"] = d.Metadata.Title
	}
	if d.Metadata.Link != "" {
		m["link"] = d.Metadata.Link
	}
	if d.Metadata.Source != "" {
		m["source"] = d.Metadata.Source
	}
	for k, v := range d.Metadata.Extra {
		m[k] = v
	}
	if d.ParentID != "" {
		m["parent_document_id"] = d.ParentID
	}
	if len(d.Keywords) > 0 {
		m["keywords"] = strings.Join(d.Keywords, ", ")
	}
	return m
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
