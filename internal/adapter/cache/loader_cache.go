package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"kb/internal/domain"
)

var bucketLoaderResults = []byte("loader_results")

// LoaderCache persists loader results in a bolt database so a refresh
// re-run within the TTL skips the network. Keys are loader names; a
// loader whose configuration changes should change its name.
type LoaderCache struct {
	db  *bbolt.DB
	ttl time.Duration
}

type loaderCacheEntry struct {
	SavedAt   int64            `json:"saved_at"`
	Documents []cachedDocument `json:"documents"`
}

type cachedDocument struct {
	ID       string            `json:"id"`
	ParentID string            `json:"parent_id,omitempty"`
	Text     string            `json:"text"`
	Title    string            `json:"title,omitempty"`
	Link     string            `json:"link,omitempty"`
	Source   string            `json:"source,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
	Keywords []string          `json:"keywords,omitempty"`
	Tokens   int               `json:"tokens,omitempty"`
}

func NewLoaderCache(path string, ttl time.Duration) (*LoaderCache, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLoaderResults)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LoaderCache{db: db, ttl: ttl}, nil
}

// Get returns the cached documents for the loader, if present and
// fresh. Stale entries are removed on access.
func (c *LoaderCache) Get(loaderName string) ([]domain.Document, bool, error) {
	var entry loaderCacheEntry
	found := false

	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketLoaderResults).Get([]byte(loaderName))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache read for %s: %w", loaderName, err)
	}
	if !found {
		return nil, false, nil
	}

	if time.Since(time.Unix(entry.SavedAt, 0)) > c.ttl {
		err := c.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucketLoaderResults).Delete([]byte(loaderName))
		})
		if err != nil {
			return nil, false, fmt.Errorf("cache eviction for %s: %w", loaderName, err)
		}
		return nil, false, nil
	}

	docs := make([]domain.Document, len(entry.Documents))
	for i, d := range entry.Documents {
		docs[i] = domain.Document{
			ID:       d.ID,
			ParentID: d.ParentID,
			Text:     d.Text,
			Metadata: domain.Metadata{Title: d.Title, Link: d.Link, Source: d.Source, Extra: d.Extra},
			Keywords: d.Keywords,
			Tokens:   d.Tokens,
		}
	}
	return docs, true, nil
}

// Put stores the loader's documents, replacing any previous entry.
func (c *LoaderCache) Put(loaderName string, docs []domain.Document) error {
	entry := loaderCacheEntry{
		SavedAt:   time.Now().Unix(),
		Documents: make([]cachedDocument, len(docs)),
	}
	for i, d := range docs {
		entry.Documents[i] = cachedDocument{
			ID:       d.ID,
			ParentID: d.ParentID,
			Text:     d.Text,
			Title:    d.Metadata.Title,
			Link:     d.Metadata.Link,
			Source:   d.Metadata.Source,
			Extra:    d.Metadata.Extra,
			Keywords: d.Keywords,
			Tokens:   d.Tokens,
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache encode for %s: %w", loaderName, err)
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLoaderResults).Put([]byte(loaderName), data)
	})
	if err != nil {
		return fmt.Errorf("cache write for %s: %w", loaderName, err)
	}
	return nil
}

// Clear removes all cached loader results.
func (c *LoaderCache) Clear() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketLoaderResults); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketLoaderResults)
		return err
	})
}

func (c *LoaderCache) Close() error {
	return c.db.Close()
}
