package store

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// CacheEntry is a materialized, search-optimized view of the whole store:
// row-ordered ids and metadata plus a row-aligned vector matrix, stamped
// with the store version observed at build time.
type CacheEntry struct {
	Version  float64
	IDs      []string
	Metadata []map[string]any
	Matrix   [][]float32
}

// Len returns the number of cached rows.
func (e *CacheEntry) Len() int {
	return len(e.IDs)
}

// Cache holds at most one CacheEntry for the store that owns it. It is
// derived and disposable: discarding it at any time only costs the next
// read a rebuild. The mutex makes read-and-maybe-rebuild a single
// critical section so concurrent callers cannot race a rebuild.
type Cache struct {
	mu    sync.Mutex
	entry *CacheEntry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns a valid cache entry for the store, rebuilding if the cached
// version no longer matches the store's current max updated_at.
func (c *Cache) Get(s Store) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	version, err := s.Version()
	if err != nil {
		return nil, fmt.Errorf("failed to read store version: %w", err)
	}

	if c.entry != nil && c.entry.Version == version {
		return c.entry, nil
	}

	docs, err := s.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild cache: %w", err)
	}

	entry := &CacheEntry{
		Version:  version,
		IDs:      make([]string, len(docs)),
		Metadata: make([]map[string]any, len(docs)),
		Matrix:   make([][]float32, len(docs)),
	}
	for i, doc := range docs {
		entry.IDs[i] = doc.ID
		entry.Metadata[i] = doc.Metadata
		entry.Matrix[i] = doc.Vector
	}

	log.Debug("Rebuilt index cache", "documents", len(docs), "version", version)

	c.entry = entry
	return entry, nil
}

// Invalidate discards the cached entry. The next Get pays a full rebuild.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = nil
}
