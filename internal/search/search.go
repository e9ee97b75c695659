// Package search provides brute-force cosine ranking over the cached
// vector matrix.
package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/benreceveur/memdex/internal/embeddings"
	"github.com/benreceveur/memdex/internal/store"
)

// DefaultLimit is the result count used when the caller does not set one.
const DefaultLimit = 8

// Result is one ranked document.
type Result struct {
	ID       string         `json:"id"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Options configures the search.
type Options struct {
	// Limit is the maximum number of results to return.
	Limit int

	// MinScore filters results below this similarity score.
	MinScore float32
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Limit:    DefaultLimit,
		MinScore: 0,
	}
}

// Searcher ranks documents against a query embedding. All stored vectors
// and the query vector are unit length, so dot product equals cosine
// similarity.
type Searcher struct {
	store    store.Store
	embedder embeddings.Service
	cache    *store.Cache
}

// New creates a Searcher reading through the given store and cache.
func New(st store.Store, emb embeddings.Service, cache *store.Cache) *Searcher {
	return &Searcher{
		store:    st,
		embedder: emb,
		cache:    cache,
	}
}

// Search embeds the query and ranks every cached row by descending dot
// product. Ties keep the order rows were materialized in. An empty store
// returns an empty result list, not an error.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	entry, err := s.cache.Get(s.store)
	if err != nil {
		return nil, err
	}
	if entry.Len() == 0 {
		return []Result{}, nil
	}

	log.Debug("Generating query embedding", "query", truncate(query, 50))
	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVec = embeddings.Normalize(queryVec)

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	results := make([]Result, 0, entry.Len())
	for i, row := range entry.Matrix {
		score := dot(queryVec, row)
		if score < opts.MinScore {
			continue
		}
		results = append(results, Result{
			ID:       entry.IDs[i],
			Score:    score,
			Metadata: entry.Metadata[i],
		})
	}

	// Stable: equal scores keep cache materialization order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}

	log.Debug("Search complete", "results", len(results))
	return results, nil
}

// dot computes the float32 dot product of two vectors. Rows with a
// different length than the query score zero over the shared prefix only.
func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// truncate shortens a string for display.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
