package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/benreceveur/memdex/internal/config"
	"github.com/benreceveur/memdex/internal/embeddings"
	"github.com/benreceveur/memdex/internal/indexer"
	"github.com/benreceveur/memdex/internal/search"
	"github.com/benreceveur/memdex/internal/store"
)

// handle bundles the durable store with the cache derived from it. The
// cache is owned by the handle, not shared globally, so two index paths
// in one process never alias each other's entries.
type handle struct {
	store store.Store
	cache *store.Cache
}

// Handler dispatches memory index operations. It keeps one handle per
// index path and one embedding service per model for the process lifetime.
type Handler struct {
	cfg      *config.Config
	registry *embeddings.Registry

	mu      sync.Mutex
	handles map[string]*handle
}

// NewHandler creates a Handler using the given configuration.
func NewHandler(cfg *config.Config) *Handler {
	return &Handler{
		cfg:      cfg,
		registry: embeddings.NewRegistry(cfg),
		handles:  make(map[string]*handle),
	}
}

// Close closes all open stores.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for path, hd := range h.handles {
		if err := hd.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(h.handles, path)
	}
	return firstErr
}

// openHandle returns the handle for an index path, opening the store on
// first use. Opening initializes the schema, so status is idempotent.
func (h *Handler) openHandle(indexPath string) (*handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if hd, ok := h.handles[indexPath]; ok {
		return hd, nil
	}

	dbPath := filepath.Join(indexPath, config.DefaultDBFileName)
	st, err := store.NewSQLiteStore(dbPath, store.Options{
		Synchronous: h.cfg.Store.Synchronous,
	})
	if err != nil {
		return nil, err
	}

	hd := &handle{store: st, cache: store.NewCache()}
	h.handles[indexPath] = hd
	return hd, nil
}

// Dispatch parses a raw JSON payload and routes it to the named command.
// All failures come back as structured error responses, never as panics.
func (h *Handler) Dispatch(ctx context.Context, command string, rawPayload []byte) any {
	if len(rawPayload) == 0 {
		rawPayload = []byte("{}")
	}

	var payload Payload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return Errorf(fmt.Sprintf("invalid JSON payload: %v", err))
	}

	log.Debug("Dispatching command", "command", command, "indexPath", payload.IndexPath)

	switch command {
	case "status":
		return h.Status(payload)
	case "upsert":
		return h.Upsert(ctx, payload)
	case "search":
		return h.Search(ctx, payload)
	case "stats":
		return h.Stats(payload)
	default:
		return Errorf(fmt.Sprintf("unknown command: %s", command))
	}
}

// Status ensures the store exists and is initialized. It is safe to call
// repeatedly and does not require the model to match the stored one.
func (h *Handler) Status(payload Payload) any {
	if payload.IndexPath == "" || payload.Model == "" {
		return Errorf("indexPath and model required")
	}

	if _, err := h.openHandle(payload.IndexPath); err != nil {
		return Errorf(err.Error())
	}

	return StatusResponse{
		Status:    "ok",
		IndexPath: payload.IndexPath,
		Model:     payload.Model,
	}
}

// Upsert re-embeds changed documents and reports how many were updated.
func (h *Handler) Upsert(ctx context.Context, payload Payload) any {
	if payload.IndexPath == "" || payload.Model == "" {
		return Errorf("indexPath and model required")
	}

	if len(payload.Documents) == 0 {
		return UpsertResponse{Status: "ok", Updated: 0}
	}

	embedder, err := h.registry.ForModel(payload.Model)
	if err != nil {
		return Errorf(err.Error())
	}

	hd, err := h.openHandle(payload.IndexPath)
	if err != nil {
		return Errorf(err.Error())
	}

	idx := indexer.New(hd.store, embedder, hd.cache)
	updated, err := idx.Upsert(ctx, payload.Documents, indexer.UpsertOptions{
		BatchSize: toInt(payload.BatchSize, "batchSize", h.cfg.Upsert.BatchSize),
	})
	if err != nil {
		return Errorf(err.Error())
	}

	return UpsertResponse{Status: "ok", Updated: updated}
}

// Search embeds the query and ranks the cached matrix.
func (h *Handler) Search(ctx context.Context, payload Payload) any {
	if payload.IndexPath == "" || payload.Model == "" || payload.Query == "" {
		return Errorf("indexPath, model, and query required")
	}

	embedder, err := h.registry.ForModel(payload.Model)
	if err != nil {
		return Errorf(err.Error())
	}

	hd, err := h.openHandle(payload.IndexPath)
	if err != nil {
		return Errorf(err.Error())
	}

	searcher := search.New(hd.store, embedder, hd.cache)
	results, err := searcher.Search(ctx, payload.Query, search.Options{
		Limit:    toInt(payload.Limit, "limit", h.cfg.Search.Limit),
		MinScore: float32(toFloat(payload.MinScore, "minScore", h.cfg.Search.MinScore)),
	})
	if err != nil {
		return Errorf(err.Error())
	}

	return SearchResponse{Status: "ok", Results: results}
}

// Stats returns a read-only diagnostic view. It never rebuilds the cache.
func (h *Handler) Stats(payload Payload) any {
	if payload.IndexPath == "" || payload.Model == "" {
		return Errorf("indexPath and model required")
	}

	hd, err := h.openHandle(payload.IndexPath)
	if err != nil {
		return Errorf(err.Error())
	}

	stats, err := hd.store.Stats()
	if err != nil {
		return Errorf(err.Error())
	}

	resp := StatsResponse{
		Status:    "ok",
		Documents: stats.Documents,
		Model:     stats.Model,
		Dimension: stats.Dimension,
		IndexPath: payload.IndexPath,
	}
	if stats.Documents > 0 {
		lastUpdated := stats.LastUpdated
		resp.LastUpdated = &lastUpdated
	}

	return resp
}
