// Package indexer provides change detection and the batch upsert engine
// for the memory index.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/benreceveur/memdex/internal/embeddings"
	"github.com/benreceveur/memdex/internal/store"
)

const (
	// DefaultBatchSize is used when the caller does not request one.
	DefaultBatchSize = 8

	// MaxBatchSize caps caller-requested batch sizes.
	MaxBatchSize = 128
)

// DocumentInput is one document submitted for upsert.
type DocumentInput struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Hash     string         `json:"hash,omitempty"` // optional precomputed content hash
	Metadata map[string]any `json:"metadata,omitempty"`
}

// UpsertOptions configures a single upsert invocation.
type UpsertOptions struct {
	// BatchSize is the number of texts per embedding call. Out-of-range
	// values are clamped into [1, MaxBatchSize] with a warning.
	BatchSize int
}

// Indexer orchestrates re-embedding of changed documents and their atomic
// persistence, then invalidates the search cache.
type Indexer struct {
	store    store.Store
	embedder embeddings.Service
	cache    *store.Cache
}

// New creates an Indexer writing through the given store and cache.
func New(st store.Store, emb embeddings.Service, cache *store.Cache) *Indexer {
	return &Indexer{
		store:    st,
		embedder: emb,
		cache:    cache,
	}
}

// Upsert re-embeds changed or new documents and persists them in one
// batch. Unchanged documents (stored hash equals the incoming hash) are
// skipped and never reach the embedding provider. It returns the number
// of documents actually updated.
func (idx *Indexer) Upsert(ctx context.Context, docs []DocumentInput, opts UpsertOptions) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	batchSize := clampBatchSize(opts.BatchSize)
	model := idx.embedder.ModelName()

	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	existing, err := idx.store.GetHashes(ids)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch existing hashes: %w", err)
	}

	// Change detection: skip documents whose stored hash matches.
	type pending struct {
		input DocumentInput
		hash  string
	}
	var toEmbed []pending
	for _, doc := range docs {
		hash := doc.Hash
		if hash == "" {
			hash = ContentHash(model, doc.Text)
		}
		if existing[doc.ID] == hash {
			log.Debug("Document unchanged, skipping", "id", doc.ID)
			continue
		}
		toEmbed = append(toEmbed, pending{input: doc, hash: hash})
	}

	if len(toEmbed) == 0 {
		return 0, nil
	}

	// Embed in batches. At most one embedding call per changed document.
	vectors := make([][]float32, 0, len(toEmbed))
	for i := 0; i < len(toEmbed); i += batchSize {
		end := i + batchSize
		if end > len(toEmbed) {
			end = len(toEmbed)
		}

		texts := make([]string, end-i)
		for j, p := range toEmbed[i:end] {
			texts[j] = p.input.Text
		}

		batch, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(batch) != len(texts) {
			return 0, fmt.Errorf("embedding count mismatch: %d != %d", len(batch), len(texts))
		}
		for _, vec := range batch {
			vectors = append(vectors, embeddings.Normalize(vec))
		}
	}

	// Record the model descriptor before writing rows. A model switch
	// clears the table here, so stale vectors never mix with new ones.
	dimension := len(vectors[0])
	if err := idx.store.WriteModelDescriptor(model, dimension); err != nil {
		return 0, fmt.Errorf("failed to write model descriptor: %w", err)
	}

	now := float64(time.Now().UnixNano()) / float64(time.Second)
	rows := make([]store.Document, len(toEmbed))
	for i, p := range toEmbed {
		rows[i] = store.Document{
			ID:          p.input.ID,
			ContentHash: p.hash,
			Metadata:    p.input.Metadata,
			Vector:      vectors[i],
			UpdatedAt:   now,
		}
	}

	if err := idx.store.Put(rows); err != nil {
		return 0, fmt.Errorf("failed to store documents: %w", err)
	}

	idx.cache.Invalidate()

	log.Debug("Upsert complete", "updated", len(rows), "skipped", len(docs)-len(rows))
	return len(rows), nil
}

// clampBatchSize validates a requested batch size, clamping it into
// [1, MaxBatchSize]. Out-of-range values warn but never fail the upsert.
func clampBatchSize(requested int) int {
	switch {
	case requested == 0:
		return DefaultBatchSize
	case requested < 1:
		log.Warn("Batch size below minimum, clamping", "requested", requested, "using", 1)
		return 1
	case requested > MaxBatchSize:
		log.Warn("Batch size above maximum, clamping", "requested", requested, "using", MaxBatchSize)
		return MaxBatchSize
	default:
		return requested
	}
}
