package indexer

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benreceveur/memdex/internal/embeddings"
	"github.com/benreceveur/memdex/internal/store"
)

// mockEmbedder implements embeddings.Service for testing.
type mockEmbedder struct {
	model      string
	dimensions int

	// vectors overrides the embedding for specific texts.
	vectors map[string][]float32

	batchCalls    int
	embeddedTexts []string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return m.Embed(ctx, text)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls++
	result := make([][]float32, len(texts))
	for i, text := range texts {
		m.embeddedTexts = append(m.embeddedTexts, text)
		if vec, ok := m.vectors[text]; ok {
			result[i] = append([]float32(nil), vec...)
			continue
		}
		vec := make([]float32, m.dimensions)
		vec[0] = 1
		result[i] = vec
	}
	return result, nil
}

func (m *mockEmbedder) Dimensions() int {
	return m.dimensions
}

func (m *mockEmbedder) Provider() embeddings.Provider {
	return embeddings.ProviderOllama
}

func (m *mockEmbedder) ModelName() string {
	return m.model
}

// Verify mockEmbedder implements embeddings.Service
var _ embeddings.Service = (*mockEmbedder)(nil)

// setupIndexer creates a store, cache, mock embedder, and indexer.
func setupIndexer(t *testing.T, model string) (*store.SQLiteStore, *store.Cache, *mockEmbedder, *Indexer) {
	dbPath := filepath.Join(t.TempDir(), "index.sqlite3")
	st, err := store.NewSQLiteStore(dbPath, store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cache := store.NewCache()
	emb := &mockEmbedder{model: model, dimensions: 4}
	return st, cache, emb, New(st, emb, cache)
}

func TestUpsertEmptyInput(t *testing.T) {
	st, _, emb, idx := setupIndexer(t, "test-model")

	updated, err := idx.Upsert(context.Background(), nil, UpsertOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, updated)
	assert.Equal(t, 0, emb.batchCalls, "provider must not be called for empty input")

	// Store untouched: no descriptor written
	desc, err := st.ReadModelDescriptor()
	require.NoError(t, err)
	assert.Nil(t, desc)
}

func TestUpsertIdempotent(t *testing.T) {
	_, _, emb, idx := setupIndexer(t, "test-model")

	docs := []DocumentInput{{ID: "note-1", Text: "remember the milk"}}

	updated, err := idx.Upsert(context.Background(), docs, UpsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	firstCalls := emb.batchCalls

	// Same id and text again: unchanged, skipped, no embedding call
	updated, err = idx.Upsert(context.Background(), docs, UpsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
	assert.Equal(t, firstCalls, emb.batchCalls)
}

func TestUpsertNoopLeavesCacheValid(t *testing.T) {
	st, cache, _, idx := setupIndexer(t, "test-model")

	docs := []DocumentInput{{ID: "note-1", Text: "remember the milk"}}
	_, err := idx.Upsert(context.Background(), docs, UpsertOptions{})
	require.NoError(t, err)

	entry, err := cache.Get(st)
	require.NoError(t, err)

	// No-op upsert: version unchanged, no rebuild needed
	updated, err := idx.Upsert(context.Background(), docs, UpsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, updated)

	again, err := cache.Get(st)
	require.NoError(t, err)
	assert.Same(t, entry, again)
}

func TestUpsertInvalidatesCache(t *testing.T) {
	st, cache, _, idx := setupIndexer(t, "test-model")

	_, err := idx.Upsert(context.Background(), []DocumentInput{{ID: "a", Text: "first"}}, UpsertOptions{})
	require.NoError(t, err)

	entry, err := cache.Get(st)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Len())

	_, err = idx.Upsert(context.Background(), []DocumentInput{{ID: "b", Text: "second"}}, UpsertOptions{})
	require.NoError(t, err)

	after, err := cache.Get(st)
	require.NoError(t, err)
	assert.NotSame(t, entry, after)
	assert.Equal(t, 2, after.Len())
}

func TestUpsertChangedTextReembeds(t *testing.T) {
	_, _, emb, idx := setupIndexer(t, "test-model")

	_, err := idx.Upsert(context.Background(), []DocumentInput{{ID: "note-1", Text: "v1"}}, UpsertOptions{})
	require.NoError(t, err)

	updated, err := idx.Upsert(context.Background(), []DocumentInput{{ID: "note-1", Text: "v2"}}, UpsertOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, updated)
	assert.Equal(t, []string{"v1", "v2"}, emb.embeddedTexts)
}

func TestUpsertPrecomputedHash(t *testing.T) {
	_, _, emb, idx := setupIndexer(t, "test-model")

	docs := []DocumentInput{{ID: "note-1", Text: "content", Hash: "caller-hash"}}

	updated, err := idx.Upsert(context.Background(), docs, UpsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	// Same caller-supplied hash: skipped even though text would hash differently
	docs[0].Text = "different content"
	updated, err = idx.Upsert(context.Background(), docs, UpsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
	assert.Equal(t, 1, emb.batchCalls)
}

func TestUpsertBatching(t *testing.T) {
	_, _, emb, idx := setupIndexer(t, "test-model")

	docs := []DocumentInput{
		{ID: "a", Text: "ta"},
		{ID: "b", Text: "tb"},
		{ID: "c", Text: "tc"},
		{ID: "d", Text: "td"},
		{ID: "e", Text: "te"},
	}

	updated, err := idx.Upsert(context.Background(), docs, UpsertOptions{BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, 5, updated)
	assert.Equal(t, 3, emb.batchCalls) // 2 + 2 + 1
}

func TestUpsertNormalizesVectors(t *testing.T) {
	st, _, emb, idx := setupIndexer(t, "test-model")
	emb.vectors = map[string][]float32{
		"skewed": {3, 4, 0, 0},
	}

	_, err := idx.Upsert(context.Background(), []DocumentInput{{ID: "a", Text: "skewed"}}, UpsertOptions{})
	require.NoError(t, err)

	all, err := st.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)

	var norm float64
	for _, x := range all[0].Vector {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
	assert.InDelta(t, 0.6, float64(all[0].Vector[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(all[0].Vector[1]), 1e-6)
}

func TestUpsertRecordsModelDescriptor(t *testing.T) {
	st, _, _, idx := setupIndexer(t, "test-model")

	_, err := idx.Upsert(context.Background(), []DocumentInput{{ID: "a", Text: "x"}}, UpsertOptions{})
	require.NoError(t, err)

	desc, err := st.ReadModelDescriptor()
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, "test-model", desc.Model)
	assert.Equal(t, 4, desc.Dimension)
}

func TestModelSwitchResetsStore(t *testing.T) {
	st, cache, _, idxA := setupIndexer(t, "model-a")

	_, err := idxA.Upsert(context.Background(), []DocumentInput{{ID: "d1", Text: "under model a"}}, UpsertOptions{})
	require.NoError(t, err)

	// Switch models against the same store
	embB := &mockEmbedder{model: "model-b", dimensions: 4}
	idxB := New(st, embB, cache)

	_, err = idxB.Upsert(context.Background(), []DocumentInput{{ID: "d2", Text: "under model b"}}, UpsertOptions{})
	require.NoError(t, err)

	all, err := st.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "d2", all[0].ID)

	stats, err := st.Stats()
	require.NoError(t, err)
	assert.Equal(t, "model-b", stats.Model)
}

func TestContentHashDeterminism(t *testing.T) {
	h1 := ContentHash("model-a", "some text")
	h2 := ContentHash("model-a", "some text")
	assert.Equal(t, h1, h2)

	// Changing either input changes the hash
	assert.NotEqual(t, h1, ContentHash("model-b", "some text"))
	assert.NotEqual(t, h1, ContentHash("model-a", "other text"))

	assert.Contains(t, h1, "xxh64:")
}

func TestClampBatchSize(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		expected  int
	}{
		{"zero uses default", 0, DefaultBatchSize},
		{"negative clamps to 1", -5, 1},
		{"too large clamps to max", 9999, MaxBatchSize},
		{"in range passes through", 64, 64},
		{"minimum passes through", 1, 1},
		{"maximum passes through", MaxBatchSize, MaxBatchSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, clampBatchSize(tt.requested))
		})
	}
}
