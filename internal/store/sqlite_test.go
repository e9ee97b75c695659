package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "index.sqlite3")

	store, err := NewSQLiteStore(dbPath, Options{})
	require.NoError(t, err)
	defer store.Close()

	// Verify database file was created
	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestNewSQLiteStoreCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "dir", "index.sqlite3")

	store, err := NewSQLiteStore(dbPath, Options{})
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestPutAndGetAll(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	docs := []Document{
		{
			ID:          "doc-b",
			ContentHash: "xxh64:bbbb",
			Metadata:    map[string]any{"topic": "beta", "rank": float64(2)},
			Vector:      []float32{0, 1, 0, 0},
			UpdatedAt:   100,
		},
		{
			ID:          "doc-a",
			ContentHash: "xxh64:aaaa",
			Metadata:    map[string]any{"topic": "alpha"},
			Vector:      []float32{1, 0, 0, 0},
			UpdatedAt:   100,
		},
	}

	err := store.Put(docs)
	require.NoError(t, err)

	all, err := store.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 2)

	// Ordered by id
	assert.Equal(t, "doc-a", all[0].ID)
	assert.Equal(t, "doc-b", all[1].ID)

	assert.Equal(t, "xxh64:aaaa", all[0].ContentHash)
	assert.Equal(t, []float32{1, 0, 0, 0}, all[0].Vector)
	assert.Equal(t, map[string]any{"topic": "alpha"}, all[0].Metadata)
	assert.Equal(t, map[string]any{"topic": "beta", "rank": float64(2)}, all[1].Metadata)
	assert.Equal(t, float64(100), all[0].UpdatedAt)
}

func TestPutReplacesByID(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	err := store.Put([]Document{{
		ID:          "doc-1",
		ContentHash: "xxh64:v1",
		Vector:      []float32{1, 0},
		UpdatedAt:   10,
	}})
	require.NoError(t, err)

	// Same id again: last write wins, exactly one row
	err = store.Put([]Document{{
		ID:          "doc-1",
		ContentHash: "xxh64:v2",
		Vector:      []float32{0, 1},
		UpdatedAt:   20,
	}})
	require.NoError(t, err)

	all, err := store.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "xxh64:v2", all[0].ContentHash)
	assert.Equal(t, []float32{0, 1}, all[0].Vector)
	assert.Equal(t, float64(20), all[0].UpdatedAt)
}

func TestPutEmptyBatch(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	err := store.Put(nil)
	require.NoError(t, err)

	all, err := store.GetAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPutDimensionMismatch(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	err := store.WriteModelDescriptor("test-model", 4)
	require.NoError(t, err)

	err = store.Put([]Document{{
		ID:          "doc-1",
		ContentHash: "xxh64:aaaa",
		Vector:      []float32{1, 0, 0}, // 3 != 4
		UpdatedAt:   10,
	}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestGetHashes(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	err := store.Put([]Document{
		{ID: "a", ContentHash: "xxh64:ha", Vector: []float32{1}, UpdatedAt: 1},
		{ID: "b", ContentHash: "xxh64:hb", Vector: []float32{1}, UpdatedAt: 1},
	})
	require.NoError(t, err)

	hashes, err := store.GetHashes([]string{"a", "b", "missing"})
	require.NoError(t, err)

	assert.Len(t, hashes, 2)
	assert.Equal(t, "xxh64:ha", hashes["a"])
	assert.Equal(t, "xxh64:hb", hashes["b"])
	_, ok := hashes["missing"]
	assert.False(t, ok)
}

func TestGetHashesEmptyIDs(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	hashes, err := store.GetHashes(nil)
	require.NoError(t, err)
	assert.Empty(t, hashes)
}

func TestModelDescriptorLifecycle(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	// No descriptor yet
	desc, err := store.ReadModelDescriptor()
	require.NoError(t, err)
	assert.Nil(t, desc)

	// First write
	err = store.WriteModelDescriptor("model-a", 4)
	require.NoError(t, err)

	desc, err = store.ReadModelDescriptor()
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, "model-a", desc.Model)
	assert.Equal(t, 4, desc.Dimension)
}

func TestModelSwitchClearsDocuments(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	err := store.WriteModelDescriptor("model-a", 2)
	require.NoError(t, err)

	err = store.Put([]Document{
		{ID: "old", ContentHash: "xxh64:old", Vector: []float32{1, 0}, UpdatedAt: 1},
	})
	require.NoError(t, err)

	// Same model: documents survive
	err = store.WriteModelDescriptor("model-a", 2)
	require.NoError(t, err)

	all, err := store.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Different model: documents wiped
	err = store.WriteModelDescriptor("model-b", 2)
	require.NoError(t, err)

	all, err = store.GetAll()
	require.NoError(t, err)
	assert.Empty(t, all)

	desc, err := store.ReadModelDescriptor()
	require.NoError(t, err)
	assert.Equal(t, "model-b", desc.Model)
}

func TestVersion(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	// Empty store has version 0
	version, err := store.Version()
	require.NoError(t, err)
	assert.Equal(t, float64(0), version)

	err = store.Put([]Document{
		{ID: "a", ContentHash: "xxh64:a", Vector: []float32{1}, UpdatedAt: 10},
		{ID: "b", ContentHash: "xxh64:b", Vector: []float32{1}, UpdatedAt: 30},
		{ID: "c", ContentHash: "xxh64:c", Vector: []float32{1}, UpdatedAt: 20},
	})
	require.NoError(t, err)

	version, err = store.Version()
	require.NoError(t, err)
	assert.Equal(t, float64(30), version)
}

func TestStats(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	// Empty store
	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Documents)
	assert.Equal(t, float64(0), stats.LastUpdated)
	assert.Empty(t, stats.Model)

	err = store.WriteModelDescriptor("test-model", 2)
	require.NoError(t, err)
	err = store.Put([]Document{
		{ID: "a", ContentHash: "xxh64:a", Vector: []float32{1, 0}, UpdatedAt: 15},
		{ID: "b", ContentHash: "xxh64:b", Vector: []float32{0, 1}, UpdatedAt: 25},
	})
	require.NoError(t, err)

	stats, err = store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, float64(25), stats.LastUpdated)
	assert.Equal(t, "test-model", stats.Model)
	assert.Equal(t, 2, stats.Dimension)
}

func TestMetadataCorruptionRecovery(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	// Plant a malformed metadata row directly
	_, err := store.db.Exec(
		"INSERT INTO documents (id, content_hash, metadata, vector, updated_at) VALUES (?, ?, ?, ?, ?)",
		"broken", "xxh64:x", "{not json", serializeVector([]float32{1, 0}), 5.0,
	)
	require.NoError(t, err)

	all, err := store.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)

	// Recovered as a raw wrapper, not a read failure
	assert.Equal(t, map[string]any{"raw": "{not json"}, all[0].Metadata)
}

func TestSerializeVectorRoundTrip(t *testing.T) {
	vector := []float32{1.0, -2.5, 3.25, 0}
	blob := serializeVector(vector)

	// Each float32 is 4 bytes
	assert.Len(t, blob, 16)

	// Verify it's little-endian: 1.0f = 0x3f800000
	assert.Equal(t, byte(0x00), blob[0])
	assert.Equal(t, byte(0x00), blob[1])
	assert.Equal(t, byte(0x80), blob[2])
	assert.Equal(t, byte(0x3f), blob[3])

	assert.Equal(t, vector, deserializeVector(blob))
}

func TestSynchronousPragma(t *testing.T) {
	assert.Equal(t, "NORMAL", synchronousPragma(""))
	assert.Equal(t, "NORMAL", synchronousPragma("normal"))
	assert.Equal(t, "FULL", synchronousPragma("FULL"))
	assert.Equal(t, "OFF", synchronousPragma("off"))
	assert.Equal(t, "NORMAL", synchronousPragma("bogus"))
}

func TestUnmarshalMetadata(t *testing.T) {
	assert.Equal(t, map[string]any{}, unmarshalMetadata(""))
	assert.Equal(t, map[string]any{}, unmarshalMetadata("null"))
	assert.Equal(t, map[string]any{"k": "v"}, unmarshalMetadata(`{"k":"v"}`))
	assert.Equal(t, map[string]any{"raw": "[1,2]"}, unmarshalMetadata("[1,2]"))
}

// Helper function to create a test store
func setupTestStore(t *testing.T) *SQLiteStore {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "index.sqlite3")

	store, err := NewSQLiteStore(dbPath, Options{})
	require.NoError(t, err)

	return store
}
