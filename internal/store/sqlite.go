package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
)

// Meta table keys for the model descriptor.
const (
	metaKeyModel     = "model"
	metaKeyDimension = "dimension"
)

// Options configures a SQLiteStore.
type Options struct {
	// Synchronous is the SQLite synchronous pragma: "normal", "full", or
	// "off". Relaxing it trades durability for write throughput.
	Synchronous string
}

// SQLiteStore implements the Store interface using SQLite in WAL mode.
// WAL gives one concurrent writer and many concurrent readers across
// processes; the mutex serializes access within this process.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (creating if necessary) the store at the given path.
func NewSQLiteStore(dbPath string, opts Options) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?_journal_mode=WAL&_synchronous=" + url.QueryEscape(synchronousPragma(opts.Synchronous))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Debug("Opened SQLite store", "path", dbPath)

	return &SQLiteStore{db: db}, nil
}

// synchronousPragma maps the configured durability level onto the pragma
// value, defaulting to NORMAL for unknown input.
func synchronousPragma(level string) string {
	switch strings.ToLower(level) {
	case "", "normal":
		return "NORMAL"
	case "full":
		return "FULL"
	case "off":
		return "OFF"
	default:
		log.Warn("Unknown synchronous level, using NORMAL", "level", level)
		return "NORMAL"
	}
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Put atomically replaces rows by id.
func (s *SQLiteStore) Put(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Stored vectors must all have the active dimension.
	dim, err := s.readDimension()
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if dim > 0 && len(doc.Vector) != dim {
			return fmt.Errorf("vector dimension mismatch for %q: %d != %d", doc.ID, len(doc.Vector), dim)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO documents (id, content_hash, metadata, vector, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		metadata, err := marshalMetadata(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to serialize metadata for %q: %w", doc.ID, err)
		}
		if _, err := stmt.Exec(doc.ID, doc.ContentHash, metadata, serializeVector(doc.Vector), doc.UpdatedAt); err != nil {
			return fmt.Errorf("failed to write document %q: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// GetAll returns every document ordered by id.
func (s *SQLiteStore) GetAll() ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, content_hash, metadata, vector, updated_at
		FROM documents ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var metadata sql.NullString
		var blob []byte

		if err := rows.Scan(&doc.ID, &doc.ContentHash, &metadata, &blob, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		doc.Metadata = unmarshalMetadata(metadata.String)
		doc.Vector = deserializeVector(blob)
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// GetHashes returns stored content hashes for the requested ids.
func (s *SQLiteStore) GetHashes(ids []string) (map[string]string, error) {
	hashes := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return hashes, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.Query(
		"SELECT id, content_hash FROM documents WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get hashes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan hash: %w", err)
		}
		hashes[id] = hash
	}

	return hashes, rows.Err()
}

// ReadModelDescriptor returns the active model descriptor, or nil if unset.
func (s *SQLiteStore) ReadModelDescriptor() (*ModelDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readDescriptor()
}

func (s *SQLiteStore) readDescriptor() (*ModelDescriptor, error) {
	var model string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", metaKeyModel).Scan(&model)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model descriptor: %w", err)
	}

	var dimension int
	var value string
	err = s.db.QueryRow("SELECT value FROM meta WHERE key = ?", metaKeyDimension).Scan(&value)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read dimension: %w", err)
	}
	if err == nil {
		dimension, _ = strconv.Atoi(value)
	}

	return &ModelDescriptor{Model: model, Dimension: dimension}, nil
}

func (s *SQLiteStore) readDimension() (int, error) {
	desc, err := s.readDescriptor()
	if err != nil {
		return 0, err
	}
	if desc == nil {
		return 0, nil
	}
	return desc.Dimension, nil
}

// WriteModelDescriptor records the active model and dimension. A model
// change deletes all document rows in the same transaction.
func (s *SQLiteStore) WriteModelDescriptor(model string, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readDescriptor()
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if existing != nil && existing.Model != model {
		log.Info("Embedding model changed, resetting index", "from", existing.Model, "to", model)
		if _, err := tx.Exec("DELETE FROM documents"); err != nil {
			return fmt.Errorf("failed to reset documents: %w", err)
		}
	}

	if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", metaKeyModel, model); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", metaKeyDimension, strconv.Itoa(dimension)); err != nil {
		return fmt.Errorf("failed to write dimension: %w", err)
	}

	return tx.Commit()
}

// Version returns the max updated_at across all documents, or 0 when empty.
func (s *SQLiteStore) Version() (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var version float64
	err := s.db.QueryRow("SELECT COALESCE(MAX(updated_at), 0) FROM documents").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read store version: %w", err)
	}
	return version, nil
}

// Stats returns a read-only diagnostic view of the store.
func (s *SQLiteStore) Stats() (*IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats IndexStats
	var lastUpdated sql.NullFloat64
	err := s.db.QueryRow("SELECT COUNT(*), MAX(updated_at) FROM documents").Scan(&stats.Documents, &lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	stats.LastUpdated = lastUpdated.Float64

	desc, err := s.readDescriptor()
	if err != nil {
		return nil, err
	}
	if desc != nil {
		stats.Model = desc.Model
		stats.Dimension = desc.Dimension
	}

	return &stats, nil
}

// marshalMetadata serializes metadata to JSON text, empty map for nil.
func marshalMetadata(metadata map[string]any) (string, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalMetadata parses persisted metadata. Malformed text is recovered
// as a best-effort raw wrapper instead of failing the read.
func unmarshalMetadata(text string) map[string]any {
	if text == "" {
		return map[string]any{}
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(text), &metadata); err != nil {
		return map[string]any{"raw": text}
	}
	if metadata == nil {
		return map[string]any{}
	}
	return metadata
}

// serializeVector converts a float32 slice to little-endian bytes.
func serializeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeVector converts little-endian bytes back to float32s.
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}
