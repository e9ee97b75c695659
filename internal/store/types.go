// Package store provides the durable document index backed by SQLite and
// the in-process search cache derived from it.
package store

// Document is a stored memory entry: one row in the documents table.
type Document struct {
	ID          string         `json:"id"`
	ContentHash string         `json:"content_hash"`
	Metadata    map[string]any `json:"metadata"`
	Vector      []float32      `json:"vector"`
	UpdatedAt   float64        `json:"updated_at"` // unix seconds
}

// ModelDescriptor records the single active embedding model and its
// vector dimension. At most one model is active per store.
type ModelDescriptor struct {
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// IndexStats is a read-only diagnostic view of the store.
type IndexStats struct {
	Documents   int     `json:"documents"`
	LastUpdated float64 `json:"last_updated"` // 0 when the store is empty
	Model       string  `json:"model"`
	Dimension   int     `json:"dimension"`
}
