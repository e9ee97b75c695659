package store

// Store defines the interface for the durable document index.
type Store interface {
	// Put atomically replaces rows by id. Either the whole batch commits
	// or none of it is visible.
	Put(docs []Document) error

	// GetAll returns every document in insertion-stable (id) order,
	// used to rebuild the search cache.
	GetAll() ([]Document, error)

	// GetHashes returns the stored content hashes for the requested ids.
	// Ids with no row are absent from the result.
	GetHashes(ids []string) (map[string]string, error)

	// ReadModelDescriptor returns the active model descriptor, or nil if
	// no model has been recorded yet.
	ReadModelDescriptor() (*ModelDescriptor, error)

	// WriteModelDescriptor records the active model and dimension. If the
	// model differs from the recorded one, all document rows are deleted
	// first: vectors from a different model must not leak into rankings.
	WriteModelDescriptor(model string, dimension int) error

	// Version returns the store's current max updated_at, or 0 when empty.
	Version() (float64, error)

	// Stats returns a read-only diagnostic view.
	Stats() (*IndexStats, error)

	Close() error
}
