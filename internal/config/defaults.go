package config

import (
	"os"
	"path/filepath"
)

// Default configuration values
const (
	// Embedding defaults
	DefaultEmbeddingProvider = "ollama"
	DefaultOllamaURL         = "http://localhost:11434"
	DefaultOllamaEmbedModel  = "nomic-embed-text"
	DefaultOpenAIEmbedModel  = "text-embedding-3-small"

	// Upsert defaults
	DefaultBatchSize = 8
	MaxBatchSize     = 128

	// Search defaults
	DefaultSearchLimit = 8

	// Store defaults
	DefaultSynchronous = "normal"
	DefaultDBFileName  = "index.sqlite3"
)

// DefaultConfigDir returns the default configuration directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/memdex"
	}
	return filepath.Join(home, ".config", "memdex")
}
