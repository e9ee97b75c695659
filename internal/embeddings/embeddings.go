// Package embeddings provides text embedding services for the memory index.
package embeddings

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/benreceveur/memdex/internal/config"
)

// Provider represents an embedding provider type.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// Service defines the interface for embedding services.
type Service interface {
	// Embed generates an embedding for the given text (for documents).
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedQuery generates an embedding for a query (may use different task prefix).
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimensions for this model.
	Dimensions() int

	// Provider returns the provider name.
	Provider() Provider

	// ModelName returns the model name.
	ModelName() string
}

// Known model dimensions
var modelDimensions = map[string]int{
	// Ollama models
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,

	// OpenAI models
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// GetModelDimensions returns the known dimensions for a model, or 0 if unknown.
func GetModelDimensions(model string) int {
	return modelDimensions[model]
}

// NewServiceForModel creates an embedding service for the given model using
// the configured provider.
func NewServiceForModel(model string, cfg *config.Config) (Service, error) {
	switch cfg.Embeddings.Provider {
	case "ollama":
		return NewOllamaService(cfg.Embeddings.Ollama.URL, model)
	case "openai":
		return NewOpenAIService(
			cfg.Embeddings.OpenAI.APIKey,
			model,
			cfg.Embeddings.OpenAI.BaseURL,
			cfg.Embeddings.OpenAI.Dimensions,
		)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embeddings.Provider)
	}
}

// Registry lazily creates and caches one embedding service per model
// identifier for the process lifetime.
type Registry struct {
	cfg      *config.Config
	mu       sync.Mutex
	services map[string]Service
}

// NewRegistry creates a registry backed by the given configuration.
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{
		cfg:      cfg,
		services: make(map[string]Service),
	}
}

// ForModel returns the cached service for the model, creating it on first use.
func (r *Registry) ForModel(model string) (Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if svc, ok := r.services[model]; ok {
		return svc, nil
	}

	svc, err := NewServiceForModel(model, r.cfg)
	if err != nil {
		return nil, err
	}
	r.services[model] = svc
	return svc, nil
}

// Normalize scales a vector to unit L2 length in place and returns it.
// Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
