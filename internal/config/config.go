// Package config handles configuration loading and validation for memdex.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// Config represents the complete memdex configuration.
type Config struct {
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Store      StoreConfig      `mapstructure:"store"`
	Upsert     UpsertConfig     `mapstructure:"upsert"`
	Search     SearchConfig     `mapstructure:"search"`
}

// EmbeddingsConfig configures the embedding service.
type EmbeddingsConfig struct {
	Provider string            `mapstructure:"provider"`
	Ollama   OllamaEmbedConfig `mapstructure:"ollama"`
	OpenAI   OpenAIEmbedConfig `mapstructure:"openai"`
}

// OllamaEmbedConfig configures Ollama embeddings.
type OllamaEmbedConfig struct {
	URL string `mapstructure:"url"`
}

// OpenAIEmbedConfig configures OpenAI embeddings.
type OpenAIEmbedConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Dimensions int    `mapstructure:"dimensions"`
}

// StoreConfig configures the SQLite index store.
type StoreConfig struct {
	// Synchronous is the SQLite synchronous pragma: normal, full, or off.
	// Relaxing it trades durability for upsert throughput.
	Synchronous string `mapstructure:"synchronous"`
}

// UpsertConfig configures the upsert engine.
type UpsertConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// SearchConfig configures search defaults.
type SearchConfig struct {
	Limit    int     `mapstructure:"limit"`
	MinScore float64 `mapstructure:"min_score"`
}

// Global configuration instance
var cfg *Config

// Get returns the current configuration.
func Get() *Config {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Embeddings: EmbeddingsConfig{
			Provider: DefaultEmbeddingProvider,
			Ollama: OllamaEmbedConfig{
				URL: DefaultOllamaURL,
			},
		},
		Store: StoreConfig{
			Synchronous: DefaultSynchronous,
		},
		Upsert: UpsertConfig{
			BatchSize: DefaultBatchSize,
		},
		Search: SearchConfig{
			Limit:    DefaultSearchLimit,
			MinScore: 0,
		},
	}
}

// Load reads configuration from file and environment variables.
func Load(configFile string) error {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(DefaultConfigDir())
		viper.AddConfigPath(".")
	}

	// Environment variables
	viper.SetEnvPrefix("MEMDEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug("No config file found, using defaults")
	} else {
		log.Debug("Loaded config from", "file", viper.ConfigFileUsed())
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}

	loadAPIKeysFromEnv()

	return nil
}

// setDefaults sets default values in viper.
func setDefaults() {
	viper.SetDefault("embeddings.provider", DefaultEmbeddingProvider)
	viper.SetDefault("embeddings.ollama.url", DefaultOllamaURL)

	viper.SetDefault("store.synchronous", DefaultSynchronous)

	viper.SetDefault("upsert.batch_size", DefaultBatchSize)

	viper.SetDefault("search.limit", DefaultSearchLimit)
	viper.SetDefault("search.min_score", 0)
}

// loadAPIKeysFromEnv loads API keys from environment variables if not already set.
func loadAPIKeysFromEnv() {
	if cfg.Embeddings.OpenAI.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Embeddings.OpenAI.APIKey = key
		}
	}
}

// ConfigFilePath returns the path of the loaded config file, or empty string if none.
func ConfigFilePath() string {
	return viper.ConfigFileUsed()
}
