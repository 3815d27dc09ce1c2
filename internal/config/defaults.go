package config

import (
	"path/filepath"
	"time"
)

// Preset describes the default models for a provider.
type Preset struct {
	Model          string
	EmbeddingModel string
	BaseURL        string
}

var presets = map[ProviderType]Preset{
	ProviderOpenAI: {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
	ProviderOllama: {Model: "llama3", EmbeddingModel: "all-minilm", BaseURL: "http://localhost:11434"},
	ProviderLocal:  {Model: "deepseek-chat", EmbeddingModel: "all-MiniLM-L6-v2", BaseURL: "http://localhost:8080/v1"},
}

// DefaultConfig returns a Config with sensible defaults. The retrieval
// constants are the ones the engine was designed around: 5 primary
// neighbours, a 10 document reference pool, 3 for the bare fallback.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o-mini",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		DataDir:           ".regolith",
		Retrieval: RetrievalConfig{
			PrimaryK:         5,
			ReferenceK:       10,
			FallbackK:        3,
			ResultLimit:      5,
			LexicalEnabled:   true,
			LexicalLimit:     3,
			InterpretTimeout: 15 * time.Second,
			ReconcileTimeout: 10 * time.Second,
			BatchWorkers:     4,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// GetPreset returns the preset for the given provider, falling back to
// the OpenAI preset.
func GetPreset(provider ProviderType) Preset {
	if p, ok := presets[provider]; ok {
		return p
	}
	return presets[ProviderOpenAI]
}

// CacheDir returns the embedding cache directory, defaulting to a
// subdirectory of DataDir.
func (c *Config) CacheDir() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	return filepath.Join(c.DataDir, "embedcache")
}

// DBPath returns the SQLite database path inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "regolith.db")
}

// VectorDir returns the directory holding the vector snapshot.
func (c *Config) VectorDir() string {
	return filepath.Join(c.DataDir, "vectordb")
}
