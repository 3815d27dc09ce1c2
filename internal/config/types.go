package config

import "time"

// ProviderType identifies an LLM or embedding backend.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
	// ProviderLocal is any OpenAI-compatible server (llama.cpp, vLLM,
	// LM Studio) reached through BaseURL.
	ProviderLocal ProviderType = "local"
	// ProviderNone disables query interpretation; every query gets the
	// default interpretation.
	ProviderNone ProviderType = "none"
)

// Config is the top-level regolith configuration, corresponding to .regolith.yml.
type Config struct {
	Provider          ProviderType    `yaml:"provider" koanf:"provider"`
	Model             string          `yaml:"model" koanf:"model"`
	BaseURL           string          `yaml:"base_url" koanf:"base_url"`
	EmbeddingProvider ProviderType    `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string          `yaml:"embedding_model" koanf:"embedding_model"`
	EmbeddingBaseURL  string          `yaml:"embedding_base_url" koanf:"embedding_base_url"`
	DataDir           string          `yaml:"data_dir" koanf:"data_dir"`
	Retrieval         RetrievalConfig `yaml:"retrieval" koanf:"retrieval"`
	Cache             CacheConfig     `yaml:"cache" koanf:"cache"`
	Server            ServerConfig    `yaml:"server" koanf:"server"`
	RateLimit         RateLimitConfig `yaml:"rate_limit" koanf:"rate_limit"`
	Log               LogConfig       `yaml:"log" koanf:"log"`
}

// RetrievalConfig tunes the query-time read path.
type RetrievalConfig struct {
	PrimaryK         int           `yaml:"primary_k" koanf:"primary_k"`
	ReferenceK       int           `yaml:"reference_k" koanf:"reference_k"`
	FallbackK        int           `yaml:"fallback_k" koanf:"fallback_k"`
	ResultLimit      int           `yaml:"result_limit" koanf:"result_limit"`
	LexicalEnabled   bool          `yaml:"lexical_enabled" koanf:"lexical_enabled"`
	LexicalLimit     int           `yaml:"lexical_limit" koanf:"lexical_limit"`
	InterpretTimeout time.Duration `yaml:"interpret_timeout" koanf:"interpret_timeout"`
	ReconcileTimeout time.Duration `yaml:"reconcile_timeout" koanf:"reconcile_timeout"`
	BatchWorkers     int           `yaml:"batch_workers" koanf:"batch_workers"`
	WatchSnapshot    bool          `yaml:"watch_snapshot" koanf:"watch_snapshot"`
}

// CacheConfig controls the on-disk embedding cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" koanf:"enabled"`
	Dir     string `yaml:"dir" koanf:"dir"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all" koanf:"allow_all"`
}

// RateLimitConfig bounds outgoing LLM requests.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" koanf:"requests_per_second"`
	Burst             int     `yaml:"burst" koanf:"burst"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Pretty bool   `yaml:"pretty" koanf:"pretty"`
}
