package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/regolith-ai/regolith/internal/config"
	"github.com/regolith-ai/regolith/internal/db"
	"github.com/regolith-ai/regolith/internal/embeddings"
	"github.com/regolith-ai/regolith/internal/history"
	"github.com/regolith-ai/regolith/internal/interpret"
	"github.com/regolith-ai/regolith/internal/lexical"
	"github.com/regolith-ai/regolith/internal/llm"
	"github.com/regolith-ai/regolith/internal/logger"
	"github.com/regolith-ai/regolith/internal/metrics"
	"github.com/regolith-ai/regolith/internal/pipeline"
	"github.com/regolith-ai/regolith/internal/retrieval"
	"github.com/regolith-ai/regolith/internal/vectordb"
)

// app holds everything a command needs, built from config.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	db          *db.DB
	cache       *embeddings.CachedEmbedder
	store       *vectordb.ChromemStore
	lexical     *lexical.Index
	history     *history.Store
	interpreter *interpret.Interpreter
	engine      *retrieval.Engine
	pipeline    *pipeline.Pipeline
}

// openApp loads config and builds the indexes, the interpreter and the
// retrieval pipeline. The vector snapshot is loaded when one exists.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Pretty: cfg.Log.Pretty})

	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	if cfg.Cache.Enabled {
		a.cache, err = embeddings.OpenCache(cfg.CacheDir(), embedder, logger.Component(log, "embedcache"))
		if err != nil {
			return nil, err
		}
		embedder = a.cache
	}

	a.store, err = vectordb.NewChromemStore(embedder, vectordb.WithLogger(logger.Component(log, "vectordb")))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating vector store: %w", err)
	}
	if vectordb.SnapshotExists(cfg.VectorDir()) {
		if err := a.store.Load(ctx, cfg.VectorDir()); err != nil {
			a.Close()
			return nil, fmt.Errorf("loading vector snapshot from %s: %w", cfg.VectorDir(), err)
		}
	}
	a.metrics.SetCorpusSize(a.store.Count())

	a.db, err = db.Open(cfg.DBPath())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	lexOpts := []lexical.Option{
		lexical.WithLimit(cfg.Retrieval.LexicalLimit),
		lexical.WithLogger(logger.Component(log, "lexical")),
	}
	if !cfg.Retrieval.LexicalEnabled {
		lexOpts = append(lexOpts, lexical.Disabled())
	}
	a.lexical = lexical.New(a.db, lexOpts...)
	a.history = history.NewStore(a.db)

	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("query interpretation disabled")
	}
	a.interpreter = interpret.New(provider,
		interpret.WithTimeout(cfg.Retrieval.InterpretTimeout),
		interpret.WithLogger(logger.Component(log, "interpret")),
		interpret.WithMetrics(a.metrics),
	)

	a.engine = retrieval.NewEngine(a.store, a.lexical,
		retrieval.WithK(cfg.Retrieval.PrimaryK, cfg.Retrieval.ReferenceK, cfg.Retrieval.FallbackK),
		retrieval.WithResultLimit(cfg.Retrieval.ResultLimit),
		retrieval.WithReconcileTimeout(cfg.Retrieval.ReconcileTimeout),
		retrieval.WithLogger(logger.Component(log, "retrieval")),
		retrieval.WithMetrics(a.metrics),
	)

	a.pipeline = pipeline.New(a.interpreter, a.engine,
		pipeline.WithRecorder(a.history),
		pipeline.WithLogger(logger.Component(log, "pipeline")),
	)
	return a, nil
}

// Close releases the database and the embedding cache.
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn().Err(err).Msg("closing embedding cache")
		}
	}
}

// watchSnapshot reloads the vector store whenever another process
// publishes a new snapshot. It is a no-op unless retrieval.watch_snapshot
// is set, and returns when ctx is cancelled.
func (a *app) watchSnapshot(ctx context.Context) {
	if !a.cfg.Retrieval.WatchSnapshot {
		return
	}
	dir := a.cfg.VectorDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		a.log.Warn().Err(err).Msg("snapshot watch disabled")
		return
	}
	w := vectordb.NewWatcher(dir, a.store, logger.Component(a.log, "watch"))
	w.OnReload(func(err error) {
		if err == nil {
			a.metrics.SetCorpusSize(a.store.Count())
		}
	})
	if err := w.Run(ctx); err != nil {
		a.log.Warn().Err(err).Msg("snapshot watch stopped")
	}
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" || provider == config.ProviderNone {
		provider = cfg.Provider
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = config.GetPreset(provider).EmbeddingModel
	}

	switch provider {
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(model, embeddingDimensions(model), cfg.EmbeddingBaseURL), nil
	case config.ProviderLocal:
		baseURL := cfg.EmbeddingBaseURL
		if baseURL == "" {
			baseURL = cfg.BaseURL
		}
		return embeddings.NewLocalEmbedder(baseURL, model, os.Getenv(config.APIKeyEnvVar(config.ProviderLocal)), embeddingDimensions(model))
	default:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(model), cfg.EmbeddingBaseURL), nil
	}
}

// embeddingDimensions knows the output size of common local models.
func embeddingDimensions(model string) int {
	switch {
	case strings.Contains(model, "nomic-embed"):
		return 768
	case strings.Contains(model, "mxbai-embed-large"), strings.Contains(model, "bge-large"):
		return 1024
	default:
		return 384
	}
}

// createLLMProviderFromConfig creates a rate-limited LLM provider. A nil
// provider with nil error means interpretation is disabled.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	if cfg.Provider == config.ProviderNone {
		return nil, nil
	}
	p, err := llm.NewProvider(string(cfg.Provider), cfg.Model, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimitedProvider(p, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst), nil
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `regolith init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}
