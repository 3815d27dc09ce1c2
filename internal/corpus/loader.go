package corpus

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/regolith-ai/regolith/internal/progress"
	"github.com/regolith-ai/regolith/internal/vectordb"
)

// DefaultBatchSize is the number of documents added per index batch.
const DefaultBatchSize = 5000

// Store is the vector side of a load.
type Store interface {
	AddDocuments(ctx context.Context, docs []vectordb.Document) error
	Persist(ctx context.Context, dir string) error
	Count() int
}

// Keyword is the lexical side of a load.
type Keyword interface {
	Add(ctx context.Context, docs []vectordb.Document) error
}

// Stats summarizes a completed load.
type Stats struct {
	Documents int           `json:"documents"`
	Batches   int           `json:"batches"`
	Total     int           `json:"total"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Loader adds documents to both indexes in batches and persists the
// vector snapshot.
type Loader struct {
	store     Store
	keyword   Keyword
	dataDir   string
	batchSize int
	reporter  progress.Reporter
	log       zerolog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

func WithBatchSize(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

func WithReporter(r progress.Reporter) LoaderOption {
	return func(l *Loader) { l.reporter = r }
}

func WithLogger(log zerolog.Logger) LoaderOption {
	return func(l *Loader) { l.log = log }
}

// WithKeywordIndex also feeds the lexical index.
func WithKeywordIndex(k Keyword) LoaderOption {
	return func(l *Loader) { l.keyword = k }
}

// NewLoader creates a Loader that persists to dataDir. An empty dataDir
// skips persistence.
func NewLoader(store Store, dataDir string, opts ...LoaderOption) *Loader {
	l := &Loader{
		store:     store,
		dataDir:   dataDir,
		batchSize: DefaultBatchSize,
		reporter:  progress.Nop{},
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load adds docs batch by batch. Each batch becomes visible to readers
// atomically. A failed batch stops the load; the batches committed before
// it are still persisted so the vector snapshot matches the lexical index
// after a restart. When the lexical side of a batch fails, its vector side
// is already committed and is persisted too.
func (l *Loader) Load(ctx context.Context, docs []vectordb.Document) (Stats, error) {
	start := time.Now()
	stats := Stats{}

	l.reporter.Start(len(docs))
	defer l.reporter.Finish()

	if err := l.addBatches(ctx, docs, &stats); err != nil {
		if perr := l.persist(ctx); perr != nil {
			l.log.Error().Err(perr).Msg("persisting partial load")
		}
		return stats, err
	}

	if err := l.persist(ctx); err != nil {
		return stats, err
	}

	stats.Total = l.store.Count()
	stats.Elapsed = time.Since(start)
	l.log.Info().
		Int("documents", stats.Documents).
		Int("batches", stats.Batches).
		Int("total", stats.Total).
		Dur("elapsed", stats.Elapsed).
		Msg("corpus loaded")
	return stats, nil
}

func (l *Loader) addBatches(ctx context.Context, docs []vectordb.Document, stats *Stats) error {
	for lo := 0; lo < len(docs); lo += l.batchSize {
		hi := min(lo+l.batchSize, len(docs))
		batch := docs[lo:hi]

		if err := l.store.AddDocuments(ctx, batch); err != nil {
			return fmt.Errorf("adding batch %d to vector index: %w", stats.Batches+1, err)
		}
		if l.keyword != nil {
			if err := l.keyword.Add(ctx, batch); err != nil {
				return fmt.Errorf("adding batch %d to lexical index: %w", stats.Batches+1, err)
			}
		}
		stats.Batches++
		stats.Documents += len(batch)
		l.reporter.Update(hi, fmt.Sprintf("batch %d", stats.Batches))
		l.log.Debug().Int("batch", stats.Batches).Int("documents", len(batch)).Msg("batch added")
	}
	return nil
}

func (l *Loader) persist(ctx context.Context) error {
	if l.dataDir == "" {
		return nil
	}
	if err := l.store.Persist(ctx, l.dataDir); err != nil {
		return fmt.Errorf("persisting vector snapshot: %w", err)
	}
	return nil
}
