// Package retrieval implements the hybrid retrieval state machine: a
// primary semantic search, an independent confidence reconciliation, and
// reference, lexical and semantic-only strategies for the returned
// documents.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/regolith-ai/regolith/internal/interpret"
	"github.com/regolith-ai/regolith/internal/metrics"
	"github.com/regolith-ai/regolith/internal/vectordb"
)

// Strategy names the path that produced a result's documents.
type Strategy string

const (
	StrategyEmpty     Strategy = "empty"
	StrategyReference Strategy = "reference"
	StrategyLexical   Strategy = "lexical"
	StrategySemantic  Strategy = "semantic"
)

// Result is the outcome of one retrieval.
type Result struct {
	Documents      []vectordb.Document `json:"documents"`
	Confidence     float64             `json:"confidence"`
	Strategy       Strategy            `json:"strategy"`
	Reconciliation ReconcileKind       `json:"reconciliation,omitempty"`
}

// Engine runs retrievals against injected indexes. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	semantic SemanticIndex
	lexical  LexicalIndex

	primaryK         int
	referenceK       int
	fallbackK        int
	resultLimit      int
	reconcileTimeout time.Duration

	log     zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithK sets the candidate counts of the primary search, the reference
// pool and the semantic-only fallback. Non-positive values keep defaults.
func WithK(primary, reference, fallback int) Option {
	return func(e *Engine) {
		if primary > 0 {
			e.primaryK = primary
		}
		if reference > 0 {
			e.referenceK = reference
		}
		if fallback > 0 {
			e.fallbackK = fallback
		}
	}
}

// WithResultLimit caps the reference and lexical strategies' output.
func WithResultLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.resultLimit = n
		}
	}
}

func WithReconcileTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.reconcileTimeout = d
		}
	}
}

// NewEngine creates an Engine. lexical may be nil.
func NewEngine(semantic SemanticIndex, lexical LexicalIndex, opts ...Option) *Engine {
	e := &Engine{
		semantic:         semantic,
		lexical:          lexical,
		primaryK:         5,
		referenceK:       10,
		fallbackK:        3,
		resultLimit:      5,
		reconcileTimeout: DefaultReconcileTimeout,
		log:              zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve runs the retrieval state machine for rawQuery. Only an
// unavailable vector index fails the request; every other degradation
// is absorbed. The confidence always comes from the primary search's
// top match, whichever strategy supplies the documents.
func (e *Engine) Retrieve(ctx context.Context, rawQuery string, interp interpret.Interpretation) (Result, error) {
	start := time.Now()
	res, err := e.retrieve(ctx, rawQuery, interp)
	if err != nil {
		e.metrics.ObserveRetrievalError(time.Since(start))
		e.log.Error().Err(err).Str("query", rawQuery).Msg("retrieval failed")
		return Result{}, err
	}
	e.metrics.ObserveRetrieval(string(res.Strategy), len(res.Documents), time.Since(start))
	e.log.Debug().
		Str("query", rawQuery).
		Str("strategy", string(res.Strategy)).
		Int("documents", len(res.Documents)).
		Float64("confidence", res.Confidence).
		Str("reconciliation", string(res.Reconciliation)).
		Dur("elapsed", time.Since(start)).
		Msg("retrieval complete")
	return res, nil
}

func (e *Engine) retrieve(ctx context.Context, query string, interp interpret.Interpretation) (Result, error) {
	primary, err := e.semantic.NearestNeighbors(ctx, query, e.primaryK)
	if err != nil {
		return Result{}, indexError(err)
	}
	if len(primary) == 0 {
		return Result{Documents: []vectordb.Document{}, Confidence: 0, Strategy: StrategyEmpty}, nil
	}

	rec := NewReconciler(e.semantic, e.reconcileTimeout, e.log).Reconcile(ctx, query, primary[0])
	e.metrics.ObserveReconcile(string(rec.Kind))

	res := Result{Confidence: rec.Score, Reconciliation: rec.Kind}

	if len(interp.References) > 0 {
		pool, err := e.semantic.NearestNeighbors(ctx, query, e.referenceK)
		if err != nil {
			return Result{}, indexError(err)
		}
		if matches := FilterByReferences(documents(pool), interp.References); len(matches) > 0 {
			res.Documents = Merge(e.resultLimit, matches)
			res.Strategy = StrategyReference
			return res, nil
		}
		e.log.Debug().Strs("references", interp.References).Msg("no reference matches, trying lexical")
	}

	if lexDocs, ok := e.searchLexical(ctx, query); ok {
		semantic, err := e.semantic.NearestNeighbors(ctx, query, e.primaryK)
		if err != nil {
			return Result{}, indexError(err)
		}
		res.Documents = Merge(e.resultLimit, lexDocs, documents(semantic))
		res.Strategy = StrategyLexical
		return res, nil
	}

	fallback, err := e.semantic.NearestNeighbors(ctx, query, e.fallbackK)
	if err != nil {
		return Result{}, indexError(err)
	}
	res.Documents = Merge(e.fallbackK, documents(fallback))
	res.Strategy = StrategySemantic
	return res, nil
}

// searchLexical reports ok=false when the lexical index is absent,
// unavailable, or fails.
func (e *Engine) searchLexical(ctx context.Context, query string) ([]vectordb.Document, bool) {
	if e.lexical == nil || !e.lexical.Available(ctx) {
		return nil, false
	}
	docs, err := e.lexical.Search(ctx, query)
	if err != nil {
		e.log.Warn().Err(err).Msg("lexical search failed, using semantic fallback")
		return nil, false
	}
	return docs, true
}

func indexError(err error) error {
	if errors.Is(err, ErrIndexUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
}
