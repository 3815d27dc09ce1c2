package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/regolith-ai/regolith/internal/vectordb"
)

// ReconcileKind tags where a confidence score came from.
type ReconcileKind string

const (
	// Reconciled scores are the clipped cosine between the query vector
	// and the stored vector of the top match.
	Reconciled ReconcileKind = "reconciled"
	// Fallback scores are the index's own score for the top match.
	Fallback ReconcileKind = "fallback"
)

// DefaultReconcileTimeout bounds the embed and vector lookup of one
// reconciliation.
const DefaultReconcileTimeout = 10 * time.Second

// Reconciliation is the confidence score of a retrieval and its origin.
type Reconciliation struct {
	Score float64       `json:"score"`
	Kind  ReconcileKind `json:"kind"`
}

var errVectorNotFound = errors.New("top match has no stored vector")

// Reconciler recomputes the similarity of the top semantic match
// independently of the index's own scoring.
type Reconciler struct {
	index   SemanticIndex
	timeout time.Duration
	log     zerolog.Logger
}

// NewReconciler creates a Reconciler over index.
func NewReconciler(index SemanticIndex, timeout time.Duration, log zerolog.Logger) *Reconciler {
	if timeout <= 0 {
		timeout = DefaultReconcileTimeout
	}
	return &Reconciler{index: index, timeout: timeout, log: log}
}

// Reconcile never fails. Any embedding, lookup or geometry problem
// degrades to the index score of top.
func (r *Reconciler) Reconcile(ctx context.Context, query string, top vectordb.Neighbor) Reconciliation {
	score, err := r.cosine(ctx, query, top.Document.Metadata.ID)
	if err != nil {
		r.log.Debug().Err(err).Str("id", top.Document.Metadata.ID).Msg("using index score as confidence")
		return Reconciliation{Score: clip(float64(top.Score)), Kind: Fallback}
	}
	return Reconciliation{Score: clip(score), Kind: Reconciled}
}

func (r *Reconciler) cosine(ctx context.Context, query, id string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	qv, err := r.index.Embed(ctx, query)
	if err != nil {
		return 0, err
	}
	dv, err := r.lookup(ctx, id)
	if err != nil {
		return 0, err
	}
	return Cosine(qv, dv)
}

func (r *Reconciler) lookup(ctx context.Context, id string) ([]float32, error) {
	if l, ok := r.index.(EmbeddingLookup); ok {
		vec, found, err := l.EmbeddingByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errVectorNotFound
		}
		return vec, nil
	}

	records, err := r.index.FetchAllEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec.Vector, nil
		}
	}
	return nil, errVectorNotFound
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or zero norm are an error.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, errors.New("zero-norm vector")
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

func clip(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
