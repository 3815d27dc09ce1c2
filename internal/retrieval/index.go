package retrieval

import (
	"context"

	"github.com/regolith-ai/regolith/internal/vectordb"
)

// SemanticIndex is the read side of the embedding index used by the engine.
type SemanticIndex interface {
	NearestNeighbors(ctx context.Context, query string, k int) ([]vectordb.Neighbor, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	FetchAllEmbeddings(ctx context.Context) ([]vectordb.EmbeddingRecord, error)
}

// EmbeddingLookup is implemented by indexes that can return one stored
// vector without exporting the corpus. The reconciler prefers it when
// present.
type EmbeddingLookup interface {
	EmbeddingByID(ctx context.Context, id string) ([]float32, bool, error)
}

// LexicalIndex is an optional keyword index. An index that reports
// itself unavailable, or a nil LexicalIndex, routes retrieval to the
// semantic-only fallback.
type LexicalIndex interface {
	Available(ctx context.Context) bool
	Search(ctx context.Context, query string) ([]vectordb.Document, error)
}
