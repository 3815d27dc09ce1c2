package retrieval

import "github.com/regolith-ai/regolith/internal/vectordb"

// The retrieval error taxonomy shares its sentinels with the index
// adapters so errors.Is works across the package boundary.
var (
	// ErrIndexUnavailable is fatal to a request: no documents can be produced.
	ErrIndexUnavailable = vectordb.ErrIndexUnavailable

	// ErrEmbeddingService is recovered during reconciliation and never
	// returned by Retrieve.
	ErrEmbeddingService = vectordb.ErrEmbeddingService
)
