package vectordb

import "context"

// VectorStore is the embedding index: it embeds text, answers approximate
// nearest-neighbour queries and exports the corpus for exact rescoring.
// Implementations must be safe for concurrent readers while a writer adds
// a batch, and readers must never observe a partially added batch.
type VectorStore interface {
	// AddDocuments adds or replaces documents as one visible batch.
	AddDocuments(ctx context.Context, docs []Document) error

	// Embed embeds text with the store's model. Errors wrap ErrEmbeddingService.
	Embed(ctx context.Context, text string) ([]float32, error)

	// NearestNeighbors returns up to k documents, best first. Errors wrap
	// ErrIndexUnavailable.
	NearestNeighbors(ctx context.Context, query string, k int) ([]Neighbor, error)

	// FetchAllEmbeddings exports every stored document with its vector.
	FetchAllEmbeddings(ctx context.Context) ([]EmbeddingRecord, error)

	// EmbeddingByID returns the stored vector for id. ok is false when
	// the id is not in the store.
	EmbeddingByID(ctx context.Context, id string) (vec []float32, ok bool, err error)

	// ListDocuments returns every stored document in insertion order.
	ListDocuments(ctx context.Context) ([]Document, error)

	// Persist saves the store's data to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load replaces the store's data with the snapshot in dir.
	Load(ctx context.Context, dir string) error

	// Count returns the total number of documents in the store.
	Count() int
}
