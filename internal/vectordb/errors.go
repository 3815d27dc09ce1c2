package vectordb

import "errors"

var (
	// ErrIndexUnavailable means the vector index could not answer a query.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrEmbeddingService means the embedding backend could not embed text.
	ErrEmbeddingService = errors.New("embedding service unavailable")

	// ErrInvalidDocument is returned by AddDocuments for documents without
	// an id or content.
	ErrInvalidDocument = errors.New("invalid document")
)
