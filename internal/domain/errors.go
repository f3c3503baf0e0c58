package domain

import "errors"

var (
	// ErrEmptyQuery signals an empty search query string.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrInvalidTopK signals a non-positive topK.
	ErrInvalidTopK = errors.New("topK must be positive")
	// ErrEmptyText signals empty text passed to an embedder.
	ErrEmptyText = errors.New("text is empty")
	// ErrEmptyID signals a record without an identifier.
	ErrEmptyID = errors.New("record id is empty")
	// ErrDimensionMismatch signals a vector whose length differs from the
	// configured index dimensionality. This is a structural misconfiguration
	// and is always propagated, never soft-failed.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrIndexUnavailable signals that the vector index could not be created
	// or reached at startup.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)
