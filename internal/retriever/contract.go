package retriever

import (
	"context"

	"github.com/luma-stream/mediadex/internal/domain"
	"github.com/luma-stream/mediadex/internal/index"
)

// VectorQuerier is the slice of the vector index the retriever needs.
type VectorQuerier interface {
	Query(ctx context.Context, vector []float32, k int, filters domain.Filters) ([]index.QueryMatch, error)
}

// TextSearcher runs the lexical leg.
type TextSearcher interface {
	SearchText(ctx context.Context, query string, k int, filters domain.Filters) ([]domain.SearchResult, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
