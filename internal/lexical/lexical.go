// Package lexical provides full-text (BM25) search over the same logical
// corpus as the vector index, addressable by the same id/metadata schema and
// filter vocabulary.
package lexical

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/luma-stream/mediadex/internal/db"
	"github.com/luma-stream/mediadex/internal/domain"
)

// store is the consumer interface for lexical search.
type store interface {
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Searcher runs BM25 text search against the shared FT index. Scores are
// backend-native BM25 relevance and share no scale with vector similarity.
type Searcher struct {
	store     store
	indexName string
	keyPrefix string
}

// New creates a lexical searcher over the shared FT index.
func New(s store, indexName, keyPrefix string) *Searcher {
	return &Searcher{store: s, indexName: indexName, keyPrefix: keyPrefix}
}

// SearchText returns up to k scored matches for the query. An empty corpus
// yields an empty slice; only real I/O or query-construction failures are
// errors (the retrieval layer soft-fails those).
func (s *Searcher) SearchText(
	ctx context.Context, query string, k int, filters domain.Filters,
) ([]domain.SearchResult, error) {
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if k <= 0 {
		return nil, domain.ErrInvalidTopK
	}

	q := &db.TextQuery{
		IndexName:    s.indexName,
		Query:        query,
		Filters:      filters,
		TopK:         k,
		ReturnFields: []string{db.FieldContent, db.FieldMetadata},
	}

	sr, err := s.store.SearchBM25(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("text search %s: %w", s.indexName, err)
	}
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	results := make([]domain.SearchResult, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, s.keyPrefix)
		var md domain.ChunkMetadata
		if raw := entry.Fields[db.FieldMetadata]; raw != "" {
			_ = json.Unmarshal([]byte(raw), &md)
		}
		results = append(results, domain.NewSearchResult(
			id, entry.Score, entry.Fields[db.FieldContent], md,
		))
	}
	return results, nil
}
