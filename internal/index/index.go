// Package index defines the vector index abstraction the retrieval core is
// built against. Concrete backends (Redis, Qdrant) are selected at startup by
// configuration; fusion logic never sees backend query-language details.
package index

import (
	"context"

	"github.com/luma-stream/mediadex/internal/domain"
)

// Index is a content-addressed store of (id, vector, metadata) records.
type Index interface {
	// Upsert stores records, replacing existing ids wholesale. A record whose
	// vector length differs from the configured dimensionality fails the
	// whole batch with domain.ErrDimensionMismatch before any write.
	Upsert(ctx context.Context, records []domain.VectorRecord) error

	// Query returns up to k matches sorted descending by score. Backends
	// over-fetch candidates internally (CandidateCount) before filters and
	// final truncation to compensate for approximate-index recall loss.
	// An empty index yields an empty slice, not an error.
	Query(ctx context.Context, vector []float32, k int, filters domain.Filters) ([]QueryMatch, error)

	// Delete removes records by id. Missing ids are no-ops.
	Delete(ctx context.Context, ids []string) error

	// Stats reports index size information.
	Stats(ctx context.Context) (Stats, error)
}

// QueryMatch is a single vector search hit. Score is backend-native
// (similarity for cosine/IP, distance-derived for L2) and is not comparable
// across backends without normalization.
type QueryMatch struct {
	ID       string
	Score    float64
	Content  string
	Metadata domain.ChunkMetadata
}

// Stats reports index size information.
type Stats struct {
	TotalVectors   int64 `json:"totalVectors"`
	Dimensions     int   `json:"dimensions"`
	IndexSizeBytes int64 `json:"indexSizeBytes,omitempty"`
}

// Metric is the similarity metric an index is built with.
type Metric string

const (
	// MetricCosine is cosine similarity.
	MetricCosine Metric = "cosine"
	// MetricIP is inner (dot) product.
	MetricIP Metric = "ip"
	// MetricL2 is Euclidean distance.
	MetricL2 Metric = "l2"
)

// IsValid reports whether the metric is one of the supported values.
func (m Metric) IsValid() bool {
	switch m {
	case MetricCosine, MetricIP, MetricL2:
		return true
	}
	return false
}

// CandidateCount is the internal over-fetch size for a top-k query.
func CandidateCount(k int) int {
	return max(k*10, 100)
}
