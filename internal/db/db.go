package db

import (
	"context"
	"time"
)

// Store is the full database facade. Consumers depend on the narrow
// sub-interfaces, not on Store itself.
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem pairs a key with its hash fields for pipelined writes.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore provides hash-based record storage.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []HashSetItem) error
	Del(ctx context.Context, key string) error
	DelMulti(ctx context.Context, keys []string) error
}

// KVStore provides simple key-value operations (embedding cache).
// Set with ttl <= 0 stores the value without expiry.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager provides FT index lifecycle operations. CreateIndex is
// idempotent at the caller level: callers probe IndexExists first and treat
// ErrIndexExists as success.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexInfo(ctx context.Context, name string) (IndexInfo, error)
}

// Searcher runs KNN and BM25 queries against FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchBM25(ctx context.Context, q *TextQuery) (*SearchResult, error)
}

// IndexInfo is the subset of FT.INFO the stats path needs.
type IndexInfo struct {
	NumDocs     int64
	IndexSizeMB float64
}
