// Package mediadex embeds the hybrid content retriever directly into a Go
// program: semantic and keyword search over video transcript and blog chunks
// without running the HTTP server.
package mediadex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/luma-stream/mediadex/internal/db"
	dbRedis "github.com/luma-stream/mediadex/internal/db/redis"
	"github.com/luma-stream/mediadex/internal/domain"
	"github.com/luma-stream/mediadex/internal/embcache"
	"github.com/luma-stream/mediadex/internal/index"
	idxQdrant "github.com/luma-stream/mediadex/internal/index/qdrant"
	idxRedis "github.com/luma-stream/mediadex/internal/index/redis"
	"github.com/luma-stream/mediadex/internal/lexical"
	"github.com/luma-stream/mediadex/internal/retriever"
)

const defaultReadinessTimeout = 10 * time.Second

// EmbeddingResult is the outcome of a single embed call.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder turns text into a vector. Implementations typically call an
// external embedding API.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// ChunkMetadata describes where a chunk came from.
type ChunkMetadata struct {
	VideoID     string
	PlaylistID  string
	Title       string
	URL         string
	PublishedAt time.Time
	StartTime   float64
	Extra       map[string]string
}

// Chunk is one indexable unit of content with its embedding.
type Chunk struct {
	ID       string
	Values   []float32
	Content  string
	Metadata ChunkMetadata
}

// SearchResult is one scored hit.
type SearchResult struct {
	ID          string
	Content     string
	Score       float64
	VideoID     string
	VideoTitle  string
	Timestamp   float64
	URL         string
	PlaylistID  string
	PublishedAt *time.Time
}

// HybridResult carries both legs plus the fused ranking.
type HybridResult struct {
	VectorResults   []SearchResult
	TextResults     []SearchResult
	CombinedResults []SearchResult
}

// NumericRange is an inclusive numeric interval. Nil bounds are open.
type NumericRange struct {
	Min *float64
	Max *float64
}

// Filters narrows a search to matching chunks.
type Filters struct {
	VideoID         string
	PlaylistID      string
	PublishedAfter  *time.Time
	PublishedBefore *time.Time
	StartTime       *NumericRange
	Extra           map[string]string
}

// Stats reports index size.
type Stats struct {
	TotalVectors   int64
	Dimensions     int
	IndexSizeBytes int64
}

// Client is the mediadex SDK entry point.
type Client struct {
	store     db.Store
	vectors   index.Index
	closers   []func() error
	retriever *retriever.Retriever
	weights   retriever.Weights
}

// New creates a Client, connects to the database and ensures the index.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		vectorDriver: "redis",
		indexName:    "mediadex-chunks",
		keyPrefix:    "mediadex:chunk:",
		dimensions:   1536,
		metric:       "cosine",
		logger:       zap.NewNop(),
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("mediadex: redis address required (use WithRedis)")
	}
	if cfg.embedder == nil {
		return nil, errors.New("mediadex: embedder required (use WithEmbedder)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Username: cfg.username,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("mediadex: create redis store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("mediadex: database not ready: %w", err)
	}

	return wireClient(ctx, store, cfg)
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig) (*Client, error) {
	c := &Client{store: store}

	switch cfg.vectorDriver {
	case "redis":
		idx := idxRedis.New(store, idxRedis.Settings{
			IndexName:       cfg.indexName,
			KeyPrefix:       cfg.keyPrefix,
			Dimensions:      cfg.dimensions,
			Metric:          index.Metric(cfg.metric),
			HNSWM:           cfg.hnswM,
			HNSWEFConstruct: cfg.hnswEFConstruct,
		}, cfg.logger)
		if err := idx.EnsureIndex(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("mediadex: ensure index: %w", err)
		}
		c.vectors = idx
	case "qdrant":
		idx, err := idxQdrant.New(idxQdrant.Settings{
			Addr:       cfg.qdrantAddr,
			Collection: cfg.qdrantColl,
			Dimensions: cfg.dimensions,
			Metric:     index.Metric(cfg.metric),
		}, cfg.logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("mediadex: create qdrant index: %w", err)
		}
		if err := idx.EnsureIndex(ctx); err != nil {
			idx.Close()
			store.Close()
			return nil, fmt.Errorf("mediadex: ensure collection: %w", err)
		}
		corpus := lexical.NewCorpus(store, cfg.indexName, cfg.keyPrefix, cfg.logger)
		if err := corpus.EnsureIndex(ctx); err != nil {
			idx.Close()
			store.Close()
			return nil, fmt.Errorf("mediadex: ensure lexical index: %w", err)
		}
		c.vectors = index.Mirrored(idx, corpus)
		c.closers = append(c.closers, idx.Close)
	default:
		store.Close()
		return nil, fmt.Errorf("mediadex: unknown vector driver %q", cfg.vectorDriver)
	}

	var embedder domain.Embedder = &embedderAdapter{inner: cfg.embedder}
	if cfg.cacheEmbeddings {
		embedder = embcache.New(embedder, store, cfg.keyPrefix+"emb:", cfg.cacheTTL, nil, cfg.logger)
	}

	text := lexical.New(store, cfg.indexName, cfg.keyPrefix)
	c.retriever = retriever.New(c.vectors, text, embedder, cfg.logger)
	c.weights = retriever.Weights{
		Vector:   cfg.vectorWeight,
		Text:     cfg.textWeight,
		MinScore: cfg.minScore,
	}
	return c, nil
}

// Close releases all resources.
func (c *Client) Close() {
	for _, fn := range c.closers {
		_ = fn()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Search runs a hybrid search and returns both legs plus the fused ranking.
func (c *Client) Search(ctx context.Context, query string, topK int, filters Filters) (HybridResult, error) {
	res, err := c.retriever.Search(ctx, query, topK, toInternalFilters(filters), c.weights)
	if err != nil {
		return HybridResult{}, err
	}
	return HybridResult{
		VectorResults:   fromInternalResults(res.VectorResults),
		TextResults:     fromInternalResults(res.TextResults),
		CombinedResults: fromInternalResults(res.CombinedResults),
	}, nil
}

// SearchVideo runs a hybrid search restricted to a single video.
func (c *Client) SearchVideo(ctx context.Context, query, videoID string, topK int) ([]SearchResult, error) {
	results, err := c.retriever.SearchVideo(ctx, query, videoID, topK)
	if err != nil {
		return nil, err
	}
	return fromInternalResults(results), nil
}

// SearchRecent runs a hybrid search restricted to recently published content.
func (c *Client) SearchRecent(ctx context.Context, query string, days, topK int) ([]SearchResult, error) {
	results, err := c.retriever.SearchRecent(ctx, query, days, topK)
	if err != nil {
		return nil, err
	}
	return fromInternalResults(results), nil
}

// UpsertChunks indexes chunks, replacing existing ids.
func (c *Client) UpsertChunks(ctx context.Context, chunks []Chunk) error {
	records := make([]domain.VectorRecord, len(chunks))
	for i, ch := range chunks {
		records[i] = domain.VectorRecord{
			ID:      ch.ID,
			Values:  ch.Values,
			Content: ch.Content,
			Metadata: domain.ChunkMetadata{
				VideoID:     ch.Metadata.VideoID,
				PlaylistID:  ch.Metadata.PlaylistID,
				Title:       ch.Metadata.Title,
				URL:         ch.Metadata.URL,
				PublishedAt: ch.Metadata.PublishedAt,
				StartTime:   ch.Metadata.StartTime,
				Extra:       ch.Metadata.Extra,
			},
		}
	}
	return c.vectors.Upsert(ctx, records)
}

// DeleteChunks removes chunks by id. Missing ids are no-ops.
func (c *Client) DeleteChunks(ctx context.Context, ids []string) error {
	return c.vectors.Delete(ctx, ids)
}

// Stats reports index size.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	s, err := c.vectors.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalVectors:   s.TotalVectors,
		Dimensions:     s.Dimensions,
		IndexSizeBytes: s.IndexSizeBytes,
	}, nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func toInternalFilters(f Filters) domain.Filters {
	out := domain.Filters{
		VideoID:         f.VideoID,
		PlaylistID:      f.PlaylistID,
		PublishedAfter:  f.PublishedAfter,
		PublishedBefore: f.PublishedBefore,
		Extra:           f.Extra,
	}
	if f.StartTime != nil {
		out.StartTime = &domain.NumericRange{Min: f.StartTime.Min, Max: f.StartTime.Max}
	}
	return out
}

func fromInternalResults(results []domain.SearchResult) []SearchResult {
	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:          r.ID,
			Content:     r.Content,
			Score:       r.Score,
			VideoID:     r.VideoID,
			VideoTitle:  r.VideoTitle,
			Timestamp:   r.Timestamp,
			URL:         r.URL,
			PlaylistID:  r.PlaylistID,
			PublishedAt: r.PublishedAt,
		}
	}
	return out
}
