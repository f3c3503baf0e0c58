package retriever

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luma-stream/mediadex/internal/domain"
	"github.com/luma-stream/mediadex/internal/metrics"
)

// Retriever combines semantic and lexical search over the same corpus.
type Retriever struct {
	vectors  VectorQuerier
	text     TextSearcher
	embedder Embedder
	logger   *zap.Logger
}

// New builds a Retriever. A nil logger is replaced with a no-op logger.
func New(vectors VectorQuerier, text TextSearcher, embedder Embedder, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		vectors:  vectors,
		text:     text,
		embedder: embedder,
		logger:   logger,
	}
}

// Search runs both legs in parallel and fuses the results.
//
// A failure in one leg does not fail the request: the failing leg
// contributes an empty list and the other leg's results still come back.
// An embedding failure counts as a vector leg failure. Errors are returned
// only for invalid input.
func (r *Retriever) Search(ctx context.Context, query string, topK int, filters domain.Filters, w Weights) (domain.HybridResult, error) {
	if query == "" {
		return domain.HybridResult{}, domain.ErrEmptyQuery
	}
	if topK <= 0 {
		return domain.HybridResult{}, fmt.Errorf("%w: %d", domain.ErrInvalidTopK, topK)
	}
	if w.isZero() {
		w = DefaultWeights()
	}

	var (
		vectorResults []domain.SearchResult
		textResults   []domain.SearchResult
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		results, err := r.searchVector(gctx, query, topK, filters)
		metrics.SearchLegDuration.WithLabelValues(metrics.LegVector).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.SearchLegTotal.WithLabelValues(metrics.LegVector, metrics.LegStatusSoftFail).Inc()
			r.logger.Warn("vector search leg failed, continuing with text results only",
				zap.Error(err))
			return nil
		}
		metrics.SearchLegTotal.WithLabelValues(metrics.LegVector, metrics.LegStatusOK).Inc()
		vectorResults = results
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		results, err := r.text.SearchText(gctx, query, topK, filters)
		metrics.SearchLegDuration.WithLabelValues(metrics.LegText).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.SearchLegTotal.WithLabelValues(metrics.LegText, metrics.LegStatusSoftFail).Inc()
			r.logger.Warn("text search leg failed, continuing with vector results only",
				zap.Error(err))
			return nil
		}
		metrics.SearchLegTotal.WithLabelValues(metrics.LegText, metrics.LegStatusOK).Inc()
		textResults = results
		return nil
	})

	// Legs never return errors; Wait is only a join point.
	if err := g.Wait(); err != nil {
		return domain.HybridResult{}, err
	}

	combined := fuse(vectorResults, textResults, w, topK)
	metrics.SearchFusedResults.Observe(float64(len(combined)))

	return domain.HybridResult{
		VectorResults:   vectorResults,
		TextResults:     textResults,
		CombinedResults: combined,
	}, nil
}

// SearchVideo restricts the hybrid search to a single video.
func (r *Retriever) SearchVideo(ctx context.Context, query, videoID string, topK int) ([]domain.SearchResult, error) {
	if videoID == "" {
		return nil, fmt.Errorf("%w: video id", domain.ErrEmptyQuery)
	}
	res, err := r.Search(ctx, query, topK, domain.Filters{VideoID: videoID}, Weights{})
	if err != nil {
		return nil, err
	}
	return res.CombinedResults, nil
}

// SearchRecent restricts the hybrid search to content published within the
// trailing window of the given number of days.
func (r *Retriever) SearchRecent(ctx context.Context, query string, days, topK int) ([]domain.SearchResult, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive, got %d", domain.ErrInvalidTopK, days)
	}
	after := time.Now().AddDate(0, 0, -days)
	res, err := r.Search(ctx, query, topK, domain.Filters{PublishedAfter: &after}, Weights{})
	if err != nil {
		return nil, err
	}
	return res.CombinedResults, nil
}

func (r *Retriever) searchVector(ctx context.Context, query string, topK int, filters domain.Filters) ([]domain.SearchResult, error) {
	emb, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.vectors.Query(ctx, emb.Embedding, topK, filters)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, domain.NewSearchResult(m.ID, m.Score, m.Content, m.Metadata))
	}
	return results, nil
}
