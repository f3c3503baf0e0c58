package retriever

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/luma-stream/mediadex/internal/domain"
	"github.com/luma-stream/mediadex/internal/index"
)

type fakeVectors struct {
	matches []index.QueryMatch
	err     error

	lastK       int
	lastFilters domain.Filters
}

func (f *fakeVectors) Query(_ context.Context, _ []float32, k int, filters domain.Filters) ([]index.QueryMatch, error) {
	f.lastK = k
	f.lastFilters = filters
	return f.matches, f.err
}

type fakeText struct {
	results []domain.SearchResult
	err     error

	lastQuery   string
	lastFilters domain.Filters
}

func (f *fakeText) SearchText(_ context.Context, query string, _ int, filters domain.Filters) ([]domain.SearchResult, error) {
	f.lastQuery = query
	f.lastFilters = filters
	return f.results, f.err
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

func newTestRetriever(v *fakeVectors, s *fakeText, e *fakeEmbedder) *Retriever {
	return New(v, s, e, zap.NewNop())
}

func TestSearchHybrid(t *testing.T) {
	vectors := &fakeVectors{matches: []index.QueryMatch{
		{ID: "a", Score: 0.9, Content: "alpha"},
		{ID: "b", Score: 0.6, Content: "beta"},
	}}
	text := &fakeText{results: []domain.SearchResult{
		{ID: "b", Score: 0.8, Content: "beta"},
		{ID: "c", Score: 0.7, Content: "gamma"},
	}}

	r := newTestRetriever(vectors, text, &fakeEmbedder{})

	res, err := r.Search(context.Background(), "database indexing", 2, domain.Filters{}, Weights{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(res.VectorResults) != 2 || len(res.TextResults) != 2 {
		t.Fatalf("leg sizes = %d/%d, want 2/2", len(res.VectorResults), len(res.TextResults))
	}
	if len(res.CombinedResults) != 2 {
		t.Fatalf("combined size = %d, want 2", len(res.CombinedResults))
	}
	if res.CombinedResults[0].ID != "b" || res.CombinedResults[1].ID != "a" {
		t.Errorf("combined order = [%s %s], want [b a]",
			res.CombinedResults[0].ID, res.CombinedResults[1].ID)
	}
}

func TestSearchValidatesInput(t *testing.T) {
	r := newTestRetriever(&fakeVectors{}, &fakeText{}, &fakeEmbedder{})

	if _, err := r.Search(context.Background(), "", 5, domain.Filters{}, Weights{}); !errors.Is(err, domain.ErrEmptyQuery) {
		t.Errorf("empty query: err = %v, want ErrEmptyQuery", err)
	}
	if _, err := r.Search(context.Background(), "q", 0, domain.Filters{}, Weights{}); !errors.Is(err, domain.ErrInvalidTopK) {
		t.Errorf("topK 0: err = %v, want ErrInvalidTopK", err)
	}
	if _, err := r.Search(context.Background(), "q", -1, domain.Filters{}, Weights{}); !errors.Is(err, domain.ErrInvalidTopK) {
		t.Errorf("topK -1: err = %v, want ErrInvalidTopK", err)
	}
}

func TestSearchVectorLegSoftFail(t *testing.T) {
	vectors := &fakeVectors{err: errors.New("index down")}
	text := &fakeText{results: []domain.SearchResult{{ID: "t1", Score: 0.9}}}

	r := newTestRetriever(vectors, text, &fakeEmbedder{})

	res, err := r.Search(context.Background(), "q", 5, domain.Filters{}, Weights{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.VectorResults) != 0 {
		t.Errorf("vector results = %d, want 0", len(res.VectorResults))
	}
	if len(res.CombinedResults) != 1 || res.CombinedResults[0].ID != "t1" {
		t.Errorf("combined = %+v, want [t1]", res.CombinedResults)
	}
}

func TestSearchEmbedderSoftFail(t *testing.T) {
	text := &fakeText{results: []domain.SearchResult{{ID: "t1", Score: 0.9}}}

	r := newTestRetriever(&fakeVectors{}, text, &fakeEmbedder{err: domain.ErrEmbeddingProviderError})

	res, err := r.Search(context.Background(), "q", 5, domain.Filters{}, Weights{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.VectorResults) != 0 {
		t.Errorf("vector results = %d, want 0", len(res.VectorResults))
	}
	if len(res.CombinedResults) != 1 {
		t.Errorf("combined size = %d, want 1", len(res.CombinedResults))
	}
}

func TestSearchTextLegSoftFail(t *testing.T) {
	vectors := &fakeVectors{matches: []index.QueryMatch{{ID: "v1", Score: 0.9}}}
	text := &fakeText{err: errors.New("search syntax error")}

	r := newTestRetriever(vectors, text, &fakeEmbedder{})

	res, err := r.Search(context.Background(), "q", 5, domain.Filters{}, Weights{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.TextResults) != 0 {
		t.Errorf("text results = %d, want 0", len(res.TextResults))
	}
	if len(res.CombinedResults) != 1 || res.CombinedResults[0].ID != "v1" {
		t.Errorf("combined = %+v, want [v1]", res.CombinedResults)
	}
}

func TestSearchBothLegsFail(t *testing.T) {
	vectors := &fakeVectors{err: errors.New("down")}
	text := &fakeText{err: errors.New("down")}

	r := newTestRetriever(vectors, text, &fakeEmbedder{})

	res, err := r.Search(context.Background(), "q", 5, domain.Filters{}, Weights{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.CombinedResults) != 0 {
		t.Errorf("combined size = %d, want 0", len(res.CombinedResults))
	}
}

func TestSearchCustomWeights(t *testing.T) {
	vectors := &fakeVectors{matches: []index.QueryMatch{{ID: "a", Score: 0.8}}}
	text := &fakeText{results: []domain.SearchResult{{ID: "b", Score: 0.9}}}

	r := newTestRetriever(vectors, text, &fakeEmbedder{})

	// Flip the weights so the text leg dominates.
	w := Weights{Vector: 0.2, Text: 0.8, MinScore: 0.5}
	res, err := r.Search(context.Background(), "q", 5, domain.Filters{}, w)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.CombinedResults[0].ID != "b" {
		t.Errorf("rank 1 = %s, want b", res.CombinedResults[0].ID)
	}
}

func TestSearchVideoAppliesFilter(t *testing.T) {
	vectors := &fakeVectors{matches: []index.QueryMatch{{ID: "a", Score: 0.9}}}
	text := &fakeText{}

	r := newTestRetriever(vectors, text, &fakeEmbedder{})

	results, err := r.SearchVideo(context.Background(), "q", "vid-42", 3)
	if err != nil {
		t.Fatalf("SearchVideo: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if vectors.lastFilters.VideoID != "vid-42" {
		t.Errorf("vector filter video id = %q, want vid-42", vectors.lastFilters.VideoID)
	}
	if text.lastFilters.VideoID != "vid-42" {
		t.Errorf("text filter video id = %q, want vid-42", text.lastFilters.VideoID)
	}
}

func TestSearchVideoRequiresID(t *testing.T) {
	r := newTestRetriever(&fakeVectors{}, &fakeText{}, &fakeEmbedder{})

	if _, err := r.SearchVideo(context.Background(), "q", "", 3); err == nil {
		t.Error("expected error for empty video id")
	}
}

func TestSearchRecentAppliesCutoff(t *testing.T) {
	vectors := &fakeVectors{}
	text := &fakeText{}

	r := newTestRetriever(vectors, text, &fakeEmbedder{})

	before := time.Now().AddDate(0, 0, -7)
	if _, err := r.SearchRecent(context.Background(), "q", 7, 3); err != nil {
		t.Fatalf("SearchRecent: %v", err)
	}
	after := time.Now().AddDate(0, 0, -7)

	got := vectors.lastFilters.PublishedAfter
	if got == nil {
		t.Fatal("expected PublishedAfter filter to be set")
	}
	if got.Before(before) || got.After(after) {
		t.Errorf("cutoff %v outside [%v, %v]", got, before, after)
	}
}

func TestSearchRecentRejectsNonPositiveDays(t *testing.T) {
	r := newTestRetriever(&fakeVectors{}, &fakeText{}, &fakeEmbedder{})

	if _, err := r.SearchRecent(context.Background(), "q", 0, 3); err == nil {
		t.Error("expected error for days = 0")
	}
}

func TestSearchPassesOriginalQueryToTextLeg(t *testing.T) {
	text := &fakeText{}
	r := newTestRetriever(&fakeVectors{}, text, &fakeEmbedder{})

	if _, err := r.Search(context.Background(), "kubernetes networking", 5, domain.Filters{}, Weights{}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if text.lastQuery != "kubernetes networking" {
		t.Errorf("text query = %q, want original query", text.lastQuery)
	}
}
