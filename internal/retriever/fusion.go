package retriever

import (
	"sort"

	"github.com/luma-stream/mediadex/internal/domain"
)

// Weights tunes the fusion step. Zero value means "use defaults".
type Weights struct {
	Vector   float64
	Text     float64
	MinScore float64
}

// DefaultWeights returns the standard fusion parameters.
func DefaultWeights() Weights {
	return Weights{
		Vector:   0.7,
		Text:     0.3,
		MinScore: 0.5,
	}
}

func (w Weights) isZero() bool {
	return w.Vector == 0 && w.Text == 0 && w.MinScore == 0
}

// fuse merges the two result legs into a single ranked list.
//
// Each leg's native score is gated against MinScore before weighting, so a
// document can enter the merged set through either leg independently. A
// document present in both legs accumulates both weighted contributions.
//
// Note the two legs score on different scales (cosine similarity vs BM25),
// so the weighted sum is a heuristic blend rather than a calibrated
// probability. Callers that need calibrated scores should normalize per leg
// first.
func fuse(vector, text []domain.SearchResult, w Weights, topK int) []domain.SearchResult {
	merged := make(map[string]domain.SearchResult, len(vector)+len(text))

	for _, r := range vector {
		if r.Score < w.MinScore {
			continue
		}
		weighted := r
		weighted.Score = r.Score * w.Vector
		merged[r.ID] = weighted
	}

	for _, r := range text {
		if r.Score < w.MinScore {
			continue
		}
		if existing, ok := merged[r.ID]; ok {
			existing.Score += r.Score * w.Text
			merged[existing.ID] = existing
			continue
		}
		weighted := r
		weighted.Score = r.Score * w.Text
		merged[r.ID] = weighted
	}

	out := make([]domain.SearchResult, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
