package domain

import (
	"fmt"
	"time"
)

// ChunkMetadata carries the well-known metadata fields of a content chunk
// (video transcript segment or blog excerpt) plus an open side channel for
// anything else. The typed fields are the ones the filter-translation path
// understands; Extra values pass through to the backend as raw equality
// filters.
type ChunkMetadata struct {
	VideoID     string            `json:"videoId,omitempty"`
	PlaylistID  string            `json:"playlistId,omitempty"`
	Title       string            `json:"title,omitempty"`
	URL         string            `json:"url,omitempty"`
	PublishedAt time.Time         `json:"publishedAt,omitempty"`
	StartTime   float64           `json:"startTime,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// VectorRecord is a single entry in a vector index: caller-assigned id, the
// embedding, the chunk text the embedding was computed from, and metadata.
// Upsert is an idempotent replace-by-id; replacing an id fully overwrites its
// metadata, there is no merge.
type VectorRecord struct {
	ID       string
	Values   []float32
	Content  string
	Metadata ChunkMetadata
}

// Validate checks a record against the index's configured dimensionality.
func (r *VectorRecord) Validate(dimensions int) error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if len(r.Values) == 0 {
		return fmt.Errorf("record %s: empty vector", r.ID)
	}
	if dimensions > 0 && len(r.Values) != dimensions {
		return fmt.Errorf("record %s: got %d dimensions, index expects %d: %w",
			r.ID, len(r.Values), dimensions, ErrDimensionMismatch)
	}
	return nil
}
