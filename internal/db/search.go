package db

import (
	"strconv"

	"github.com/luma-stream/mediadex/internal/domain"
)

// Well-known hash field names shared by the index schema, the upsert path
// and the filter translation.
const (
	FieldVector      = "vector"
	FieldContent     = "content"
	FieldVideoID     = "video_id"
	FieldPlaylistID  = "playlist_id"
	FieldTitle       = "title"
	FieldURL         = "url"
	FieldPublishedAt = "published_at"
	FieldStartTime   = "start_time"
	FieldMetadata    = "metadata"
	FieldVectorScore = "__vector_score"
)

// FoldMetadata flattens the well-known metadata onto the hash columns the
// filter vocabulary addresses, skipping unset fields. Extra keys fold under
// their own names.
func FoldMetadata(md domain.ChunkMetadata) map[string]string {
	fields := make(map[string]string, 6+len(md.Extra))
	if md.VideoID != "" {
		fields[FieldVideoID] = md.VideoID
	}
	if md.PlaylistID != "" {
		fields[FieldPlaylistID] = md.PlaylistID
	}
	if md.Title != "" {
		fields[FieldTitle] = md.Title
	}
	if md.URL != "" {
		fields[FieldURL] = md.URL
	}
	if !md.PublishedAt.IsZero() {
		fields[FieldPublishedAt] = strconv.FormatInt(md.PublishedAt.Unix(), 10)
	}
	if md.StartTime != 0 {
		fields[FieldStartTime] = strconv.FormatFloat(md.StartTime, 'f', -1, 64)
	}
	for k, v := range md.Extra {
		fields[k] = v
	}
	return fields
}

// KNNQuery is the input for vector similarity search. Distance names the
// metric the index was built with so the raw engine distance can be turned
// into a similarity; empty means cosine.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	Distance     DistanceMetric
	Filters      domain.Filters
	ReturnFields []string
}

// TextQuery is the input for BM25 text search.
type TextQuery struct {
	IndexName    string
	Query        string
	Filters      domain.Filters
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
