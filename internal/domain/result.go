package domain

import "time"

// SearchResult is the normalized output shape shared by the semantic and
// lexical paths so they can be merged by id. Serialized as-is to API callers.
type SearchResult struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	Score       float64    `json:"score"`
	VideoID     string     `json:"videoId,omitempty"`
	VideoTitle  string     `json:"videoTitle,omitempty"`
	Timestamp   float64    `json:"timestamp,omitempty"`
	URL         string     `json:"url,omitempty"`
	PlaylistID  string     `json:"playlistId,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// HybridResult is the full output of a hybrid search: the two raw per-leg
// rankings plus the fused, truncated list.
type HybridResult struct {
	VectorResults   []SearchResult `json:"vectorResults"`
	TextResults     []SearchResult `json:"textResults"`
	CombinedResults []SearchResult `json:"combinedResults"`
}

// NewSearchResult builds a SearchResult from a chunk's id, score, content
// and metadata.
func NewSearchResult(id string, score float64, content string, md ChunkMetadata) SearchResult {
	res := SearchResult{
		ID:         id,
		Content:    content,
		Score:      score,
		VideoID:    md.VideoID,
		VideoTitle: md.Title,
		Timestamp:  md.StartTime,
		URL:        md.URL,
		PlaylistID: md.PlaylistID,
	}
	if !md.PublishedAt.IsZero() {
		t := md.PublishedAt
		res.PublishedAt = &t
	}
	return res
}
