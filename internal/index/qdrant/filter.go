package qdrant

import (
	"time"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/luma-stream/mediadex/internal/domain"
)

// Payload field names shared by the upsert and filter paths.
const (
	fieldContent     = "content"
	fieldVideoID     = "video_id"
	fieldPlaylistID  = "playlist_id"
	fieldTitle       = "title"
	fieldURL         = "url"
	fieldPublishedAt = "published_at"
	fieldStartTime   = "start_time"
)

// buildFilter translates domain.Filters into a Qdrant must-filter. Returns
// nil when no condition is set.
func buildFilter(f domain.Filters) *pb.Filter {
	if f.IsZero() {
		return nil
	}

	var must []*pb.Condition

	if f.VideoID != "" {
		must = append(must, matchCondition(fieldVideoID, f.VideoID))
	}
	if f.PlaylistID != "" {
		must = append(must, matchCondition(fieldPlaylistID, f.PlaylistID))
	}
	if f.PublishedAfter != nil || f.PublishedBefore != nil {
		r := &pb.Range{}
		if f.PublishedAfter != nil {
			v := float64(f.PublishedAfter.Unix())
			r.Gte = &v
		}
		if f.PublishedBefore != nil {
			v := float64(f.PublishedBefore.Unix())
			r.Lte = &v
		}
		must = append(must, rangeCondition(fieldPublishedAt, r))
	}
	if f.StartTime != nil {
		r := &pb.Range{Gte: f.StartTime.Min, Lte: f.StartTime.Max}
		must = append(must, rangeCondition(fieldStartTime, r))
	}
	for k, v := range f.Extra {
		must = append(must, matchCondition(k, v))
	}

	return &pb.Filter{Must: must}
}

func matchCondition(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func rangeCondition(key string, r *pb.Range) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{Key: key, Range: r},
		},
	}
}

// recordPayload flattens a record into a Qdrant payload.
func recordPayload(rec *domain.VectorRecord) map[string]*pb.Value {
	md := rec.Metadata
	payload := map[string]*pb.Value{
		fieldContent: stringValue(rec.Content),
	}
	if md.VideoID != "" {
		payload[fieldVideoID] = stringValue(md.VideoID)
	}
	if md.PlaylistID != "" {
		payload[fieldPlaylistID] = stringValue(md.PlaylistID)
	}
	if md.Title != "" {
		payload[fieldTitle] = stringValue(md.Title)
	}
	if md.URL != "" {
		payload[fieldURL] = stringValue(md.URL)
	}
	if !md.PublishedAt.IsZero() {
		payload[fieldPublishedAt] = &pb.Value{
			Kind: &pb.Value_IntegerValue{IntegerValue: md.PublishedAt.Unix()},
		}
	}
	if md.StartTime != 0 {
		payload[fieldStartTime] = &pb.Value{
			Kind: &pb.Value_DoubleValue{DoubleValue: md.StartTime},
		}
	}
	for k, v := range md.Extra {
		payload[k] = stringValue(v)
	}
	return payload
}

// payloadToMetadata rebuilds chunk content and metadata from a point payload.
func payloadToMetadata(payload map[string]*pb.Value) (string, domain.ChunkMetadata) {
	var content string
	md := domain.ChunkMetadata{}

	for k, v := range payload {
		switch k {
		case fieldContent:
			content = v.GetStringValue()
		case fieldVideoID:
			md.VideoID = v.GetStringValue()
		case fieldPlaylistID:
			md.PlaylistID = v.GetStringValue()
		case fieldTitle:
			md.Title = v.GetStringValue()
		case fieldURL:
			md.URL = v.GetStringValue()
		case fieldPublishedAt:
			if ts := v.GetIntegerValue(); ts > 0 {
				md.PublishedAt = time.Unix(ts, 0).UTC()
			}
		case fieldStartTime:
			md.StartTime = v.GetDoubleValue()
		default:
			if md.Extra == nil {
				md.Extra = make(map[string]string)
			}
			md.Extra[k] = v.GetStringValue()
		}
	}
	return content, md
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}
