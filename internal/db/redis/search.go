package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/luma-stream/mediadex/internal/db"
	"github.com/luma-stream/mediadex/internal/domain"
)

// SearchKNN runs FT.SEARCH with a KNN clause against the vector field.
// Result scores are similarities in [0, 1], derived from the engine distance
// per the query's metric.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, fmt.Errorf("index name is required")
	case len(q.Vector) == 0:
		return nil, fmt.Errorf("vector is required")
	case q.K <= 0:
		return nil, fmt.Errorf("k must be positive")
	}

	knn := fmt.Sprintf("[KNN %d @%s $BLOB]", q.K, db.FieldVector)
	query := "*=>" + knn
	if pre := filterExpr(q.Filters); pre != "" {
		query = fmt.Sprintf("(%s)=>%s", pre, knn)
	}

	args := []string{q.IndexName, query}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}
	// Without an explicit LIMIT the server caps replies at its default
	// page size regardless of K.
	args = append(args,
		"SORTBY", db.FieldVectorScore,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", packVector(q.Vector),
		"DIALECT", "2",
	)

	reply, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return knnEntries(reply, q.Distance)
}

// SearchBM25 runs FT.SEARCH over the content text field with WITHSCORES, so
// result scores are the raw BM25 values.
func (s *Store) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, fmt.Errorf("index name is required")
	case q.Query == "":
		return nil, fmt.Errorf("query is required")
	case q.TopK <= 0:
		return nil, fmt.Errorf("topK must be positive")
	}

	query := fmt.Sprintf("@%s:(%s)", db.FieldContent, escapeText(q.Query))
	if pre := filterExpr(q.Filters); pre != "" {
		query = pre + " " + query
	}

	args := []string{q.IndexName, query}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}
	args = append(args,
		"WITHSCORES",
		"LIMIT", "0", strconv.Itoa(q.TopK),
		"DIALECT", "2",
	)

	reply, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return bm25Entries(reply)
}

// knnEntries decodes the RESP2 FT.SEARCH reply for a KNN query. The reply
// alternates key and field array after the leading total. The similarity is
// derived from the distance the engine stored in the __vector_score field,
// which is then dropped from the entry fields.
func knnEntries(reply []rueidis.RedisMessage, metric db.DistanceMetric) (*db.SearchResult, error) {
	total, err := replyTotal(reply)
	if err != nil || total == 0 {
		return &db.SearchResult{}, err
	}

	entries := make([]db.SearchEntry, 0, total)
	for i := 1; i+1 < len(reply); i += 2 {
		key, kerr := reply[i].ToString()
		fields, ferr := reply[i+1].ToArray()
		if kerr != nil || ferr != nil {
			continue
		}

		e := db.SearchEntry{Key: key, Fields: fieldMap(fields)}
		if raw, ok := e.Fields[db.FieldVectorScore]; ok {
			if dist, perr := strconv.ParseFloat(raw, 64); perr == nil {
				e.Score = similarity(metric, dist)
			}
			delete(e.Fields, db.FieldVectorScore)
		}
		entries = append(entries, e)
	}

	return &db.SearchResult{Total: total, Entries: entries}, nil
}

// similarity turns an engine distance into a score in [0, 1]. Cosine and IP
// distances are 1-bounded so 1-dist works directly; L2 distances are
// unbounded and map through 1/(1+dist) instead, which keeps the ordering and
// never collapses distinct distances onto the clamp floor.
func similarity(metric db.DistanceMetric, dist float64) float64 {
	if metric == db.DistanceL2 {
		return 1 / (1 + math.Max(0, dist))
	}
	return max(0, 1.0-dist)
}

// bm25Entries decodes the RESP2 FT.SEARCH reply for a text query issued with
// WITHSCORES, where each hit spans three reply slots: key, score, fields.
func bm25Entries(reply []rueidis.RedisMessage) (*db.SearchResult, error) {
	total, err := replyTotal(reply)
	if err != nil || total == 0 {
		return &db.SearchResult{}, err
	}

	entries := make([]db.SearchEntry, 0, total)
	for i := 1; i+2 < len(reply); i += 3 {
		key, kerr := reply[i].ToString()
		rawScore, serr := reply[i+1].ToString()
		fields, ferr := reply[i+2].ToArray()
		if kerr != nil || serr != nil || ferr != nil {
			continue
		}
		score, perr := strconv.ParseFloat(rawScore, 64)
		if perr != nil {
			continue
		}
		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  score,
			Fields: fieldMap(fields),
		})
	}

	return &db.SearchResult{Total: total, Entries: entries}, nil
}

func replyTotal(reply []rueidis.RedisMessage) (int, error) {
	if len(reply) == 0 {
		return 0, nil
	}
	total, err := reply[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse total: %w", err)
	}
	return int(total), nil
}

// fieldMap flattens a name/value reply array into a map, skipping any slot
// that does not decode as a string.
func fieldMap(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, nerr := fields[j].ToString()
		value, verr := fields[j+1].ToString()
		if nerr != nil || verr != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// filterExpr renders domain.Filters as an FT.SEARCH pre-filter expression.
// All conditions are conjunctive. PublishedAfter/PublishedBefore become
// inclusive bounds on published_at, StartTime inclusive bounds on
// start_time, and Extra keys become tag equality clauses on the field of
// the same name, in sorted key order.
func filterExpr(f domain.Filters) string {
	if f.IsZero() {
		return ""
	}

	var parts []string
	if f.VideoID != "" {
		parts = append(parts, tagClause(db.FieldVideoID, f.VideoID))
	}
	if f.PlaylistID != "" {
		parts = append(parts, tagClause(db.FieldPlaylistID, f.PlaylistID))
	}
	if f.PublishedAfter != nil || f.PublishedBefore != nil {
		var r domain.NumericRange
		if f.PublishedAfter != nil {
			v := float64(f.PublishedAfter.Unix())
			r.Min = &v
		}
		if f.PublishedBefore != nil {
			v := float64(f.PublishedBefore.Unix())
			r.Max = &v
		}
		parts = append(parts, rangeClause(db.FieldPublishedAt, r))
	}
	if f.StartTime != nil {
		parts = append(parts, rangeClause(db.FieldStartTime, *f.StartTime))
	}

	keys := make([]string, 0, len(f.Extra))
	for k := range f.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, tagClause(k, f.Extra[k]))
	}

	return strings.Join(parts, " ")
}

func tagClause(field, value string) string {
	return "@" + field + ":{" + tagEscaper.Replace(value) + "}"
}

func rangeClause(field string, r domain.NumericRange) string {
	lo, hi := "-inf", "+inf"
	if r.Min != nil {
		lo = strconv.FormatFloat(*r.Min, 'g', -1, 64)
	}
	if r.Max != nil {
		hi = strconv.FormatFloat(*r.Max, 'g', -1, 64)
	}
	return fmt.Sprintf("@%s:[%s %s]", field, lo, hi)
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

// escapeText neutralizes RediSearch query syntax in user text so free-form
// queries cannot change the query structure.
func escapeText(s string) string {
	return textEscaper.Replace(s)
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)

// packVector serializes float32s little-endian for the PARAMS blob.
func packVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
