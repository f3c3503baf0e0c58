// Package redis implements the vector index on Redis 8 FT indexes.
package redis

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/luma-stream/mediadex/internal/db"
	"github.com/luma-stream/mediadex/internal/domain"
	"github.com/luma-stream/mediadex/internal/index"
)

// store is the consumer interface for the Redis vector index.
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	DelMulti(ctx context.Context, keys []string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexInfo(ctx context.Context, name string) (db.IndexInfo, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Settings configures the Redis vector index.
type Settings struct {
	IndexName       string
	KeyPrefix       string
	Dimensions      int
	Metric          index.Metric
	HNSWM           int
	HNSWEFConstruct int
}

// Index implements index.Index on a Redis FT index. Records are stored as
// hashes: the well-known metadata fields are folded to first-class columns
// for the filter path, and the full metadata is kept as a raw JSON side
// channel for the read path.
type Index struct {
	store  store
	cfg    Settings
	logger *zap.Logger
}

var _ index.Index = (*Index)(nil)

// New creates a Redis-backed vector index.
func New(s store, cfg Settings, logger *zap.Logger) *Index {
	return &Index{store: s, cfg: cfg, logger: logger}
}

// EnsureIndex creates the FT index if it does not exist yet. Creation failure
// is fatal to startup, not per-query.
func (x *Index) EnsureIndex(ctx context.Context) error {
	exists, err := x.store.IndexExists(ctx, x.cfg.IndexName)
	if err != nil {
		return fmt.Errorf("probe index %s: %w: %v", x.cfg.IndexName, domain.ErrIndexUnavailable, err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     x.cfg.IndexName,
		Prefixes: []string{x.cfg.KeyPrefix},
		Fields: []db.IndexField{
			{
				Name:              db.FieldVector,
				Type:              db.IndexFieldVector,
				VectorDim:         x.cfg.Dimensions,
				VectorDistance:    metricToDB(x.cfg.Metric),
				VectorM:           x.cfg.HNSWM,
				VectorEFConstruct: x.cfg.HNSWEFConstruct,
			},
			{Name: db.FieldContent, Type: db.IndexFieldText},
			{Name: db.FieldVideoID, Type: db.IndexFieldTag},
			{Name: db.FieldPlaylistID, Type: db.IndexFieldTag},
			{Name: db.FieldPublishedAt, Type: db.IndexFieldNumeric},
			{Name: db.FieldStartTime, Type: db.IndexFieldNumeric},
		},
	}

	if err := x.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w: %v", x.cfg.IndexName, domain.ErrIndexUnavailable, err)
	}

	x.logger.Info("Created vector index",
		zap.String("index", x.cfg.IndexName),
		zap.Int("dimensions", x.cfg.Dimensions),
		zap.String("metric", string(x.cfg.Metric)),
	)
	return nil
}

// Upsert stores records as hashes under the configured key prefix.
func (x *Index) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(records))
	for i := range records {
		rec := &records[i]
		if err := rec.Validate(x.cfg.Dimensions); err != nil {
			return err
		}

		fields, err := x.recordFields(rec)
		if err != nil {
			return err
		}
		items = append(items, db.HashSetItem{Key: x.key(rec.ID), Fields: fields})
	}

	if err := x.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d records: %w", len(records), err)
	}
	return nil
}

// Query runs a filtered KNN search. Candidates are over-fetched before the
// final truncation to k.
func (x *Index) Query(
	ctx context.Context, vector []float32, k int, filters domain.Filters,
) ([]index.QueryMatch, error) {
	if k <= 0 {
		return nil, domain.ErrInvalidTopK
	}
	if x.cfg.Dimensions > 0 && len(vector) != x.cfg.Dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, index expects %d: %w",
			len(vector), x.cfg.Dimensions, domain.ErrDimensionMismatch)
	}

	q := &db.KNNQuery{
		IndexName: x.cfg.IndexName,
		Vector:    vector,
		K:         index.CandidateCount(k),
		Distance:  metricToDB(x.cfg.Metric),
		Filters:   filters,
		ReturnFields: []string{
			db.FieldContent, db.FieldMetadata, db.FieldVectorScore,
		},
	}

	sr, err := x.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("knn query %s: %w", x.cfg.IndexName, err)
	}
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	matches := make([]index.QueryMatch, 0, min(k, len(sr.Entries)))
	for _, entry := range sr.Entries {
		if len(matches) == k {
			break
		}
		matches = append(matches, index.QueryMatch{
			ID:       strings.TrimPrefix(entry.Key, x.cfg.KeyPrefix),
			Score:    entry.Score,
			Content:  entry.Fields[db.FieldContent],
			Metadata: parseMetadata(entry.Fields),
		})
	}
	return matches, nil
}

// Delete removes records by id. Missing ids are skipped by the store.
func (x *Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = x.key(id)
	}
	if err := x.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("delete %d records: %w", len(ids), err)
	}
	return nil
}

// Stats reports the document count and index size from FT.INFO.
func (x *Index) Stats(ctx context.Context) (index.Stats, error) {
	info, err := x.store.IndexInfo(ctx, x.cfg.IndexName)
	if err != nil {
		return index.Stats{}, fmt.Errorf("index info %s: %w", x.cfg.IndexName, err)
	}
	return index.Stats{
		TotalVectors:   info.NumDocs,
		Dimensions:     x.cfg.Dimensions,
		IndexSizeBytes: int64(info.IndexSizeMB * 1024 * 1024),
	}, nil
}

func (x *Index) key(id string) string {
	return x.cfg.KeyPrefix + id
}

// recordFields builds the flat hash representation of a record: binary
// vector, chunk text, folded filter columns, and the JSON metadata side
// channel.
func (x *Index) recordFields(rec *domain.VectorRecord) (map[string]string, error) {
	raw, err := json.Marshal(rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata %s: %w", rec.ID, err)
	}

	fields := db.FoldMetadata(rec.Metadata)
	fields[db.FieldVector] = vectorToBlob(rec.Values)
	fields[db.FieldContent] = rec.Content
	fields[db.FieldMetadata] = string(raw)

	return fields, nil
}

// parseMetadata prefers the JSON side channel and leaves the folded columns
// to the filter path.
func parseMetadata(fields map[string]string) domain.ChunkMetadata {
	var md domain.ChunkMetadata
	if raw, ok := fields[db.FieldMetadata]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &md); err == nil {
			return md
		}
	}
	return md
}

func metricToDB(m index.Metric) db.DistanceMetric {
	switch m {
	case index.MetricIP:
		return db.DistanceIP
	case index.MetricL2:
		return db.DistanceL2
	default:
		return db.DistanceCosine
	}
}

func vectorToBlob(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
