// Package qdrant implements the vector index on a Qdrant collection over
// gRPC. Record ids must be UUIDs, which is what Qdrant accepts as point ids.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/luma-stream/mediadex/internal/domain"
	"github.com/luma-stream/mediadex/internal/index"
)

// Settings configures the Qdrant vector index.
type Settings struct {
	Addr       string
	Collection string
	Dimensions int
	Metric     index.Metric
}

// Index implements index.Index on a Qdrant collection.
type Index struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	cfg         Settings
	logger      *zap.Logger
}

var _ index.Index = (*Index)(nil)

// New creates a Qdrant-backed vector index connected over gRPC.
func New(cfg Settings, logger *zap.Logger) (*Index, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("qdrant addr is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}

	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial qdrant %s: %w", cfg.Addr, err)
	}

	return &Index{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		cfg:         cfg,
		logger:      logger,
	}, nil
}

// Close closes the underlying gRPC connection.
func (x *Index) Close() error {
	return x.conn.Close()
}

// Ping verifies the Qdrant endpoint is reachable.
func (x *Index) Ping(ctx context.Context) error {
	if _, err := x.collections.List(ctx, &pb.ListCollectionsRequest{}); err != nil {
		return fmt.Errorf("qdrant ping: %w", err)
	}
	return nil
}

// EnsureIndex creates the collection and its payload field indexes if absent.
// Failure is fatal to startup.
func (x *Index) EnsureIndex(ctx context.Context) error {
	list, err := x.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("list collections: %w: %v", domain.ErrIndexUnavailable, err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == x.cfg.Collection {
			return nil
		}
	}

	_, err = x.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: x.cfg.Collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(x.cfg.Dimensions),
					Distance: metricToDistance(x.cfg.Metric),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w: %v", x.cfg.Collection, domain.ErrIndexUnavailable, err)
	}

	if err := x.createFieldIndexes(ctx); err != nil {
		return err
	}

	x.logger.Info("Created vector collection",
		zap.String("collection", x.cfg.Collection),
		zap.Int("dimensions", x.cfg.Dimensions),
		zap.String("metric", string(x.cfg.Metric)),
	)
	return nil
}

// createFieldIndexes builds the companion payload indexes used by the filter
// translation.
func (x *Index) createFieldIndexes(ctx context.Context) error {
	wait := true
	fields := []struct {
		name string
		typ  pb.FieldType
	}{
		{fieldVideoID, pb.FieldType_FieldTypeKeyword},
		{fieldPlaylistID, pb.FieldType_FieldTypeKeyword},
		{fieldPublishedAt, pb.FieldType_FieldTypeInteger},
		{fieldStartTime, pb.FieldType_FieldTypeFloat},
	}
	for _, f := range fields {
		_, err := x.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: x.cfg.Collection,
			FieldName:      f.name,
			FieldType:      f.typ.Enum(),
			Wait:           &wait,
		})
		if err != nil {
			return fmt.Errorf("create field index %s: %w: %v", f.name, domain.ErrIndexUnavailable, err)
		}
	}
	return nil
}

// Upsert stores records as Qdrant points with their metadata as payload.
func (x *Index) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i := range records {
		rec := &records[i]
		if err := rec.Validate(x.cfg.Dimensions); err != nil {
			return err
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: rec.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: rec.Values},
				},
			},
			Payload: recordPayload(rec),
		}
	}

	wait := true
	_, err := x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: x.cfg.Collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(records), err)
	}
	return nil
}

// Query runs a filtered similarity search with internal candidate
// over-fetch, truncated to k.
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

	req := &pb.SearchPoints{
		CollectionName: x.cfg.Collection,
		Vector:         vector,
		Limit:          uint64(index.CandidateCount(k)),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
		Filter: buildFilter(filters),
	}

	resp, err := x.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", x.cfg.Collection, err)
	}

	hits := resp.GetResult()
	matches := make([]index.QueryMatch, 0, min(k, len(hits)))
	for _, hit := range hits {
		if len(matches) == k {
			break
		}
		content, md := payloadToMetadata(hit.GetPayload())
		matches = append(matches, index.QueryMatch{
			ID:       hit.GetId().GetUuid(),
			Score:    float64(hit.GetScore()),
			Content:  content,
			Metadata: md,
		})
	}
	return matches, nil
}

// Delete removes points by id. Missing ids are no-ops.
func (x *Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}

	wait := true
	_, err := x.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: x.cfg.Collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete %d points: %w", len(ids), err)
	}
	return nil
}

// Stats reports the exact point count.
func (x *Index) Stats(ctx context.Context) (index.Stats, error) {
	exact := true
	resp, err := x.points.Count(ctx, &pb.CountPoints{
		CollectionName: x.cfg.Collection,
		Exact:          &exact,
	})
	if err != nil {
		return index.Stats{}, fmt.Errorf("count %s: %w", x.cfg.Collection, err)
	}
	return index.Stats{
		TotalVectors: int64(resp.GetResult().GetCount()),
		Dimensions:   x.cfg.Dimensions,
	}, nil
}

func metricToDistance(m index.Metric) pb.Distance {
	switch m {
	case index.MetricIP:
		return pb.Distance_Dot
	case index.MetricL2:
		return pb.Distance_Euclid
	default:
		return pb.Distance_Cosine
	}
}
