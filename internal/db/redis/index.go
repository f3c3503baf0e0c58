package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/luma-stream/mediadex/internal/db"
)

// CreateIndex issues FT.CREATE for the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := createArgs(def)
	if err != nil {
		return err
	}

	err = s.do(ctx, s.b().Arbitrary("FT.CREATE").Args(args...).Build()).Error()
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, "index already exists"):
		return db.ErrIndexExists
	default:
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
}

// IndexExists probes the index via FT.INFO. The server answers
// "unknown index name" for absent indexes.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.do(ctx, s.b().Arbitrary("FT.INFO").Args(name).Build()).Error()
	switch {
	case err == nil:
		return true, nil
	case isRedisErr(err, "unknown index name"):
		return false, nil
	default:
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
}

// IndexInfo extracts document count and vector index size from FT.INFO.
func (s *Store) IndexInfo(ctx context.Context, name string) (db.IndexInfo, error) {
	reply, err := s.do(ctx, s.b().Arbitrary("FT.INFO").Args(name).Build()).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index name") {
			return db.IndexInfo{}, db.ErrIndexNotFound
		}
		return db.IndexInfo{}, &db.Error{Op: db.OpIndexInfo, Err: err}
	}

	// FT.INFO is a flat attribute/value array; values this path does not
	// care about may be nested arrays, so decode only what it needs.
	var info db.IndexInfo
	for i := 0; i+1 < len(reply); i += 2 {
		attr, aerr := reply[i].ToString()
		if aerr != nil {
			continue
		}
		switch attr {
		case "num_docs":
			if v, verr := asFloat(reply[i+1].ToString()); verr == nil {
				info.NumDocs = int64(v)
			}
		case "vector_index_sz_mb":
			if v, verr := asFloat(reply[i+1].ToString()); verr == nil {
				info.IndexSizeMB = v
			}
		}
	}
	return info, nil
}

func asFloat(s string, convErr error) (float64, error) {
	if convErr != nil {
		return 0, convErr
	}
	return strconv.ParseFloat(s, 64)
}

// createArgs renders an IndexDefinition as FT.CREATE arguments. Only HASH
// storage is emitted since all records in this package live in hashes.
func createArgs(idx *db.IndexDefinition) ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	args := []string{idx.Name, "ON", "HASH"}
	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}
	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		part, err := schemaArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, part...)
	}
	return args, nil
}

func schemaArgs(f *db.IndexField) ([]string, error) {
	switch f.Type {
	case db.IndexFieldNumeric:
		return []string{f.Name, "NUMERIC"}, nil
	case db.IndexFieldText:
		return []string{f.Name, "TEXT"}, nil
	case db.IndexFieldTag:
		return []string{f.Name, "TAG"}, nil
	case db.IndexFieldVector:
		metric := f.VectorDistance
		if metric == "" {
			metric = db.DistanceCosine
		}
		m := f.VectorM
		if m <= 0 {
			m = 16
		}
		efc := f.VectorEFConstruct
		if efc <= 0 {
			efc = 200
		}
		// "12" is the count of HNSW parameter tokens that follow.
		return []string{f.Name, "VECTOR", "HNSW", "12",
			"TYPE", "FLOAT32",
			"DIM", strconv.Itoa(f.VectorDim),
			"DISTANCE_METRIC", string(metric),
			"M", strconv.Itoa(m),
			"EF_CONSTRUCTION", strconv.Itoa(efc),
		}, nil
	default:
		return nil, fmt.Errorf("field %s has unknown type %d", f.Name, f.Type)
	}
}
