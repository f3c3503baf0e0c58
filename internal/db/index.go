package db

import "fmt"

// DistanceMetric selects the distance function for vector fields. The values
// are the literal tokens FT.CREATE accepts.
type DistanceMetric string

const (
	DistanceL2     DistanceMetric = "L2"
	DistanceIP     DistanceMetric = "IP"
	DistanceCosine DistanceMetric = "COSINE"
)

// IndexFieldType enumerates the FT schema field kinds this package emits.
type IndexFieldType int

const (
	IndexFieldNumeric IndexFieldType = iota
	IndexFieldTag
	IndexFieldText
	IndexFieldVector
)

// IndexField describes one schema entry. The Vector* options apply only to
// IndexFieldVector fields and map to HNSW parameters.
type IndexField struct {
	Name string
	Type IndexFieldType

	VectorDim         int
	VectorDistance    DistanceMetric
	VectorM           int // max edges per node (default 16)
	VectorEFConstruct int // build-time dynamic list size (default 200)
}

// IndexDefinition is the input to FT.CREATE: the index name, the key
// prefixes it watches, and its field schema.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Validate rejects definitions FT.CREATE would refuse or silently misbuild.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return fmt.Errorf("index name is required")
	}
	if len(idx.Fields) == 0 {
		return fmt.Errorf("index %s has no fields", idx.Name)
	}

	seen := make(map[string]bool, len(idx.Fields))
	for i, f := range idx.Fields {
		switch {
		case f.Name == "":
			return fmt.Errorf("field %d has no name", i)
		case seen[f.Name]:
			return fmt.Errorf("field %s declared twice", f.Name)
		case f.Type == IndexFieldVector && f.VectorDim <= 0:
			return fmt.Errorf("vector field %s needs a positive dimension", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}
