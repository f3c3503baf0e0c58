package index

import (
	"context"
	"fmt"

	"github.com/luma-stream/mediadex/internal/domain"
)

// CorpusWriter receives a copy of every write so a secondary text corpus
// stays in step with the vector index.
type CorpusWriter interface {
	Upsert(ctx context.Context, records []domain.VectorRecord) error
	Delete(ctx context.Context, ids []string) error
}

// Mirrored wraps an index so writes also land in the mirror corpus. Reads go
// to the primary alone. The primary writes first, so its validation stops a
// bad batch before the mirror sees it.
func Mirrored(primary Index, mirror CorpusWriter) Index {
	return &mirrored{primary: primary, mirror: mirror}
}

type mirrored struct {
	primary Index
	mirror  CorpusWriter
}

func (m *mirrored) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if err := m.primary.Upsert(ctx, records); err != nil {
		return err
	}
	if err := m.mirror.Upsert(ctx, records); err != nil {
		return fmt.Errorf("mirror corpus upsert: %w", err)
	}
	return nil
}

func (m *mirrored) Delete(ctx context.Context, ids []string) error {
	if err := m.primary.Delete(ctx, ids); err != nil {
		return err
	}
	if err := m.mirror.Delete(ctx, ids); err != nil {
		return fmt.Errorf("mirror corpus delete: %w", err)
	}
	return nil
}

func (m *mirrored) Query(
	ctx context.Context, vector []float32, k int, filters domain.Filters,
) ([]QueryMatch, error) {
	return m.primary.Query(ctx, vector, k, filters)
}

func (m *mirrored) Stats(ctx context.Context) (Stats, error) {
	return m.primary.Stats(ctx)
}
