package lexical

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/luma-stream/mediadex/internal/db"
	"github.com/luma-stream/mediadex/internal/domain"
)

// corpusStore is the consumer interface for maintaining the lexical corpus.
type corpusStore interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	DelMulti(ctx context.Context, keys []string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Corpus maintains the text corpus the BM25 leg searches. When vectors live
// in Redis the vector index's hashes double as the corpus; when they live in
// another engine, Corpus writes the content hashes itself so both legs keep
// seeing the same documents.
type Corpus struct {
	store     corpusStore
	indexName string
	keyPrefix string
	logger    *zap.Logger
}

// NewCorpus creates a corpus writer over the shared FT index.
func NewCorpus(s corpusStore, indexName, keyPrefix string, logger *zap.Logger) *Corpus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Corpus{store: s, indexName: indexName, keyPrefix: keyPrefix, logger: logger}
}

// EnsureIndex creates the text FT index if it does not exist yet. It carries
// the chunk text and the filter columns but no vector field.
func (c *Corpus) EnsureIndex(ctx context.Context) error {
	exists, err := c.store.IndexExists(ctx, c.indexName)
	if err != nil {
		return fmt.Errorf("probe index %s: %w: %v", c.indexName, domain.ErrIndexUnavailable, err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     c.indexName,
		Prefixes: []string{c.keyPrefix},
		Fields: []db.IndexField{
			{Name: db.FieldContent, Type: db.IndexFieldText},
			{Name: db.FieldVideoID, Type: db.IndexFieldTag},
			{Name: db.FieldPlaylistID, Type: db.IndexFieldTag},
			{Name: db.FieldPublishedAt, Type: db.IndexFieldNumeric},
			{Name: db.FieldStartTime, Type: db.IndexFieldNumeric},
		},
	}

	if err := c.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w: %v", c.indexName, domain.ErrIndexUnavailable, err)
	}

	c.logger.Info("Created lexical index", zap.String("index", c.indexName))
	return nil
}

// Upsert stores the text and folded filter columns of each record as a hash
// under the configured key prefix. Vector values are ignored.
func (c *Corpus) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(records))
	for i := range records {
		rec := &records[i]
		raw, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata %s: %w", rec.ID, err)
		}

		fields := db.FoldMetadata(rec.Metadata)
		fields[db.FieldContent] = rec.Content
		fields[db.FieldMetadata] = string(raw)
		items = append(items, db.HashSetItem{Key: c.keyPrefix + rec.ID, Fields: fields})
	}

	if err := c.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d documents: %w", len(records), err)
	}
	return nil
}

// Delete removes documents by id. Missing ids are skipped by the store.
func (c *Corpus) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.keyPrefix + id
	}
	if err := c.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("delete %d documents: %w", len(ids), err)
	}
	return nil
}
