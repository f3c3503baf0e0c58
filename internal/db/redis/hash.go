package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/luma-stream/mediadex/internal/db"
)

func (s *Store) hsetCmd(key string, fields map[string]string) rueidis.Completed {
	c := s.b().Hset().Key(key).FieldValue()
	for name, value := range fields {
		c = c.FieldValue(name, value)
	}
	return c.Build()
}

// HSet sets hash fields.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := s.do(ctx, s.hsetCmd(key, fields)).Error(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}

// HSetMulti writes several hashes in one pipelined round-trip and stops at
// the first per-key failure.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(items))
	for i, it := range items {
		cmds[i] = s.hsetCmd(it.Key, it.Fields)
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", items[i].Key, err)}
		}
	}
	return nil
}

// Del removes a key. Deleting a missing key is a no-op.
func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.do(ctx, s.b().Del().Key(key).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// DelMulti removes the given keys in a single DEL. Missing keys are skipped.
func (s *Store) DelMulti(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.do(ctx, s.b().Del().Key(keys...).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}
