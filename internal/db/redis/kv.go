package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/luma-stream/mediadex/internal/db"
)

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.b().Get().Key(key).Build()
	data, err := s.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// Set stores a value at the given key. ttl <= 0 means no expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	base := s.b().Set().Key(key).Value(string(value))

	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = base.ExSeconds(int64(ttl.Seconds())).Build()
	} else {
		cmd = base.Build()
	}

	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}
