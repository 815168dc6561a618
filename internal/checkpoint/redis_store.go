package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis. Each checkpoint is one JSON
// value under
//
//	<prefix>ckpt:<threadID>
//
// Checkpoint expiry maps directly onto the Redis key TTL, so expired
// checkpoints are garbage-collected by Redis itself.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. prefix is optional but recommended
// (e.g. "holdpoint:").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "holdpoint:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) key(threadID string) string {
	return s.prefix + "ckpt:" + threadID
}

func (s *RedisStore) Put(ctx context.Context, ckpt *Checkpoint) error {
	payload, err := json.Marshal(ckpt)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if !ckpt.ExpiresAt.IsZero() {
		ttl = time.Until(ckpt.ExpiresAt)
		if ttl <= 0 {
			// Already past expiry; do not resurrect the key.
			return s.Delete(ctx, ckpt.ThreadID)
		}
	}

	return s.client.Set(ctx, s.key(ckpt.ThreadID), payload, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, threadID string) (*Checkpoint, error) {
	data, err := s.client.Get(ctx, s.key(threadID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var ckpt Checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, err
	}

	if ckpt.Expired(time.Now()) {
		return nil, ErrNotFound
	}

	return &ckpt, nil
}

func (s *RedisStore) Delete(ctx context.Context, threadID string) error {
	return s.client.Del(ctx, s.key(threadID)).Err()
}
