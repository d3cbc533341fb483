package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces cache records in Redis.
const redisKeyPrefix = "ghrecon:cache:"

// RedisStore persists cache records in Redis. Records carry no Redis TTL;
// like the SQL backend, they live until replaced or swept, and freshness is
// applied by the manager on read.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed cache store.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{client: client}
}

// Get returns the record for the signature, or ErrMiss when absent.
func (s *RedisStore) Get(ctx context.Context, signature string) (*Record, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+signature).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: signature %s: %v", ErrInvalidRecord, signature, err)
	}

	return &rec, nil
}

// Put stores the record, replacing any prior record for the signature.
func (s *RedisStore) Put(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal cache record: %w", err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+rec.Signature, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Sweep scans the cache namespace and deletes records cached before cutoff.
func (s *RedisStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0

	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return removed, fmt.Errorf("redis get %s: %w", key, err)
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			// Unreadable records are older than any cutoff in practice;
			// sweep is the one place they are removed.
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return removed, fmt.Errorf("redis del %s: %w", key, err)
			}
			removed++
			continue
		}

		if rec.CachedAt.Before(cutoff) {
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return removed, fmt.Errorf("redis del %s: %w", key, err)
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan: %w", err)
	}

	return removed, nil
}
