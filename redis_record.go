package jsonable

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRecord is a Record stored as a Redis hash: one hash per record,
// one hash field per column.
type RedisRecord struct {
	Client redis.UniversalClient
	Key    string
}

// NewRedisRecord binds a record to the hash at key
func NewRedisRecord(client redis.UniversalClient, key string) *RedisRecord {
	return &RedisRecord{Client: client, Key: key}
}

// Field returns the column as a string, nil when the hash has no such field
func (r *RedisRecord) Field(ctx context.Context, name string) (any, error) {
	val, err := r.Client.HGet(ctx, r.Key, name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis HGET %s %s: %w", r.Key, name, err)
	}
	return val, nil
}

func (r *RedisRecord) SetField(ctx context.Context, name string, value []byte) error {
	if err := r.Client.HSet(ctx, r.Key, name, value).Err(); err != nil {
		return fmt.Errorf("redis HSET %s %s: %w", r.Key, name, err)
	}
	return nil
}

// Exists reports whether the record's hash exists
func (r *RedisRecord) Exists(ctx context.Context) (bool, error) {
	n, err := r.Client.Exists(ctx, r.Key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
