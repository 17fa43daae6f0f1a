package table

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisTable is a Table backed by a Redis database. Keys are stored as
// plain Redis strings under an optional per-table prefix, so several
// tables can share one database without colliding.
type RedisTable struct {
	name   string
	prefix string
	client *redis.Client
}

// RedisConfig holds the settings for one Redis-backed table.
type RedisConfig struct {
	// Name is the table name clients request.
	Name string

	// KeyPrefix is prepended to every lookup key before it is sent to
	// Redis.
	KeyPrefix string
}

// NewRedisTable creates a table over an existing Redis client. The client
// may be shared between tables; Close on the first table closes it.
func NewRedisTable(client *redis.Client, cfg RedisConfig) *RedisTable {
	return &RedisTable{
		name:   cfg.Name,
		prefix: cfg.KeyPrefix,
		client: client,
	}
}

// Name returns the table name.
func (t *RedisTable) Name() string {
	return t.name
}

// Lookup fetches prefix+key from Redis. A missing key is not an error.
func (t *RedisTable) Lookup(ctx context.Context, key string) (string, bool, error) {
	value, err := t.client.Get(ctx, t.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis lookup in table %s: %w", t.name, err)
	}
	return value, true, nil
}

// Close closes the underlying Redis client.
func (t *RedisTable) Close() error {
	return t.client.Close()
}
