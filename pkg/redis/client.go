// Package redis provides a thin wrapper around go-redis/v9 exposing the
// operations the indexer needs: batched sorted-set and set mutations,
// cardinality queries and whole-hash reads and writes.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/AntoineBreitwillerCSTB/addok/pkg/config"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/resilience"
	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a Redis client and verifies the connection with a PING,
// retrying while the server comes up.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	err := resilience.Retry(ctx, "redis ping", resilience.ConnectConfig(), func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// NewBatch starts a non-transactional pipeline. Mutations are queued until
// Exec.
func (c *Client) NewBatch(ctx context.Context) *Batch {
	return &Batch{pipe: c.rdb.Pipeline(), ctx: ctx}
}

// ZCard returns the number of members of the sorted set at key.
func (c *Client) ZCard(ctx context.Context, key string) (int64, error) {
	return c.rdb.ZCard(ctx, key).Result()
}

// HGetAll returns every field of the hash at key; a missing key yields an
// empty map.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, key).Result()
}

// HashOp is one ordered write of a whole hash: a replacement, or a deletion
// when Fields is nil.
type HashOp struct {
	Key    string
	Fields map[string]string
}

// ApplyHashes replaces or deletes hashes in a single pipeline, in order.
func (c *Client) ApplyHashes(ctx context.Context, ops []HashOp) error {
	if len(ops) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for _, op := range ops {
		pipe.Del(ctx, op.Key)
		if len(op.Fields) == 0 {
			continue
		}
		args := make([]any, 0, 2*len(op.Fields))
		for k, v := range op.Fields {
			args = append(args, k, v)
		}
		pipe.HSet(ctx, op.Key, args...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing %d hashes: %w", len(ops), err)
	}
	return nil
}

// IsNilError reports whether err is a Redis nil (key-not-found) error.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
