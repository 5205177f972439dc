package docstore

import (
	"context"
	"fmt"

	"github.com/AntoineBreitwillerCSTB/addok/internal/index"
	pkgredis "github.com/AntoineBreitwillerCSTB/addok/pkg/redis"
)

// Redis stores each document as a hash at its document key, next to the
// index structures.
type Redis struct {
	client *pkgredis.Client
}

func NewRedis(client *pkgredis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Fetch(ctx context.Context, key string) (index.RawDocument, error) {
	fields, err := r.client.HGetAll(ctx, key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading document %s: %w", key, err)
	}
	return index.RawDocument(fields), nil
}

func (r *Redis) Apply(ctx context.Context, ops []Op) error {
	hashes := make([]pkgredis.HashOp, 0, len(ops))
	for _, op := range ops {
		hashes = append(hashes, pkgredis.HashOp{Key: op.Key, Fields: op.Raw})
	}
	return r.client.ApplyHashes(ctx, hashes)
}

// Close is a no-op: the client is shared with the index writer.
func (r *Redis) Close() error {
	return nil
}
