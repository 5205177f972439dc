package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Batch queues index mutations on a pipeline. It is flushed in one round trip
// and is not atomic: a failure mid-flush can leave it partially applied.
// A Batch must not be shared between goroutines.
type Batch struct {
	pipe redis.Pipeliner
	ctx  context.Context
}

func (b *Batch) ZAdd(key string, score float64, member string) {
	b.pipe.ZAdd(b.ctx, key, redis.Z{Score: score, Member: member})
}

func (b *Batch) ZRem(key string, member string) {
	b.pipe.ZRem(b.ctx, key, member)
}

func (b *Batch) SAdd(key string, member string) {
	b.pipe.SAdd(b.ctx, key, member)
}

func (b *Batch) SRem(key string, member string) {
	b.pipe.SRem(b.ctx, key, member)
}

// Len returns the number of queued commands.
func (b *Batch) Len() int {
	return b.pipe.Len()
}

// Exec sends every queued command and reports the first failure.
func (b *Batch) Exec(ctx context.Context) error {
	n := b.pipe.Len()
	if n == 0 {
		return nil
	}
	if _, err := b.pipe.Exec(ctx); err != nil {
		return fmt.Errorf("flushing pipeline of %d commands: %w", n, err)
	}
	return nil
}
