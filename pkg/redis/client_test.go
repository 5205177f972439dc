package redis

import (
	"context"
	"testing"

	"github.com/AntoineBreitwillerCSTB/addok/pkg/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestBatchQueuesUntilExec(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	b := c.NewBatch(ctx)
	b.ZAdd("w|paris", 1.5, "d|1")
	b.SAdd("g|u09tvw0f", "d|1")
	assert.Equal(t, 2, b.Len())
	assert.False(t, mr.Exists("w|paris"), "nothing is sent before Exec")

	require.NoError(t, b.Exec(ctx))
	score, err := mr.ZScore("w|paris", "d|1")
	require.NoError(t, err)
	assert.Equal(t, 1.5, score)
	ok, err := mr.SIsMember("g|u09tvw0f", "d|1")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := c.ZCard(ctx, "w|paris")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestBatchRemovals(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	mr.ZAdd("w|paris", 1, "d|1")
	mr.SAdd("f|type|street", "d|1")

	b := c.NewBatch(ctx)
	b.ZRem("w|paris", "d|1")
	b.SRem("f|type|street", "d|1")
	require.NoError(t, b.Exec(ctx))

	assert.False(t, mr.Exists("w|paris"))
	assert.False(t, mr.Exists("f|type|street"))
}

func TestEmptyBatchExec(t *testing.T) {
	c, _ := newTestClient(t)
	assert.NoError(t, c.NewBatch(context.Background()).Exec(context.Background()))
}

func TestApplyHashes(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	mr.HSet("d|1", "stale", "x")

	err := c.ApplyHashes(ctx, []HashOp{
		{Key: "d|1", Fields: map[string]string{"id": "1", "name": "rue de Rivoli"}},
		{Key: "d|2", Fields: map[string]string{"id": "2"}},
		{Key: "d|2"},
	})
	require.NoError(t, err)

	got, err := c.HGetAll(ctx, "d|1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "1", "name": "rue de Rivoli"}, got)
	assert.False(t, mr.Exists("d|2"))

	missing, err := c.HGetAll(ctx, "d|404")
	require.NoError(t, err)
	assert.Empty(t, missing)
}
