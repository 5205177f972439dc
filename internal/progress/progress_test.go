package progress

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/AntoineBreitwillerCSTB/addok/internal/batch"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	closed  bool
	err     error
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]kafka.Event(nil), events...))
	return f.err
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func report(seq int) batch.ChunkReport {
	return batch.ChunkReport{
		Seq:     seq,
		Count:   1000,
		Started: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Elapsed: 1500 * time.Millisecond,
		Result:  batch.ChunkResult{Indexed: 990, Skipped: 10},
	}
}

func TestKafkaBuffersAndFlushes(t *testing.T) {
	pub := &fakePublisher{}
	k := NewKafka(pub)

	for i := range kafkaFlushSize + 3 {
		k.ChunkDone(report(i))
	}
	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0], kafkaFlushSize)

	require.NoError(t, k.Close())
	require.Len(t, pub.batches, 2)
	assert.Len(t, pub.batches[1], 3)
	assert.True(t, pub.closed)

	first := pub.batches[0][0]
	assert.Equal(t, "chunk-0", first.Key)
	ev, ok := first.Value.(ChunkIndexed)
	require.True(t, ok)
	assert.Equal(t, 990, ev.Indexed)
	assert.Equal(t, int64(1500), ev.ElapsedMs)
	assert.Empty(t, ev.Error)
}

func TestKafkaCarriesChunkError(t *testing.T) {
	pub := &fakePublisher{}
	k := NewKafka(pub)
	r := report(4)
	r.Err = errors.New("redis unavailable")
	k.ChunkDone(r)
	require.NoError(t, k.Close())

	ev := pub.batches[0][0].Value.(ChunkIndexed)
	assert.Equal(t, "redis unavailable", ev.Error)
}

func TestKafkaCloseReportsPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	k := NewKafka(pub)
	k.ChunkDone(report(0))
	assert.Error(t, k.Close())
	assert.True(t, pub.closed)
}

func TestBarRenders(t *testing.T) {
	var out bytes.Buffer
	b := NewBar(&out)
	b.ChunkDone(report(0))
	b.ChunkDone(report(1))
	require.NoError(t, b.Close())
	assert.NotZero(t, out.Len())
}

func TestBuild(t *testing.T) {
	pub := &fakePublisher{}
	sinks, err := Build([]string{"log", "bar", "kafka"}, io.Discard, func() Publisher { return pub })
	require.NoError(t, err)
	require.Len(t, sinks, 3)

	sinks.ChunkDone(report(0))
	require.NoError(t, sinks.Close())
	assert.Len(t, pub.batches, 1)

	_, err = Build([]string{"email"}, io.Discard, nil)
	assert.Error(t, err)
}
