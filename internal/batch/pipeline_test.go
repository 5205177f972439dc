package batch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/AntoineBreitwillerCSTB/addok/internal/docstore"
	"github.com/AntoineBreitwillerCSTB/addok/internal/index"
	"github.com/AntoineBreitwillerCSTB/addok/internal/text"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/config"
	pkgredis "github.com/AntoineBreitwillerCSTB/addok/pkg/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	mr       *miniredis.Miniredis
	client   *pkgredis.Client
	indexer  *index.Indexer
	store    docstore.Store
	reports  []ChunkReport
	reportMu sync.Mutex
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := pkgredis.NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	cfg := config.DefaultIndex()
	general, err := text.Lookup(cfg.Processors, cfg.Synonyms)
	require.NoError(t, err)
	hn, err := text.Lookup(cfg.HousenumberProcessors, cfg.Synonyms)
	require.NoError(t, err)
	ix, err := index.New(cfg, index.NewCache(general, hn))
	require.NoError(t, err)

	return &harness{mr: mr, client: client, indexer: ix, store: docstore.NewRedis(client)}
}

func (h *harness) pipeline(t *testing.T, mutate ...func(*config.BatchConfig)) *Pipeline {
	t.Helper()
	cfg := config.Default().Batch
	cfg.Throttle = 0
	cfg.Workers = 2
	for _, fn := range mutate {
		fn(&cfg)
	}
	p, err := New(cfg, h.indexer, h.client, h.store, WithProgress(ProgressFunc(func(r ChunkReport) {
		h.reportMu.Lock()
		defer h.reportMu.Unlock()
		h.reports = append(h.reports, r)
	})))
	require.NoError(t, err)
	return p
}

func records(docs ...index.Document) iter.Seq2[index.Document, error] {
	return func(yield func(index.Document, error) bool) {
		for _, d := range docs {
			if !yield(d, nil) {
				return
			}
		}
	}
}

func rivoli() index.Document {
	return index.Document{
		"id":   "1",
		"type": "street",
		"name": "Rue de Rivoli",
		"city": "Paris",
		"lat":  48.8566,
		"lon":  2.3522,
		"housenumbers": map[string]any{
			"1":     map[string]any{"lat": 48.85, "lon": 2.35},
			"2 bis": map[string]any{"lat": 48.86, "lon": 2.34},
		},
	}
}

func TestRunIndexesAndStoresDocuments(t *testing.T) {
	h := newHarness(t)
	stats, err := h.pipeline(t).Run(context.Background(), records(rivoli()))
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Records)
	assert.Equal(t, int64(1), stats.Indexed)
	assert.Equal(t, int64(1), stats.Chunks)

	members, err := h.mr.ZMembers("w|rivoli")
	require.NoError(t, err)
	assert.Equal(t, []string{"d|1"}, members)
	assert.True(t, h.mr.Exists("g|u09tvw0f"))
	assert.True(t, h.mr.Exists("f|type|street"))
	assert.Equal(t, "Rue de Rivoli", h.mr.HGet("d|1", "name"))

	n, err := h.indexer.TokenFrequency(context.Background(), h.client, "rivoli")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRunUpdateReplacesPreviousEntries(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline(t).Run(context.Background(), records(rivoli()))
	require.NoError(t, err)

	update := index.Document{
		"id":      "1",
		"_action": "update",
		"type":    "street",
		"name":    "Rue de la Paix",
		"lat":     48.8686,
		"lon":     2.3314,
	}
	stats, err := h.pipeline(t).Run(context.Background(), records(update))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Deindexed)
	assert.Equal(t, int64(1), stats.Indexed)

	assert.False(t, h.mr.Exists("w|rivoli"))
	assert.False(t, h.mr.Exists("g|u09tvw0f"))
	assert.False(t, h.mr.Exists("f|type|housenumber"))
	members, err := h.mr.ZMembers("w|paix")
	require.NoError(t, err)
	assert.Equal(t, []string{"d|1"}, members)
	assert.Equal(t, "Rue de la Paix", h.mr.HGet("d|1", "name"))
	assert.Empty(t, h.mr.HGet("d|1", "city"))
}

func TestRunDeleteRemovesEverything(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline(t).Run(context.Background(), records(rivoli()))
	require.NoError(t, err)
	require.NotEmpty(t, h.mr.Keys())

	del := index.Document{"id": "1", "_action": "delete"}
	stats, err := h.pipeline(t).Run(context.Background(), records(del))
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Deindexed)
	assert.Empty(t, h.mr.Keys())
}

func TestRunUpdateTwiceInOneChunk(t *testing.T) {
	h := newHarness(t)
	first := index.Document{"id": "7", "name": "Avenue Foch", "lat": 48.87, "lon": 2.28}
	second := index.Document{"id": "7", "_action": "update", "name": "Place Vendome", "lat": 48.867, "lon": 2.329}

	_, err := h.pipeline(t).Run(context.Background(), records(first, second))
	require.NoError(t, err)

	assert.False(t, h.mr.Exists("w|foch"))
	assert.True(t, h.mr.Exists("w|vendome"))
}

func TestRunSkipsInvalidDocuments(t *testing.T) {
	h := newHarness(t)
	noName := index.Document{"id": "2", "city": "Lyon", "lat": 45.76, "lon": 4.83}
	noCoords := index.Document{"id": "3", "name": "Quai Saint-Antoine"}

	stats, err := h.pipeline(t).Run(context.Background(), records(noName, noCoords))
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.Skipped)
	assert.Zero(t, stats.Indexed)
	assert.Empty(t, h.mr.Keys())
}

func TestRunDropsUnreadableRecords(t *testing.T) {
	h := newHarness(t)
	stats, err := h.pipeline(t).Run(context.Background(), records(nil, index.Document{"name": "x"}, rivoli()))
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Records)
	assert.Equal(t, int64(2), stats.Dropped)
	assert.Equal(t, int64(1), stats.Indexed)
}

func TestRunIgnoresUnknownActions(t *testing.T) {
	h := newHarness(t)
	doc := rivoli()
	doc["_action"] = "merge"

	stats, err := h.pipeline(t).Run(context.Background(), records(doc))
	require.NoError(t, err)

	assert.Zero(t, stats.Indexed)
	assert.Empty(t, h.mr.Keys())
	require.Len(t, h.reports, 1)
	assert.Equal(t, 1, h.reports[0].Result.Ignored)
}

func TestRunThrottlesChunkDispatch(t *testing.T) {
	const throttle = 50 * time.Millisecond
	h := newHarness(t)
	p := h.pipeline(t, func(c *config.BatchConfig) {
		c.Throttle = throttle
		c.Workers = 4
	})

	docs := make([]index.Document, 2500)
	for i := range docs {
		docs[i] = index.Document{
			"id":   fmt.Sprint(i),
			"name": fmt.Sprintf("Rue %d", i),
			"lat":  48.8,
			"lon":  2.3,
		}
	}
	stats, err := p.Run(context.Background(), records(docs...))
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Chunks)
	assert.Equal(t, int64(2500), stats.Indexed)

	slices.SortFunc(h.reports, func(a, b ChunkReport) int { return a.Seq - b.Seq })
	require.Len(t, h.reports, 3)
	assert.Equal(t, []int{1000, 1000, 500}, []int{h.reports[0].Count, h.reports[1].Count, h.reports[2].Count})
	for i := 1; i < len(h.reports); i++ {
		gap := h.reports[i].Started.Sub(h.reports[i-1].Started)
		// Reservations are computed in float seconds.
		assert.GreaterOrEqual(t, gap, throttle-time.Microsecond, "chunk %d dispatched too early", i)
	}
}

func TestRunStopsOnReadError(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("truncated input")
	input := func(yield func(index.Document, error) bool) {
		if !yield(rivoli(), nil) {
			return
		}
		yield(nil, boom)
	}

	_, err := h.pipeline(t).Run(context.Background(), input)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRunFlushesBufferedDocumentsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// A consumer stream ends quietly once its context is cancelled.
	input := func(yield func(index.Document, error) bool) {
		if !yield(rivoli(), nil) {
			return
		}
		cancel()
	}

	stats, err := h.pipeline(t).Run(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Records)
	assert.Equal(t, int64(1), stats.Chunks)
	assert.Equal(t, int64(1), stats.Indexed)
	assert.True(t, h.mr.Exists("w|rivoli"))
	assert.Equal(t, "Rue de Rivoli", h.mr.HGet("d|1", "name"))
}

func TestRunInterruptedMidStream(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	input := func(yield func(index.Document, error) bool) {
		if !yield(index.Document{"id": "7", "name": "Avenue Foch", "lat": 48.87, "lon": 2.28}, nil) {
			return
		}
		cancel()
		for i := range 5 {
			doc := index.Document{"id": fmt.Sprint(10 + i), "name": "Place Vendome", "lat": 48.867, "lon": 2.329}
			if !yield(doc, nil) {
				return
			}
		}
	}
	p := h.pipeline(t, func(c *config.BatchConfig) {
		c.ChunkSize = 2
		c.Workers = 1
	})

	stats, err := p.Run(ctx, input)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(2), stats.Records)
	assert.Equal(t, int64(2), stats.Indexed)
	assert.True(t, h.mr.Exists("w|foch"))
	assert.True(t, h.mr.Exists("d|10"))
	assert.False(t, h.mr.Exists("d|11"))
}

type failingStore struct {
	docstore.Store
	err error
}

func (f failingStore) Apply(context.Context, []docstore.Op) error { return f.err }

func TestRunReportsChunkFailure(t *testing.T) {
	h := newHarness(t)
	storeErr := errors.New("disk full")
	h.store = failingStore{Store: h.store, err: storeErr}
	p := h.pipeline(t, func(c *config.BatchConfig) {
		c.ChunkSize = 1
		c.Workers = 1
	})

	_, err := p.Run(context.Background(), records(rivoli()))
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	require.Len(t, h.reports, 1)
	assert.Error(t, h.reports[0].Err)
}

func TestNewRejectsUnknownProcessor(t *testing.T) {
	h := newHarness(t)
	cfg := config.Default().Batch
	cfg.DocumentProcessors = []string{"geocode"}

	_, err := New(cfg, h.indexer, h.client, h.store)
	assert.Error(t, err)
}
