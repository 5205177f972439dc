// Package batch drives bulk loads: it groups the input stream into chunks,
// processes chunks on a bounded pool of workers with a minimum interval
// between dispatches, and flushes each chunk's index writes to Redis in one
// pipeline.
package batch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/AntoineBreitwillerCSTB/addok/internal/docstore"
	"github.com/AntoineBreitwillerCSTB/addok/internal/index"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/config"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/logger"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/metrics"
	pkgredis "github.com/AntoineBreitwillerCSTB/addok/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ChunkReport describes one processed chunk.
type ChunkReport struct {
	Seq     int
	Count   int
	Started time.Time
	Elapsed time.Duration
	Result  ChunkResult
	Err     error
}

// Progress receives a report per chunk, from worker goroutines.
type Progress interface {
	ChunkDone(ChunkReport)
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(ChunkReport)

func (f ProgressFunc) ChunkDone(r ChunkReport) { f(r) }

// Stats summarizes a run.
type Stats struct {
	Records   int64
	Dropped   int64
	Chunks    int64
	Indexed   int64
	Deindexed int64
	Skipped   int64
	Elapsed   time.Duration
}

type runStats struct {
	records, dropped, chunks    atomic.Int64
	indexed, deindexed, skipped atomic.Int64
}

// Pipeline is safe to Run once at a time.
type Pipeline struct {
	cfg        config.BatchConfig
	indexer    *index.Indexer
	client     *pkgredis.Client
	docs       docstore.Store
	batchProcs []Processor
	docProcs   []Processor
	progress   Progress
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithProgress sets the per-chunk progress sink.
func WithProgress(p Progress) Option {
	return func(pl *Pipeline) { pl.progress = p }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(pl *Pipeline) { pl.metrics = m }
}

// New wires a pipeline writing index structures through client and canonical
// documents through docs.
func New(cfg config.BatchConfig, ix *index.Indexer, client *pkgredis.Client, docs docstore.Store, opts ...Option) (*Pipeline, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	batchProcs, err := LookupProcessors(cfg.BatchProcessors, ix)
	if err != nil {
		return nil, fmt.Errorf("batch processors: %w", err)
	}
	docProcs, err := LookupProcessors(cfg.DocumentProcessors, ix)
	if err != nil {
		return nil, fmt.Errorf("document processors: %w", err)
	}
	p := &Pipeline{
		cfg:        cfg,
		indexer:    ix,
		client:     client,
		docs:       docs,
		batchProcs: batchProcs,
		docProcs:   docProcs,
		progress:   ProgressFunc(func(ChunkReport) {}),
		logger:     logger.WithComponent("batch"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.New(prometheus.NewRegistry())
	}
	return p, nil
}

// drainTimeout bounds the flush of documents buffered when a run is
// interrupted.
const drainTimeout = 30 * time.Second

// Run consumes records until exhausted. A nil document is a record the
// decoder could not read and is dropped; a non-nil error ends the run.
// Chunks are dispatched in input order, no faster than one per throttle
// interval, and complete in any order. The first chunk failure stops further
// dispatches; chunks already running finish.
//
// Cancelling ctx stops dispatching. Documents already read are still written,
// as one last chunk bounded by drainTimeout.
func (p *Pipeline) Run(ctx context.Context, records iter.Seq2[index.Document, error]) (Stats, error) {
	start := time.Now()
	var st runStats
	g, gctx := errgroup.WithContext(ctx)
	work := context.WithoutCancel(ctx)
	slots := semaphore.NewWeighted(int64(p.cfg.Workers))
	limiter := rate.NewLimiter(rate.Every(p.cfg.Throttle), 1)
	seq := 0

	dispatch := func(docs []index.Document) error {
		if err := slots.Acquire(gctx, 1); err != nil {
			return err
		}
		now := time.Now()
		r := limiter.ReserveN(now, 1)
		delay := r.DelayFrom(now)
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-gctx.Done():
				t.Stop()
				r.Cancel()
				slots.Release(1)
				return gctx.Err()
			}
		}
		n := seq
		seq++
		started := now.Add(delay)
		g.Go(func() error {
			defer slots.Release(1)
			return p.runChunk(work, n, started, docs, &st)
		})
		return nil
	}

	var readErr, dispatchErr error
	exhausted := true
	chunk := make([]index.Document, 0, p.cfg.ChunkSize)
	for doc, err := range records {
		if err != nil {
			readErr = fmt.Errorf("reading input: %w", err)
			break
		}
		st.records.Add(1)
		if doc = apply(p.batchProcs, doc); doc == nil {
			st.dropped.Add(1)
			p.metrics.RecordsTotal.WithLabelValues("dropped").Inc()
			continue
		}
		p.metrics.RecordsTotal.WithLabelValues("accepted").Inc()
		chunk = append(chunk, doc)
		if len(chunk) < p.cfg.ChunkSize {
			continue
		}
		if dispatchErr = dispatch(chunk); dispatchErr != nil {
			exhausted = false
			break
		}
		chunk = make([]index.Document, 0, p.cfg.ChunkSize)
	}
	if readErr == nil && dispatchErr == nil && len(chunk) > 0 {
		if dispatchErr = dispatch(chunk); dispatchErr == nil {
			chunk = nil
		}
	}
	waitErr := g.Wait()

	if waitErr == nil && readErr == nil && len(chunk) > 0 && ctx.Err() != nil {
		if err := p.drain(ctx, seq, chunk, &st); err != nil {
			waitErr = err
		} else if exhausted {
			dispatchErr = nil
		}
	}

	stats := Stats{
		Records:   st.records.Load(),
		Dropped:   st.dropped.Load(),
		Chunks:    st.chunks.Load(),
		Indexed:   st.indexed.Load(),
		Deindexed: st.deindexed.Load(),
		Skipped:   st.skipped.Load(),
		Elapsed:   time.Since(start),
	}
	p.metrics.CachedTokenized.Set(float64(p.indexer.Cache().Len()))
	switch {
	case waitErr != nil:
		return stats, waitErr
	case readErr != nil:
		return stats, readErr
	case dispatchErr != nil && ctx.Err() != nil:
		return stats, fmt.Errorf("run interrupted: %w", context.Cause(ctx))
	case dispatchErr != nil:
		return stats, fmt.Errorf("dispatching chunk: %w", dispatchErr)
	}
	return stats, nil
}

// drain writes the chunk left over by an interrupted run.
func (p *Pipeline) drain(ctx context.Context, seq int, docs []index.Document, st *runStats) error {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	p.logger.Info("flushing buffered documents", "documents", len(docs), "reason", context.Cause(ctx))
	return p.runChunk(dctx, seq, time.Now(), docs, st)
}

func (p *Pipeline) runChunk(ctx context.Context, seq int, started time.Time, docs []index.Document, st *runStats) error {
	p.metrics.ChunksInFlight.Inc()
	defer p.metrics.ChunksInFlight.Dec()

	res, err := p.ProcessDocuments(withChunk(ctx, seq), docs)
	elapsed := time.Since(started)

	st.chunks.Add(1)
	st.indexed.Add(int64(res.Indexed))
	st.deindexed.Add(int64(res.Deindexed))
	st.skipped.Add(int64(res.Skipped))
	p.metrics.ChunkDuration.Observe(elapsed.Seconds())
	p.metrics.DocumentsTotal.WithLabelValues("indexed").Add(float64(res.Indexed))
	p.metrics.DocumentsTotal.WithLabelValues("deindexed").Add(float64(res.Deindexed))
	p.metrics.DocumentsTotal.WithLabelValues("skipped").Add(float64(res.Skipped))
	p.metrics.DocumentsTotal.WithLabelValues("ignored").Add(float64(res.Ignored))
	if err != nil {
		p.metrics.ChunksTotal.WithLabelValues("error").Inc()
	} else {
		p.metrics.ChunksTotal.WithLabelValues("ok").Inc()
		p.metrics.WritesTotal.Add(float64(res.Writes))
	}

	p.progress.ChunkDone(ChunkReport{
		Seq:     seq,
		Count:   len(docs),
		Started: started,
		Elapsed: elapsed,
		Result:  res,
		Err:     err,
	})
	if err != nil {
		p.logger.Error("chunk failed", "chunk", seq, "documents", len(docs), "error", err)
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("chunk %d: %w", seq, err)
	}
	return nil
}
