// Package metrics defines the Prometheus collectors of the batch indexer and
// exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors of a batch run.
type Metrics struct {
	RecordsTotal    *prometheus.CounterVec
	DocumentsTotal  *prometheus.CounterVec
	ChunksTotal     *prometheus.CounterVec
	ChunkDuration   prometheus.Histogram
	WritesTotal     prometheus.Counter
	ChunksInFlight  prometheus.Gauge
	CachedTokenized prometheus.Gauge
}

// New creates the collectors and registers them with reg. Tests pass a fresh
// prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "addok_records_total",
				Help: "Input records by outcome (accepted, dropped).",
			},
			[]string{"status"},
		),
		DocumentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "addok_documents_total",
				Help: "Documents by operation (indexed, deindexed, skipped, ignored).",
			},
			[]string{"operation"},
		),
		ChunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "addok_chunks_total",
				Help: "Processed chunks by status.",
			},
			[]string{"status"},
		),
		ChunkDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "addok_chunk_duration_seconds",
				Help:    "Wall-clock time to process and flush one chunk.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		WritesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "addok_pipeline_writes_total",
				Help: "Index mutations sent to Redis.",
			},
		),
		ChunksInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "addok_chunks_in_flight",
				Help: "Chunks currently being processed.",
			},
		),
		CachedTokenized: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "addok_tokenizer_cache_entries",
				Help: "Strings memoized by the tokenizer cache.",
			},
		),
	}

	reg.MustRegister(
		m.RecordsTotal,
		m.DocumentsTotal,
		m.ChunksTotal,
		m.ChunkDuration,
		m.WritesTotal,
		m.ChunksInFlight,
		m.CachedTokenized,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
