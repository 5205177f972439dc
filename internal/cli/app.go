package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/AntoineBreitwillerCSTB/addok/internal/batch"
	"github.com/AntoineBreitwillerCSTB/addok/internal/docstore"
	"github.com/AntoineBreitwillerCSTB/addok/internal/index"
	"github.com/AntoineBreitwillerCSTB/addok/internal/progress"
	"github.com/AntoineBreitwillerCSTB/addok/internal/source"
	"github.com/AntoineBreitwillerCSTB/addok/internal/text"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/config"
	apperrors "github.com/AntoineBreitwillerCSTB/addok/pkg/errors"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/health"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/kafka"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/metrics"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/postgres"
	pkgredis "github.com/AntoineBreitwillerCSTB/addok/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"

	// Registers the .msgpack decoder.
	_ "github.com/AntoineBreitwillerCSTB/addok/internal/source/msgpack"
)

// app holds the components shared by the commands.
type app struct {
	cfg         *config.Config
	redis       *pkgredis.Client
	docs        docstore.Store
	indexer     *index.Indexer
	metrics     *metrics.Metrics
	stopMetrics func(context.Context) error
}

func newIndexer(cfg config.IndexConfig) (*index.Indexer, error) {
	general, err := text.Lookup(cfg.Processors, cfg.Synonyms)
	if err != nil {
		return nil, fmt.Errorf("processors: %w", err)
	}
	hn, err := text.Lookup(cfg.HousenumberProcessors, cfg.Synonyms)
	if err != nil {
		return nil, fmt.Errorf("housenumber processors: %w", err)
	}
	return index.New(cfg, index.NewCache(general, hn))
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	ix, err := newIndexer(cfg.Index)
	if err != nil {
		return nil, err
	}
	client, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrStore, "%v", err)
	}
	a := &app{cfg: cfg, redis: client, indexer: ix}
	checker := health.NewChecker()
	checker.Register("redis", client.Ping)

	switch cfg.Documents.Backend {
	case "postgres":
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			a.close()
			return nil, apperrors.Newf(apperrors.ErrStore, "%v", err)
		}
		checker.Register("postgres", db.Ping)
		a.docs, err = docstore.NewPostgres(ctx, db, cfg.Documents.Table)
		if err != nil {
			db.Close()
			a.close()
			return nil, err
		}
	default:
		a.docs = docstore.NewRedis(client)
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(prometheus.DefaultRegisterer)
		a.stopMetrics = metrics.StartServer(cfg.Metrics.Port, checker)
		slog.Info("health checks registered", "checks", checker.Names())
	} else {
		a.metrics = metrics.New(prometheus.NewRegistry())
	}
	return a, nil
}

func (a *app) close() {
	if a.stopMetrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.stopMetrics(ctx); err != nil {
			slog.Warn("metrics server shutdown", "error", err)
		}
	}
	if a.docs != nil {
		if err := a.docs.Close(); err != nil {
			slog.Warn("closing document store", "error", err)
		}
	}
	if err := a.redis.Close(); err != nil {
		slog.Warn("closing redis", "error", err)
	}
}

// load runs records through the batch pipeline and logs a summary.
func (a *app) load(ctx context.Context, records source.Records, barOut io.Writer) error {
	sinks, err := progress.Build(a.cfg.Batch.Progress, barOut, func() progress.Publisher {
		return kafka.NewProducer(a.cfg.Kafka, a.cfg.Kafka.Topics.IndexComplete)
	})
	if err != nil {
		return err
	}

	p, err := batch.New(a.cfg.Batch, a.indexer, a.redis, a.docs,
		batch.WithProgress(sinks),
		batch.WithMetrics(a.metrics),
	)
	if err != nil {
		return errors.Join(err, sinks.Close())
	}

	slog.Info("batch started",
		"chunk_size", a.cfg.Batch.ChunkSize,
		"workers", a.cfg.Batch.Workers,
		"throttle", a.cfg.Batch.Throttle,
	)
	stats, runErr := p.Run(ctx, records)
	closeErr := sinks.Close()
	slog.Info("batch finished",
		"records", stats.Records,
		"dropped", stats.Dropped,
		"chunks", stats.Chunks,
		"indexed", stats.Indexed,
		"deindexed", stats.Deindexed,
		"skipped", stats.Skipped,
		"elapsed", stats.Elapsed.Round(time.Millisecond),
	)
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		slog.Warn("closing progress sinks", "error", closeErr)
	}
	return nil
}
