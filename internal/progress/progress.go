// Package progress reports per-chunk outcomes of a batch run to the log, a
// terminal progress bar or a Kafka topic.
package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/AntoineBreitwillerCSTB/addok/internal/batch"
	apperrors "github.com/AntoineBreitwillerCSTB/addok/pkg/errors"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/kafka"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/logger"
	"github.com/schollz/progressbar/v3"
)

// Sink is a batch.Progress that must be closed once the run is over.
type Sink interface {
	batch.Progress
	Close() error
}

// Log writes one structured line per chunk.
type Log struct {
	logger *slog.Logger
}

func NewLog() *Log {
	return &Log{logger: logger.WithComponent("progress")}
}

func (l *Log) ChunkDone(r batch.ChunkReport) {
	attrs := []any{
		"chunk", r.Seq,
		"documents", r.Count,
		"indexed", r.Result.Indexed,
		"deindexed", r.Result.Deindexed,
		"skipped", r.Result.Skipped,
		"elapsed", r.Elapsed.Round(time.Millisecond),
	}
	if r.Err != nil {
		l.logger.Error("chunk failed", append(attrs, "error", r.Err)...)
		return
	}
	l.logger.Info("chunk done", attrs...)
}

func (l *Log) Close() error { return nil }

// Bar shows a spinner counting processed documents; the total of a stream is
// not known in advance.
type Bar struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func NewBar(w io.Writer) *Bar {
	return &Bar{bar: progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)}
}

func (b *Bar) ChunkDone(r batch.ChunkReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bar.Add(r.Count)
}

func (b *Bar) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bar.Finish()
}

// ChunkIndexed is the event published for every chunk.
type ChunkIndexed struct {
	Seq       int       `json:"seq"`
	Documents int       `json:"documents"`
	Indexed   int       `json:"indexed"`
	Deindexed int       `json:"deindexed"`
	Skipped   int       `json:"skipped"`
	StartedAt time.Time `json:"started_at"`
	ElapsedMs int64     `json:"elapsed_ms"`
	Error     string    `json:"error,omitempty"`
}

// Publisher is implemented by *kafka.Producer.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
	Close() error
}

// kafkaFlushSize is the number of buffered events that triggers a publish.
const kafkaFlushSize = 16

// Kafka publishes a ChunkIndexed event per chunk. Events are buffered and
// sent in batches; Close flushes the rest and closes the publisher.
type Kafka struct {
	mu      sync.Mutex
	pub     Publisher
	pending []kafka.Event
	timeout time.Duration
	logger  *slog.Logger
}

func NewKafka(pub Publisher) *Kafka {
	return &Kafka{
		pub:     pub,
		timeout: 10 * time.Second,
		logger:  logger.WithComponent("progress-kafka"),
	}
}

func (k *Kafka) ChunkDone(r batch.ChunkReport) {
	ev := ChunkIndexed{
		Seq:       r.Seq,
		Documents: r.Count,
		Indexed:   r.Result.Indexed,
		Deindexed: r.Result.Deindexed,
		Skipped:   r.Result.Skipped,
		StartedAt: r.Started.UTC(),
		ElapsedMs: r.Elapsed.Milliseconds(),
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.pending = append(k.pending, kafka.Event{Key: fmt.Sprintf("chunk-%d", r.Seq), Value: ev})
	if len(k.pending) >= kafkaFlushSize {
		if err := k.flush(); err != nil {
			k.logger.Warn("publishing progress failed", "error", err)
		}
	}
}

func (k *Kafka) flush() error {
	if len(k.pending) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()
	err := k.pub.PublishBatch(ctx, k.pending)
	k.pending = k.pending[:0]
	return err
}

func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return errors.Join(k.flush(), k.pub.Close())
}

// Multi fans reports out to several sinks.
type Multi []Sink

func (m Multi) ChunkDone(r batch.ChunkReport) {
	for _, s := range m {
		s.ChunkDone(r)
	}
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Build creates the sinks named in names. newPublisher is called only when
// "kafka" is requested.
func Build(names []string, w io.Writer, newPublisher func() Publisher) (Multi, error) {
	sinks := make(Multi, 0, len(names))
	for _, name := range names {
		switch name {
		case "log":
			sinks = append(sinks, NewLog())
		case "bar":
			sinks = append(sinks, NewBar(w))
		case "kafka":
			sinks = append(sinks, NewKafka(newPublisher()))
		default:
			return nil, apperrors.Newf(apperrors.ErrInvalidConfig, "unknown progress sink %q", name)
		}
	}
	return sinks, nil
}
