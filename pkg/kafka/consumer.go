// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. The consumer streams raw document records into the
// batch pipeline; the producer publishes JSON-encoded progress events.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/AntoineBreitwillerCSTB/addok/pkg/config"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// Consumer reads document records from a topic as part of a consumer group.
// Offsets are committed by the reader as messages are fetched.
type Consumer struct {
	reader      *kafka.Reader
	idleTimeout time.Duration
	logger      *slog.Logger
}

// NewConsumer creates a Consumer for the given topic. With a positive
// idleTimeout the stream ends once no message arrived for that long, so a
// bulk load drains the topic and exits.
func NewConsumer(cfg config.KafkaConfig, topic string) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:      r,
		idleTimeout: cfg.IdleTimeout,
		logger:      logger.WithComponent("kafka-consumer").With("topic", topic),
	}
}

// Messages yields message values until ctx is cancelled or the idle timeout
// expires; both end the stream without error. Broker failures are yielded
// and end the stream.
func (c *Consumer) Messages(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		c.logger.Info("consumer started")
		for {
			msg, err := c.fetch(ctx)
			if err != nil {
				switch {
				case ctx.Err() != nil:
					c.logger.Info("consumer stopping", "reason", ctx.Err())
				case errors.Is(err, context.DeadlineExceeded):
					c.logger.Info("consumer idle, stopping", "idle_timeout", c.idleTimeout)
				default:
					c.logger.Error("failed to read message", "error", err)
					yield(nil, fmt.Errorf("reading from kafka: %w", err))
				}
				return
			}
			c.logger.Debug("message received",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
				"value_size", len(msg.Value),
			)
			if !yield(msg.Value, nil) {
				return
			}
		}
	}
}

func (c *Consumer) fetch(ctx context.Context) (kafka.Message, error) {
	if c.idleTimeout <= 0 {
		return c.reader.ReadMessage(ctx)
	}
	fetchCtx, cancel := context.WithTimeout(ctx, c.idleTimeout)
	defer cancel()
	return c.reader.ReadMessage(fetchCtx)
}

// Close closes the underlying Kafka reader and commits pending offsets.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
