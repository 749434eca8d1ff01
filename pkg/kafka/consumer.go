// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. The producer serialises events as JSON, while the
// consumer decodes them via a pluggable MessageHandler callback.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/config"
	"github.com/segmentio/kafka-go"
)

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Reader is the part of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader  Reader
	logger  *slog.Logger
	handler MessageHandler

	commitEvery   int
	flushInterval time.Duration
	flush         func(ctx context.Context) error
	uncommitted   []kafka.Message
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithCommitBatch holds offsets back until size messages were handled, or
// until no message arrived for interval, and runs flush before committing
// them. A committed offset therefore never covers work flush has not made
// durable. Without this option every message is committed once handled.
func WithCommitBatch(size int, interval time.Duration, flush func(ctx context.Context) error) ConsumerOption {
	return func(c *Consumer) {
		if size > 0 {
			c.commitEvery = size
		}
		c.flushInterval = interval
		c.flush = flush
	}
}

// NewConsumer creates a Consumer for the given topic and handler. A new
// consumer group starts from the earliest offset so a freshly started term
// indexer replays every published term.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return NewReaderConsumer(r, topic, handler, opts...)
}

// NewReaderConsumer wraps an existing reader.
func NewReaderConsumer(r Reader, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:      r,
		logger:      slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler:     handler,
		commitEvery: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start enters the consume loop, fetching and processing messages until ctx
// is cancelled. A handler error stops the loop; messages handled before it
// are flushed and committed, the failing one is redelivered on the next
// start.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started", "commit_every", c.commitEvery)
	for {
		fetchCtx, cancel := ctx, context.CancelFunc(func() {})
		if len(c.uncommitted) > 0 && c.flushInterval > 0 {
			fetchCtx, cancel = context.WithTimeout(ctx, c.flushInterval)
		}
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return c.commitPending(context.WithoutCancel(ctx))
			}
			if fetchCtx.Err() != nil {
				if err := c.commitPending(ctx); err != nil {
					return err
				}
				continue
			}
			return errors.Join(fmt.Errorf("fetching message: %w", err), c.commitPending(ctx))
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			err = fmt.Errorf("processing message at partition %d offset %d: %w", msg.Partition, msg.Offset, err)
			return errors.Join(err, c.commitPending(context.WithoutCancel(ctx)))
		}
		c.uncommitted = append(c.uncommitted, msg)
		if len(c.uncommitted) >= c.commitEvery {
			if err := c.commitPending(ctx); err != nil {
				return err
			}
		}
	}
}

// commitPending flushes handled work and then commits its offsets. When the
// flush fails nothing is committed and the messages are redelivered.
func (c *Consumer) commitPending(ctx context.Context) error {
	if len(c.uncommitted) == 0 {
		return nil
	}
	msgs := c.uncommitted
	c.uncommitted = nil
	if c.flush != nil {
		if err := c.flush(ctx); err != nil {
			return fmt.Errorf("flushing %d handled messages: %w", len(msgs), err)
		}
	}
	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		last := msgs[len(msgs)-1]
		c.logger.Error("failed to commit messages",
			"count", len(msgs),
			"partition", last.Partition,
			"offset", last.Offset,
			"error", err,
		)
	}
	return nil
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
