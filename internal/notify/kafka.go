package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"storefront/internal/domain"
	applog "storefront/internal/log"
)

// MessageWriter is the part of *kafka.Writer the dispatcher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds an async writer; failures surface through Completion.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				applog.Error(nil, "notify.kafka.write", err, map[string]any{"count": len(msgs)})
			}
		},
	}
}

func NewKafkaReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        group,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        time.Second,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: 5 * time.Second,
	})
}

// KafkaDispatcher publishes alerts as JSON keyed by product id, so alerts
// for one product stay ordered on one partition.
type KafkaDispatcher struct {
	w MessageWriter
}

func NewKafkaDispatcher(w MessageWriter) *KafkaDispatcher { return &KafkaDispatcher{w: w} }

func (d *KafkaDispatcher) Dispatch(ctx context.Context, a domain.LowStockAlert) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("notify: encode alert: %w", err)
	}
	return d.w.WriteMessages(ctx, kafka.Message{Key: []byte(a.ProductID), Value: b})
}

func (d *KafkaDispatcher) Close() error { return d.w.Close() }

// KafkaConsumer feeds alerts from the topic to a Handler. A message is
// committed once handled, or once it is known to be undecodable.
type KafkaConsumer struct {
	r      MessageReader
	handle Handler
}

func NewKafkaConsumer(r MessageReader, h Handler) *KafkaConsumer {
	return &KafkaConsumer{r: r, handle: h}
}

// Run blocks until ctx is cancelled or the reader fails.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("notify: fetch: %w", err)
		}

		var a domain.LowStockAlert
		if err := json.Unmarshal(m.Value, &a); err != nil {
			applog.Error(nil, "notify.kafka.decode", err, map[string]any{"offset": m.Offset, "partition": m.Partition})
		} else {
			deliver(ctx, c.handle, a)
		}

		if err := c.r.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("notify: commit: %w", err)
		}
	}
}

func (c *KafkaConsumer) Close() error { return c.r.Close() }
