package events

import (
	"context"
	"log"

	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one activity message, keyed by shopper id.
type MessageHandler func(ctx context.Context, key, value []byte) error

// Consumer reads storefront activity events from Kafka. Each worker binary
// joins its own consumer group so they fan out independently.
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Consume reads messages until the context is canceled. A handler failure
// is logged and the message is skipped; the loop keeps going.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("[Events] Failed to read activity message: %v", err)
				continue
			}

			if err := handler(ctx, msg.Key, msg.Value); err != nil {
				log.Printf("[Events] Handler failed for key %s: %v", msg.Key, err)
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
