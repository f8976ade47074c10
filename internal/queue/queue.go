package queue

import (
	"context"
	"fmt"
	"time"

	types "FrameForge/pkg"

	"go.uber.org/zap"
)

// Message is one delivery received from a queue.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Queue is the transport the pipeline publishes to and the consumer polls.
type Queue interface {
	Publish(ctx context.Context, queueRef string, body []byte) error
	// Poll blocks up to wait for at most max messages.
	Poll(ctx context.Context, queueRef string, max int32, wait time.Duration) ([]Message, error)
	// Ack removes a delivered message so it is not redelivered.
	Ack(ctx context.Context, queueRef string, msg Message) error
	// Nack hands a delivered message back for a later redelivery.
	Nack(ctx context.Context, queueRef string, msg Message) error
}

func NewQueue(ctx context.Context, cfg types.QueueConfig, logger *zap.Logger) (Queue, error) {
	switch cfg.Type {
	case "sqs":
		return NewSQSQueue(ctx, cfg)
	case "redis":
		return NewRedisQueue(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported queue backend: %s", cfg.Type)
	}
}
