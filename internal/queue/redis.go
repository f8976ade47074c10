package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	types "FrameForge/pkg"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisQueue treats a queue reference as a list key. Polled messages are
// moved onto "<key>:processing" and only removed from there on Ack. Delayed
// publishes and released messages wait in the "<key>:delayed" sorted set,
// scored by the unix millisecond they become due.
type RedisQueue struct {
	client         *redis.Client
	publishDelay   time.Duration
	redeliverDelay time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

// promoteDue moves every due member of KEYS[1] onto the list KEYS[2].
var promoteDue = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, body in ipairs(due) do
	redis.call('ZREM', KEYS[1], body)
	redis.call('RPUSH', KEYS[2], body)
end
return #due
`)

// release moves ARGV[1] from the processing list KEYS[1] into the delayed
// set KEYS[2]. A message that is no longer in flight is left alone.
var release = redis.NewScript(`
if redis.call('LREM', KEYS[1], 1, ARGV[1]) == 0 then
	return 0
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
return 1
`)

func NewRedisQueue(ctx context.Context, cfg types.QueueConfig, logger *zap.Logger) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisQueueFromClient(client, cfg, logger), nil
}

func NewRedisQueueFromClient(client *redis.Client, cfg types.QueueConfig, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{
		client:         client,
		publishDelay:   time.Duration(cfg.PublishDelaySec) * time.Second,
		redeliverDelay: time.Duration(cfg.Redis.RedeliverDelaySec) * time.Second,
		logger:         logger,
		now:            time.Now,
	}
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func processingKey(queueRef string) string {
	return queueRef + ":processing"
}

func delayedKey(queueRef string) string {
	return queueRef + ":delayed"
}

func (q *RedisQueue) dueAt(delay time.Duration) int64 {
	return q.now().Add(delay).UnixMilli()
}

// Publish appends body to the list, or parks it in the delayed set when a
// publish delay is configured. Identical bodies waiting in the delayed set
// collapse into one entry.
func (q *RedisQueue) Publish(ctx context.Context, queueRef string, body []byte) error {
	if q.publishDelay > 0 {
		err := q.client.ZAdd(ctx, delayedKey(queueRef), redis.Z{Score: float64(q.dueAt(q.publishDelay)), Member: body}).Err()
		if err != nil {
			return fmt.Errorf("failed to schedule on %s: %w", queueRef, err)
		}
		return nil
	}
	if err := q.client.RPush(ctx, queueRef, body).Err(); err != nil {
		return fmt.Errorf("failed to push to %s: %w", queueRef, err)
	}
	return nil
}

func (q *RedisQueue) Poll(ctx context.Context, queueRef string, max int32, wait time.Duration) ([]Message, error) {
	n, err := promoteDue.Run(ctx, q.client, []string{delayedKey(queueRef), queueRef}, q.dueAt(0)).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to promote delayed messages on %s: %w", queueRef, err)
	}
	if n > 0 {
		q.logger.Debug("Promoted delayed messages", zap.String("queue", queueRef), zap.Int("count", n))
	}

	first, err := q.client.BLMove(ctx, queueRef, processingKey(queueRef), "LEFT", "RIGHT", wait).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from %s: %w", queueRef, err)
	}

	msgs := []Message{{Body: first, ReceiptHandle: first}}
	for int32(len(msgs)) < max {
		body, err := q.client.LMove(ctx, queueRef, processingKey(queueRef), "LEFT", "RIGHT").Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				q.logger.Warn("Failed to fill redis batch", zap.String("queue", queueRef), zap.Error(err))
			}
			break
		}
		msgs = append(msgs, Message{Body: body, ReceiptHandle: body})
	}
	return msgs, nil
}

func (q *RedisQueue) Ack(ctx context.Context, queueRef string, msg Message) error {
	if err := q.client.LRem(ctx, processingKey(queueRef), 1, msg.ReceiptHandle).Err(); err != nil {
		return fmt.Errorf("failed to ack message on %s: %w", queueRef, err)
	}
	return nil
}

// Nack gives an in-flight message back. It becomes visible again once the
// redeliver delay has passed.
func (q *RedisQueue) Nack(ctx context.Context, queueRef string, msg Message) error {
	keys := []string{processingKey(queueRef), delayedKey(queueRef)}
	moved, err := release.Run(ctx, q.client, keys, msg.ReceiptHandle, q.dueAt(q.redeliverDelay)).Int()
	if err != nil {
		return fmt.Errorf("failed to release message on %s: %w", queueRef, err)
	}
	if moved == 0 {
		q.logger.Warn("Released message was not in flight", zap.String("queue", queueRef))
	}
	return nil
}

// Recover moves every unacknowledged message back onto the queue. Only safe
// while no other consumer is working the same queue.
func (q *RedisQueue) Recover(ctx context.Context, queueRef string) (int, error) {
	moved := 0
	for {
		_, err := q.client.LMove(ctx, processingKey(queueRef), queueRef, "LEFT", "LEFT").Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return moved, fmt.Errorf("failed to recover %s: %w", queueRef, err)
		}
		moved++
	}
	if moved > 0 {
		q.logger.Info("Recovered unacknowledged messages", zap.String("queue", queueRef), zap.Int("count", moved))
	}
	return moved, nil
}
