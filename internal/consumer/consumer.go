package consumer

import (
	"context"
	"errors"
	"time"

	"FrameForge/internal/config"
	"FrameForge/internal/job"
	"FrameForge/internal/pipeline"
	"FrameForge/internal/queue"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	ResultProcessed = "processed"
	ResultFailed    = "failed"
	ResultRejected  = "rejected"
	ResultMalformed = "malformed"
	ResultRedeliver = "redeliver"
)

// Runner takes a job to a terminal state. Both the Orchestrator and the
// Temporal dispatcher satisfy it.
type Runner interface {
	Run(ctx context.Context, j *job.Job) error
}

// Loop polls the source queue and hands every message to a Runner.
type Loop struct {
	queue  queue.Queue
	runner Runner
	cfg    *config.Config
	logger *zap.Logger
}

func NewLoop(q queue.Queue, runner Runner, cfg *config.Config, logger *zap.Logger) *Loop {
	return &Loop{
		queue:  q,
		runner: runner,
		cfg:    cfg,
		logger: logger.Named("consumer"),
	}
}

// Run polls until ctx is cancelled. Jobs already started when ctx is
// cancelled are finished; no new message is picked up afterwards.
func (l *Loop) Run(ctx context.Context) error {
	c := l.cfg.Consumer
	wait := time.Duration(c.WaitTimeSec) * time.Second
	l.logger.Info("Consumer started",
		zap.String("queue", l.cfg.Queue.SourceQueue),
		zap.Int32("batch_size", c.BatchSize),
		zap.Duration("wait", wait),
		zap.Int("concurrency", c.Concurrency),
	)

	for {
		if ctx.Err() != nil {
			l.logger.Info("Consumer stopped")
			return nil
		}

		msgs, err := l.queue.Poll(ctx, l.cfg.Queue.SourceQueue, c.BatchSize, wait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			l.logger.Error("Failed to poll queue", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(c.ErrorBackoffSec) * time.Second):
			}
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		l.logger.Debug("Received messages", zap.Int("count", len(msgs)))
		l.handleBatch(ctx, msgs)
	}
}

func (l *Loop) handleBatch(ctx context.Context, msgs []queue.Message) {
	limit := l.cfg.Consumer.Concurrency
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	for i, msg := range msgs {
		if ctx.Err() != nil {
			l.logger.Info("Stop requested, leaving messages for redelivery", zap.Int("remaining", len(msgs)-i))
			break
		}
		g.Go(func() error {
			// a slot may free up only after the stop signal
			if ctx.Err() != nil {
				return nil
			}
			l.Handle(context.WithoutCancel(ctx), msg)
			return nil
		})
	}
	_ = g.Wait()
}

// Handle processes one delivery and acknowledges it unless it has to be
// redelivered. It returns how the message was handled.
func (l *Loop) Handle(ctx context.Context, msg queue.Message) string {
	logger := l.logger.With(zap.String("message_id", msg.ID))

	parsed, err := queue.ParseJobMessage(msg.Body)
	if err != nil {
		logger.Error("Dropping malformed message", zap.Error(err))
		l.ack(ctx, msg, logger)
		return l.observe(ResultMalformed)
	}

	j := l.buildJob(parsed)
	logger = logger.With(zap.String("job_id", j.ID))

	err = l.runner.Run(ctx, j)
	switch {
	case err == nil:
		l.ack(ctx, msg, logger)
		if j.Status == job.StatusFailed {
			return l.observe(ResultFailed)
		}
		return l.observe(ResultProcessed)
	case errors.Is(err, job.ErrPersistence), errors.Is(err, pipeline.ErrDispatch):
		logger.Error("Job outcome not recorded, leaving message for redelivery", zap.Error(err))
		if err := l.queue.Nack(ctx, l.cfg.Queue.SourceQueue, msg); err != nil {
			logger.Error("Failed to release message", zap.Error(err))
		}
		return l.observe(ResultRedeliver)
	case job.IsInputError(err):
		logger.Warn("Job rejected", zap.Error(err))
		l.ack(ctx, msg, logger)
		return l.observe(ResultRejected)
	default:
		logger.Error("Job failed", zap.Error(err))
		l.ack(ctx, msg, logger)
		return l.observe(ResultFailed)
	}
}

func (l *Loop) buildJob(m queue.JobMessage) *job.Job {
	bucket := m.Bucket()
	if bucket == "" {
		bucket = l.cfg.Storage.VideoBucket
	}
	id := m.CorrelationID()
	if id == "" {
		id = uuid.NewString()
	}
	j := job.NewJob(id, job.SourceRef{Bucket: bucket, Key: m.Key}, l.cfg.Pipeline.ScratchDir)
	j.CorrelationID = m.CorrelationID()
	return j
}

func (l *Loop) ack(ctx context.Context, msg queue.Message, logger *zap.Logger) {
	if err := l.queue.Ack(ctx, l.cfg.Queue.SourceQueue, msg); err != nil {
		logger.Error("Failed to acknowledge message", zap.Error(err))
	}
}

func (l *Loop) observe(result string) string {
	pipeline.ObserveMessage(result)
	return result
}
