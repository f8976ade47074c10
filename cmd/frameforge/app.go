package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FrameForge/internal/config"
	"FrameForge/internal/job"
	"FrameForge/internal/notify"
	"FrameForge/internal/pipeline"
	"FrameForge/internal/pipeline/storage"
	"FrameForge/internal/queue"
	"FrameForge/pkg/log"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

const (
	trackerPruneEvery = 10 * time.Minute
	trackerRetention  = time.Hour
)

// app holds the wired dependencies shared by every command
type app struct {
	cfg          *config.Config
	logger       *zap.Logger
	queue        queue.Queue
	tracker      *job.Tracker
	status       job.StatusStore
	orchestrator *pipeline.Orchestrator
	closers      []func()
}

func newApp(ctx context.Context) (*app, error) {
	boot, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("can't initialize zap logger: %w", err)
	}
	defer boot.Sync()

	cfg, err := config.NewConfigLoader(boot).Load(configFile)
	if err != nil {
		return nil, err
	}

	logger, err := log.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}

	backend, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, a.fail(fmt.Errorf("failed to init storage: %w", err))
	}
	blobs := storage.NewBlobs(backend, cfg.Storage, logger)

	q, err := queue.NewQueue(ctx, cfg.Queue, logger)
	if err != nil {
		return nil, a.fail(fmt.Errorf("failed to init queue: %w", err))
	}
	a.queue = q
	if c, ok := q.(io.Closer); ok {
		a.closers = append(a.closers, func() { _ = c.Close() })
	}

	notifier, err := notify.NewNotifier(ctx, cfg.Notifier, logger)
	if err != nil {
		return nil, a.fail(fmt.Errorf("failed to init notifier: %w", err))
	}

	status, closeStatus, err := job.OpenStatusStore(ctx, cfg.Status, logger)
	if err != nil {
		return nil, a.fail(fmt.Errorf("failed to open status store: %w", err))
	}
	a.closers = append(a.closers, closeStatus)
	a.status = status

	a.tracker = job.NewTracker(logger)
	a.orchestrator = pipeline.NewOrchestrator(
		pipeline.NewTranscoder(cfg.Pipeline.FFMpegPath, cfg.Pipeline.FramePattern, logger),
		pipeline.NewArchiver(logger),
		blobs,
		q,
		notifier,
		status,
		a.tracker,
		cfg,
		logger,
	)

	logger.Info("FrameForge initialized",
		zap.String("storage", cfg.Storage.Type),
		zap.String("queue", cfg.Queue.Type),
		zap.String("notifier", cfg.Notifier.Type),
		zap.String("status", cfg.Status.Type),
	)
	return a, nil
}

func (a *app) fail(err error) error {
	a.Close()
	return err
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}

func (a *app) dialTemporal() (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  a.cfg.Temporal.HostPort,
		Namespace: a.cfg.Temporal.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Temporal client: %w", err)
	}
	return c, nil
}

// pruneTracker drops old terminal snapshots until ctx is done
func (a *app) pruneTracker(ctx context.Context) {
	ticker := time.NewTicker(trackerPruneEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.tracker.Prune(trackerRetention); n > 0 {
				a.logger.Debug("Pruned job snapshots", zap.Int("count", n))
			}
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
}
