package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"FrameForge/internal/consumer"
	"FrameForge/internal/pipeline"
	"FrameForge/internal/queue"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume job messages from the source queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		go a.pruneTracker(ctx)

		if rq, ok := a.queue.(*queue.RedisQueue); ok && a.cfg.Queue.Redis.RecoverOnStart {
			if _, err := rq.Recover(ctx, a.cfg.Queue.SourceQueue); err != nil {
				a.logger.Error("Failed to recover unacknowledged messages", zap.Error(err))
			}
		}

		var runner consumer.Runner = a.orchestrator
		if a.cfg.Consumer.Dispatch == "temporal" {
			c, err := a.dialTemporal()
			if err != nil {
				return err
			}
			defer c.Close()
			runner = pipeline.NewTemporalDispatcher(c, a.cfg.Temporal.TaskQueue, pipeline.JobTimeout(a.cfg.Pipeline), a.logger)
		}

		metrics := startMetricsServer(a.cfg.Consumer.MetricsAddr, a.logger)
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = metrics.Shutdown(shutdownCtx)
		}()

		return consumer.NewLoop(a.queue, runner, a.cfg, a.logger).Run(ctx)
	},
}

func startMetricsServer(addr string, logger *zap.Logger) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("Starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
