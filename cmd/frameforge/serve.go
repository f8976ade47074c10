package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"FrameForge/internal/api"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		go a.pruneTracker(ctx)

		server := api.NewServer(a.orchestrator, a.tracker, a.status, a.cfg, a.logger)
		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				a.logger.Error("HTTP server failed", zap.Error(err))
				return err
			}
		}

		shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
		defer stop()
		return server.Shutdown(shutdownCtx)
	},
}
