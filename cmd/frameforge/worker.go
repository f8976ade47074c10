package main

import (
	"FrameForge/internal/pipeline"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "temporal-worker",
	Short: "Run the Temporal worker that executes frame extraction jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		go a.pruneTracker(ctx)

		c, err := a.dialTemporal()
		if err != nil {
			return err
		}
		defer c.Close()

		tw := pipeline.NewTemporalWorkflow(c, a.cfg.Temporal.TaskQueue, a.orchestrator, a.logger)
		if err := tw.StartWorker(); err != nil {
			return err
		}
		defer tw.StopWorker()

		a.logger.Info("Temporal worker started")
		<-ctx.Done()
		a.logger.Info("Shutting down...")
		return nil
	},
}
