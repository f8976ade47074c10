package pipeline

import (
	"context"
	"time"

	types "FrameForge/pkg"

	"go.uber.org/zap"
)

// Retry runs fn until it succeeds, the attempt budget is spent, stop reports
// the error as permanent, or ctx is done. The last error is returned.
func Retry(ctx context.Context, logger *zap.Logger, retryCfg types.RetryConfig, operation string, stop func(error) bool, fn func() error) error {
	attempts := int32(0)
	interval := time.Duration(retryCfg.InitialIntervalSec * float64(time.Second))

	for {
		if err := ctx.Err(); err != nil {
			logger.Warn("Retry cancelled", zap.String("operation", operation), zap.Error(err))
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		attempts++
		if stop != nil && stop(err) {
			return err
		}
		if attempts >= retryCfg.MaxAttempts {
			logger.Error("Retry limit reached", zap.String("operation", operation), zap.Int32("attempts", attempts), zap.Error(err))
			return err
		}
		logger.Warn("Retry attempt failed", zap.String("operation", operation), zap.Int32("attempt", attempts), zap.Error(err))

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn("Retry cancelled", zap.String("operation", operation), zap.Error(ctx.Err()))
			return err
		case <-timer.C:
		}
		interval = time.Duration(float64(interval) * retryCfg.BackoffCoefficient)
	}
}
