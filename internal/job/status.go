package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	types "FrameForge/pkg"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	// RecordFinality is the status written once an archive is uploaded.
	RecordFinality = "finality"
	RecordFailed   = "failed"
)

// ErrStatusNotFound is returned by StatusStore.Get for an unknown id.
var ErrStatusNotFound = errors.New("job status not found")

// StatusUpdate is the externally visible outcome of a job.
type StatusUpdate struct {
	Status      string `json:"status"`
	ZipURL      string `json:"zipURL,omitempty"`
	ErrorDetail string `json:"errorDetail,omitempty"`
}

// StatusStore persists job outcomes keyed by correlation id. Implementations
// return an *Error of kind ErrPersistence on any storage fault.
type StatusStore interface {
	Update(ctx context.Context, id string, update StatusUpdate) error
	Get(ctx context.Context, id string) (*StatusUpdate, error)
}

// NopStatusStore is used when no status backend is configured.
type NopStatusStore struct{}

func (NopStatusStore) Update(context.Context, string, StatusUpdate) error { return nil }

func (NopStatusStore) Get(context.Context, string) (*StatusUpdate, error) {
	return nil, ErrStatusNotFound
}

// OpenStatusStore builds the configured backend. The returned func releases
// its connections.
func OpenStatusStore(ctx context.Context, cfg types.StatusConfig, logger *zap.Logger) (StatusStore, func(), error) {
	switch cfg.Type {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to reach postgres: %w", err)
		}
		store := NewStore(pool, cfg.Table)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("Status store ready", zap.String("backend", "postgres"), zap.String("table", cfg.Table))
		return store, pool.Close, nil
	case "gorm":
		db, err := OpenGorm(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		store := NewGormStore(db, cfg.Table)
		if err := store.InitialMigration(); err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		logger.Info("Status store ready", zap.String("backend", "gorm"),
			zap.String("dialect", cfg.Dialect), zap.String("table", cfg.Table))
		return store, closeFn, nil
	case "none", "":
		return NopStatusStore{}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported status backend: %s", cfg.Type)
	}
}
