package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	types "FrameForge/pkg"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// StatusRow is the persisted form of a StatusUpdate.
type StatusRow struct {
	ID          string `gorm:"primaryKey"`
	Status      string `gorm:"not null"`
	ZipURL      string
	ErrorDetail string
	UpdatedAt   time.Time
}

type GormStore struct {
	db    *gorm.DB
	table string
}

var _ StatusStore = (*GormStore)(nil)

func NewGormStore(db *gorm.DB, table string) *GormStore {
	return &GormStore{db: db, table: table}
}

// OpenGorm opens a sqlite or postgres database for the status store.
func OpenGorm(cfg types.StatusConfig, logger *zap.Logger) (*gorm.DB, error) {
	var dia gorm.Dialector
	if cfg.Dialect == "postgres" {
		dia = postgres.Open(cfg.DSN)
	} else {
		dia = sqlite.Open(cfg.DSN)
	}

	newLogger := gormlogger.New(
		zapWriter{logger.Named("gorm").Sugar()},
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dia, &gorm.Config{Logger: newLogger, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect status database: %w", err)
	}
	return db, nil
}

func (s *GormStore) InitialMigration() error {
	if err := s.db.Table(s.table).AutoMigrate(&StatusRow{}); err != nil {
		return NewError(ErrPersistence, "status.schema", fmt.Errorf("failed to migrate status table: %w", err))
	}
	return nil
}

func (s *GormStore) Update(ctx context.Context, id string, update StatusUpdate) error {
	row := StatusRow{
		ID:          id,
		Status:      update.Status,
		ZipURL:      update.ZipURL,
		ErrorDetail: update.ErrorDetail,
		UpdatedAt:   time.Now(),
	}
	result := s.db.WithContext(ctx).Table(s.table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "zip_url", "error_detail", "updated_at"}),
	}).Create(&row)
	if result.Error != nil {
		return NewError(ErrPersistence, "status.update", fmt.Errorf("failed to update job status: %w", result.Error))
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*StatusUpdate, error) {
	var row StatusRow
	result := s.db.WithContext(ctx).Table(s.table).Where("id = ?", id).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrStatusNotFound, id)
		}
		return nil, NewError(ErrPersistence, "status.get", result.Error)
	}
	return &StatusUpdate{Status: row.Status, ZipURL: row.ZipURL, ErrorDetail: row.ErrorDetail}, nil
}

// zapWriter lets gorm's logger print through zap.
type zapWriter struct {
	s *zap.SugaredLogger
}

func (w zapWriter) Printf(format string, args ...interface{}) {
	w.s.Warnf(format, args...)
}
