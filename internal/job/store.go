package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgConn is the part of *pgxpool.Pool the store needs.
type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store writes job outcomes to Postgres through pgx
type Store struct {
	db    pgConn
	table string
}

// NewStore creates a new status store on top of a pool
func NewStore(db pgConn, table string) *Store {
	return &Store{db: db, table: pgx.Identifier{table}.Sanitize()}
}

// EnsureSchema creates the status table if it does not exist yet
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id           TEXT PRIMARY KEY,
			status       TEXT NOT NULL,
			zip_url      TEXT,
			error_detail TEXT,
			updated_at   TIMESTAMPTZ NOT NULL
		)
	`, s.table)

	if _, err := s.db.Exec(ctx, query); err != nil {
		return NewError(ErrPersistence, "status.schema", fmt.Errorf("failed to create status table: %w", err))
	}
	return nil
}

// Update upserts the outcome row for id
func (s *Store) Update(ctx context.Context, id string, update StatusUpdate) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, status, zip_url, error_detail, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    zip_url = EXCLUDED.zip_url,
		    error_detail = EXCLUDED.error_detail,
		    updated_at = EXCLUDED.updated_at
	`, s.table)

	_, err := s.db.Exec(ctx, query, id, update.Status,
		nullable(update.ZipURL), nullable(update.ErrorDetail), time.Now())
	if err != nil {
		return NewError(ErrPersistence, "status.update", fmt.Errorf("failed to update job status: %w", err))
	}
	return nil
}

// Get reads the outcome row for id
func (s *Store) Get(ctx context.Context, id string) (*StatusUpdate, error) {
	query := fmt.Sprintf(`SELECT status, zip_url, error_detail FROM %s WHERE id = $1`, s.table)

	var out StatusUpdate
	var zipURL, detail *string
	err := s.db.QueryRow(ctx, query, id).Scan(&out.Status, &zipURL, &detail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrStatusNotFound, id)
		}
		return nil, NewError(ErrPersistence, "status.get", fmt.Errorf("failed to get job status: %w", err))
	}
	if zipURL != nil {
		out.ZipURL = *zipURL
	}
	if detail != nil {
		out.ErrorDetail = *detail
	}
	return &out, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
