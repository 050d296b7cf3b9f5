// Package uploads records the storage keys issued with presigned upload URLs.
package uploads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/recdocs/internal/common"
	"github.com/dmitrijs2005/recdocs/internal/dbx"
	"github.com/dmitrijs2005/recdocs/internal/server/models"
)

// PostgresRepository implements upload bookkeeping over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a pending upload. Exactly one row must be affected.
func (r *PostgresRepository) Create(ctx context.Context, u *models.Upload) error {
	query := `INSERT INTO uploads (storage_key, application_code, created_at) VALUES ($1, $2, $3)`
	res, err := r.db.ExecContext(ctx, query, u.StorageKey, u.ApplicationCode, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}

// GetByKey returns the upload issued for key, or common.ErrorNotFound.
func (r *PostgresRepository) GetByKey(ctx context.Context, key string) (*models.Upload, error) {
	query := `SELECT storage_key, application_code, created_at, committed_at FROM uploads
		WHERE storage_key=$1`

	var (
		u         models.Upload
		committed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, key).Scan(&u.StorageKey, &u.ApplicationCode, &u.CreatedAt, &committed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("upload %s: %w", key, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select upload: %w", err)
	}
	if committed.Valid {
		u.CommittedAt = &committed.Time
	}
	return &u, nil
}

// MarkCommitted stamps the upload as committed. Exactly one row must be affected.
func (r *PostgresRepository) MarkCommitted(ctx context.Context, key string) error {
	query := `update uploads set committed_at=now() where storage_key=$1`
	result, err := r.db.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("failed to mark committed: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}
