// Package applications provides the PostgreSQL-backed document store: one
// row per protocol application, owning its documents metadata.
package applications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/recdocs/internal/common"
	"github.com/dmitrijs2005/recdocs/internal/dbx"
	"github.com/dmitrijs2005/recdocs/internal/models"
	sm "github.com/dmitrijs2005/recdocs/internal/server/models"
)

// PostgresRepository implements application storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectApplication = `SELECT code, status, version, documents_meta, updated_at FROM applications WHERE code=$1`

// Get returns the application by code, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, code string) (*sm.Application, error) {
	return r.get(ctx, selectApplication, code)
}

// GetForUpdate is Get with a row lock. It must run inside a transaction.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, code string) (*sm.Application, error) {
	return r.get(ctx, selectApplication+` FOR UPDATE`, code)
}

func (r *PostgresRepository) get(ctx context.Context, query, code string) (*sm.Application, error) {
	var (
		app  sm.Application
		meta []byte
	)
	err := r.db.QueryRowContext(ctx, query, code).Scan(&app.Code, &app.Status, &app.Version, &meta, &app.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("application %s: %w", code, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select application: %w", err)
	}

	if len(meta) > 0 {
		var dm models.DocumentsMeta
		if err := json.Unmarshal(meta, &dm); err != nil {
			return nil, fmt.Errorf("decode documents_meta of %s: %w", code, err)
		}
		app.DocumentsMeta = &dm
	}
	return &app, nil
}

// Save upserts app. An existing row is only updated when its stored version
// is exactly app.Version-1; otherwise common.ErrVersionConflict is returned.
func (r *PostgresRepository) Save(ctx context.Context, app *sm.Application) error {
	var meta []byte
	if app.DocumentsMeta != nil {
		b, err := json.Marshal(app.DocumentsMeta)
		if err != nil {
			return fmt.Errorf("encode documents_meta: %w", err)
		}
		meta = b
	}

	query := `
		INSERT INTO applications (code, status, version, documents_meta, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code)
		DO UPDATE SET
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			documents_meta = EXCLUDED.documents_meta,
			updated_at = EXCLUDED.updated_at
			WHERE applications.version = EXCLUDED.version - 1;
	`
	res, err := r.db.ExecContext(ctx, query, app.Code, app.Status, app.Version, meta, app.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrVersionConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
