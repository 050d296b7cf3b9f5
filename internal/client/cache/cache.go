// Package cache is the local, content-addressed store of extracted
// application archives. A record is the full file map of one archive
// version and is keyed by "<prefix>:<applicationCode>:<zipHash>"; lookups
// match exactly, so a record for an older hash is never served for a newer
// one.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/recdocs/internal/client/migrations"
	"github.com/dmitrijs2005/recdocs/internal/dbx"
	"github.com/dmitrijs2005/recdocs/internal/filex"
	"github.com/dmitrijs2005/recdocs/internal/models"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Key builds the record key for one archive version.
func Key(prefix, applicationCode, zipHash string) string {
	return prefix + ":" + applicationCode + ":" + zipHash
}

// Store is a SQLite-backed document cache.
type Store struct {
	db     *sql.DB
	prefix string
	now    func() time.Time
}

// New returns a Store over an already migrated database.
func New(db *sql.DB, prefix string) *Store {
	return &Store{db: db, prefix: prefix, now: time.Now}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded cache schema to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return gooseUpContext(ctx, db, ".")
}

// Open opens (creating if needed) the cache database at dsn and migrates it.
// The caller owns the returned *sql.DB.
func Open(ctx context.Context, dsn, prefix string) (*Store, *sql.DB, error) {
	if _, err := filex.EnsureParentDir(dsn); err != nil {
		return nil, nil, fmt.Errorf("prepare cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache %s: %w", dsn, err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate cache: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	return New(db, prefix), db, nil
}

// Get returns the file map stored for (applicationCode, zipHash), or nil, nil
// when there is no such record.
//
// The record and its files are read by one statement so a concurrent Put,
// Clear or Prune of the same key is either fully visible or not at all.
func (s *Store) Get(ctx context.Context, applicationCode, zipHash string) (models.FileMap, error) {
	key := Key(s.prefix, applicationCode, zipHash)

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.file_name, f.content
		FROM cache_records r
		LEFT JOIN cache_files f ON f.record_key = r.key
		WHERE r.key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get cache record[%s]: %w", key, err)
	}
	defer rows.Close()

	var files models.FileMap
	for rows.Next() {
		var name sql.NullString
		var content []byte
		if err := rows.Scan(&name, &content); err != nil {
			return nil, fmt.Errorf("failed to scan cache file row: %w", err)
		}
		if files == nil {
			files = make(models.FileMap)
		}
		// A record without files joins to a single row of NULLs.
		if !name.Valid {
			continue
		}
		if content == nil {
			content = []byte{}
		}
		files[name.String] = content
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cache file rows: %w", err)
	}
	return files, nil
}

// Put stores files under (applicationCode, zipHash), replacing any previous
// value for that key in one transaction.
func (s *Store) Put(ctx context.Context, applicationCode, zipHash string, files models.FileMap) error {
	key := Key(s.prefix, applicationCode, zipHash)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := deleteRecord(ctx, tx, key); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cache_records (key, application_code, zip_hash, created_at) VALUES (?, ?, ?, ?)`,
			key, applicationCode, zipHash, s.now().UnixMilli()); err != nil {
			return err
		}
		for name, content := range files {
			if content == nil {
				content = []byte{}
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO cache_files (record_key, file_name, content) VALUES (?, ?, ?)`,
				key, name, content); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put cache record[%s]: %w", key, err)
	}
	return nil
}

// Clear removes the record for (applicationCode, zipHash). Clearing an
// absent record is not an error.
func (s *Store) Clear(ctx context.Context, applicationCode, zipHash string) error {
	key := Key(s.prefix, applicationCode, zipHash)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return deleteRecord(ctx, tx, key)
	})
	if err != nil {
		return fmt.Errorf("failed to clear cache record[%s]: %w", key, err)
	}
	return nil
}

// Prune removes every record of applicationCode except the one for
// keepHash and reports how many records were removed.
func (s *Store) Prune(ctx context.Context, applicationCode, keepHash string) (int64, error) {
	keep := Key(s.prefix, applicationCode, keepHash)

	var n int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM cache_files WHERE record_key IN (
				SELECT key FROM cache_records WHERE application_code = ? AND key <> ?
			)`, applicationCode, keep); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM cache_records WHERE application_code = ? AND key <> ?`, applicationCode, keep)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache of %s: %w", applicationCode, err)
	}
	return n, nil
}

// ClearAll drops every cached record.
func (s *Store) ClearAll(ctx context.Context) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cache_files`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM cache_records`)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

func deleteRecord(ctx context.Context, tx dbx.DBTX, key string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_files WHERE record_key = ?`, key); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM cache_records WHERE key = ?`, key)
	return err
}
