// Package services holds the document submission workflow of the server:
// issuing presigned upload URLs, committing uploaded archives to the
// document store and reading their metadata back.
package services

import (
	"context"
	_ "crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"

	"github.com/dmitrijs2005/recdocs/internal/common"
	"github.com/dmitrijs2005/recdocs/internal/dbx"
	"github.com/dmitrijs2005/recdocs/internal/models"
	sc "github.com/dmitrijs2005/recdocs/internal/server/config"
	sm "github.com/dmitrijs2005/recdocs/internal/server/models"
	"github.com/dmitrijs2005/recdocs/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/recdocs/internal/server/revision"
	"github.com/dmitrijs2005/recdocs/internal/server/storage"
)

// CommitRequest describes an archive the client has finished uploading.
type CommitRequest struct {
	Key          string                 `json:"key"`
	Hash         string                 `json:"hash"`
	LastModified int64                  `json:"lastModified"`
	Manifest     []models.ManifestEntry `json:"manifest"`
}

type SubmissionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.BlobStore
	config      *sc.Config
	now         func() time.Time
}

func NewSubmissionService(db *sql.DB, repomanager repomanager.RepositoryManager, store storage.BlobStore, config *sc.Config) *SubmissionService {
	return &SubmissionService{
		db:          db,
		repomanager: repomanager,
		store:       store,
		config:      config,
		now:         time.Now,
	}
}

// StorageKey returns a fresh object key for an archive of application code.
func StorageKey(code string, t time.Time) string {
	return fmt.Sprintf("applications/%s/%d/%d/%d/%v.zip", code, t.Year(), t.Month(), t.Day(), uuid.New())
}

// IssueUploadURL reserves a storage key for a new archive of code and
// presigns a PUT for it.
func (s *SubmissionService) IssueUploadURL(ctx context.Context, code string) (*sm.UploadTask, error) {
	if err := validateCode(code); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	key := StorageKey(code, now)

	url, err := s.store.PresignPut(ctx, key, s.config.UploadURLTTL)
	if err != nil {
		return nil, err
	}

	err = s.repomanager.Uploads(s.db).Create(ctx, &sm.Upload{
		StorageKey:      key,
		ApplicationCode: code,
		CreatedAt:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("error recording upload: %w", err)
	}

	return &sm.UploadTask{Key: key, URL: url}, nil
}

// CommitDocuments records an uploaded archive as the current document set of
// code and advances its revision status. The object must already exist in
// the store and the key must have been issued for the same application.
func (s *SubmissionService) CommitDocuments(ctx context.Context, code string, req *CommitRequest) (*sm.Application, error) {
	if err := validateCode(code); err != nil {
		return nil, err
	}
	if req == nil || req.Key == "" {
		return nil, fmt.Errorf("missing storage key: %w", common.ErrBadRequest)
	}
	if _, err := digest.Parse(req.Hash); err != nil {
		return nil, fmt.Errorf("hash %q: %w", req.Hash, common.ErrBadRequest)
	}

	upload, err := s.repomanager.Uploads(s.db).GetByKey(ctx, req.Key)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("unknown storage key %s: %w", req.Key, common.ErrBadRequest)
	}
	if err != nil {
		return nil, err
	}
	if upload.ApplicationCode != code {
		return nil, fmt.Errorf("storage key %s belongs to another application: %w", req.Key, common.ErrForbidden)
	}

	ok, err := s.store.Exists(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("archive %s was not uploaded: %w", req.Key, common.ErrBadRequest)
	}

	now := s.now()
	lastModified := req.LastModified
	if lastModified == 0 {
		lastModified = now.UnixMilli()
	}

	var result *sm.Application
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		apps := s.repomanager.Applications(tx)

		app, err := apps.GetForUpdate(ctx, code)
		if errors.Is(err, common.ErrorNotFound) {
			app = &sm.Application{Code: code, Status: string(revision.Pending)}
		} else if err != nil {
			return err
		}

		current, err := revision.Parse(app.Status)
		if err != nil {
			return err
		}
		next, err := revision.Next(current, revision.Submit)
		if err != nil {
			return err
		}

		app.Status = string(next)
		app.Version++
		app.UpdatedAt = now
		app.DocumentsMeta = &models.DocumentsMeta{
			ZipHash:         req.Hash,
			ZipLastModified: lastModified,
			ZipDownloadURL:  req.Key,
			FileManifest:    req.Manifest,
		}

		if err := apps.Save(ctx, app); err != nil {
			return err
		}
		if err := s.repomanager.Uploads(tx).MarkCommitted(ctx, req.Key); err != nil {
			return err
		}

		result = app
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error committing documents: %w", err)
	}

	return result, nil
}

// Decide records a reviewer decision (revision.Accept or revision.Reject).
func (s *SubmissionService) Decide(ctx context.Context, code string, event revision.Event) (*sm.Application, error) {
	if err := validateCode(code); err != nil {
		return nil, err
	}
	if event != revision.Accept && event != revision.Reject {
		return nil, fmt.Errorf("event %q: %w", event, common.ErrBadRequest)
	}

	var result *sm.Application
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		apps := s.repomanager.Applications(tx)

		app, err := apps.GetForUpdate(ctx, code)
		if err != nil {
			return err
		}
		current, err := revision.Parse(app.Status)
		if err != nil {
			return err
		}
		next, err := revision.Next(current, event)
		if err != nil {
			return err
		}

		app.Status = string(next)
		app.Version++
		app.UpdatedAt = s.now()
		if err := apps.Save(ctx, app); err != nil {
			return err
		}
		result = app
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error recording decision: %w", err)
	}
	return result, nil
}

// GetDocumentsMeta returns the documents metadata of code, or
// common.ErrMetadataMissing when the application is unknown or has no
// committed archive yet.
func (s *SubmissionService) GetDocumentsMeta(ctx context.Context, code string) (*models.DocumentsMeta, error) {
	if err := validateCode(code); err != nil {
		return nil, err
	}

	app, err := s.repomanager.Applications(s.db).Get(ctx, code)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("application %s: %w", code, common.ErrMetadataMissing)
	}
	if err != nil {
		return nil, err
	}
	if app.DocumentsMeta == nil {
		return nil, fmt.Errorf("application %s: %w", code, common.ErrMetadataMissing)
	}
	return app.DocumentsMeta, nil
}

// Codes are embedded in object keys.
func validateCode(code string) error {
	if code == "" || len(code) > 64 {
		return fmt.Errorf("application code %q: %w", code, common.ErrBadRequest)
	}
	if strings.IndexFunc(code, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_')
	}) >= 0 {
		return fmt.Errorf("application code %q: %w", code, common.ErrBadRequest)
	}
	return nil
}
