// Package services holds the client-side document workflows built on top of
// the gateway client.
package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/recdocs/internal/archive"
	"github.com/dmitrijs2005/recdocs/internal/client/client"
	"github.com/dmitrijs2005/recdocs/internal/logging"
	"github.com/dmitrijs2005/recdocs/internal/netx"
)

const archiveContentType = "application/zip"

// Gateway is the part of the gateway API a submission needs.
type Gateway interface {
	RequestUploadURL(ctx context.Context, applicationCode string) (*client.UploadTask, error)
	CommitDocuments(ctx context.Context, applicationCode string, req *client.CommitRequest) (*client.Application, error)
}

// uploadToPresignedURL is a seam for tests.
var uploadToPresignedURL = netx.UploadToPresignedURL

// SubmissionService packages documents and records them on an application.
type SubmissionService struct {
	gateway Gateway
	http    *http.Client
	logger  logging.Logger
}

func NewSubmissionService(gw Gateway, httpClient *http.Client, logger logging.Logger) *SubmissionService {
	return &SubmissionService{
		gateway: gw,
		http:    httpClient,
		logger:  logger.With("module", "submission"),
	}
}

// Submission is the outcome of Submit.
type Submission struct {
	Application *client.Application
	Package     *archive.Package
}

// Submit builds the archive, uploads it through a presigned URL and commits
// its metadata. Validation failures surface before any network call.
func (s *SubmissionService) Submit(ctx context.Context, applicationCode string, inputs []archive.SourceFile) (*Submission, error) {
	pkg, err := archive.Build(inputs)
	if err != nil {
		return nil, err
	}
	if len(pkg.Manifest) == 0 {
		return nil, fmt.Errorf("no documents to submit")
	}

	task, err := s.gateway.RequestUploadURL(ctx, applicationCode)
	if err != nil {
		return nil, fmt.Errorf("request upload url: %w", err)
	}

	if err := uploadToPresignedURL(ctx, s.http, task.URL, archiveContentType, pkg.Data); err != nil {
		return nil, fmt.Errorf("upload archive: %w", err)
	}
	s.logger.Info(ctx, "archive uploaded", "application", applicationCode, "key", task.Key, "size", len(pkg.Data), "hash", pkg.Hash)

	app, err := s.gateway.CommitDocuments(ctx, applicationCode, &client.CommitRequest{
		Key:          task.Key,
		Hash:         pkg.Hash,
		LastModified: pkg.Manifest[0].UploadedAt,
		Manifest:     pkg.Manifest,
	})
	if err != nil {
		return nil, fmt.Errorf("commit documents: %w", err)
	}

	return &Submission{Application: app, Package: pkg}, nil
}

// ReadSourceFile reads the files at paths into one form field.
func ReadSourceFile(fieldKey, title string, paths ...string) (archive.SourceFile, error) {
	sf := archive.SourceFile{FieldKey: fieldKey, Title: title}
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return archive.SourceFile{}, fmt.Errorf("read %s: %w", p, err)
		}
		sf.Files = append(sf.Files, archive.File{Name: filepath.Base(p), Content: content})
	}
	return sf, nil
}
