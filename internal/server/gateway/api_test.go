package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/recdocs/internal/common"
	"github.com/dmitrijs2005/recdocs/internal/logging"
	"github.com/dmitrijs2005/recdocs/internal/models"
	sm "github.com/dmitrijs2005/recdocs/internal/server/models"
	"github.com/dmitrijs2005/recdocs/internal/server/revision"
	"github.com/dmitrijs2005/recdocs/internal/server/services"
)

type fakeSubmissions struct {
	meta      *models.DocumentsMeta
	metaErr   error
	commitErr error
	decideErr error
	issueErr  error

	gotCode   string
	gotCommit *services.CommitRequest
	gotEvent  revision.Event
}

func (f *fakeSubmissions) IssueUploadURL(_ context.Context, code string) (*sm.UploadTask, error) {
	f.gotCode = code
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	return &sm.UploadTask{Key: "applications/" + code + "/x.zip", URL: "http://minio/put"}, nil
}

func (f *fakeSubmissions) CommitDocuments(_ context.Context, code string, req *services.CommitRequest) (*sm.Application, error) {
	f.gotCode, f.gotCommit = code, req
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	return &sm.Application{
		Code:          code,
		Status:        string(revision.Submitted),
		Version:       1,
		DocumentsMeta: &models.DocumentsMeta{ZipHash: req.Hash, ZipDownloadURL: req.Key},
		UpdatedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeSubmissions) Decide(_ context.Context, code string, event revision.Event) (*sm.Application, error) {
	f.gotCode, f.gotEvent = code, event
	if f.decideErr != nil {
		return nil, f.decideErr
	}
	return &sm.Application{Code: code, Status: string(revision.Accepted), Version: 2}, nil
}

func (f *fakeSubmissions) GetDocumentsMeta(_ context.Context, code string) (*models.DocumentsMeta, error) {
	f.gotCode = code
	return f.meta, f.metaErr
}

func newAPIHandler(s *fakeSubmissions, checks map[string]HealthCheck) http.Handler {
	mux := http.NewServeMux()
	NewAPI(s, logging.Discard(), checks).Register(mux)
	return Chain(mux, RequestID())
}

func call(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPI_GetDocumentsMeta(t *testing.T) {
	s := &fakeSubmissions{meta: &models.DocumentsMeta{
		ZipHash:        "sha256:ab",
		ZipDownloadURL: "applications/REC-1/x.zip",
		FileManifest:   []models.ManifestEntry{{FileName: "Form.pdf", Size: 3, Type: "application/pdf"}},
	}}
	h := newAPIHandler(s, nil)

	rec := call(h, http.MethodGet, "/api/applications/documents-meta?code=REC-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "REC-1", s.gotCode)
	assert.JSONEq(t, `{"zipHash":"sha256:ab","zipLastModified":0,"zipDownloadUrl":"applications/REC-1/x.zip",
		"fileManifest":[{"fileName":"Form.pdf","originalTitle":"","size":3,"type":"application/pdf","uploadedAt":0}]}`, rec.Body.String())

	s.metaErr = common.ErrMetadataMissing
	rec = call(h, http.MethodGet, "/api/applications/documents-meta?code=REC-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Documents metadata not found"}`, rec.Body.String())

	s.metaErr = errors.New("pq: password authentication failed")
	rec = call(h, http.MethodGet, "/api/applications/documents-meta?code=REC-1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestAPI_CommitDocuments(t *testing.T) {
	s := &fakeSubmissions{}
	h := newAPIHandler(s, nil)

	rec := call(h, http.MethodPost, "/api/applications/documents-meta?code=REC-1",
		`{"key":"k1","hash":"sha256:ab","lastModified":5,"manifest":[{"fileName":"a.pdf","size":1}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, s.gotCommit)
	assert.Equal(t, "k1", s.gotCommit.Key)
	assert.Equal(t, int64(5), s.gotCommit.LastModified)
	assert.Len(t, s.gotCommit.Manifest, 1)
	assert.Contains(t, rec.Body.String(), `"status":"submitted"`)
	assert.Contains(t, rec.Body.String(), `"version":1`)

	rec = call(h, http.MethodPost, "/api/applications/documents-meta?code=REC-1", `{"key":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid request"}`, rec.Body.String())

	rec = call(h, http.MethodPost, "/api/applications/documents-meta?code=REC-1", `{"unexpected":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{common.ErrBadRequest, http.StatusBadRequest, "Invalid request"},
		{common.ErrForbidden, http.StatusForbidden, "Upload key not allowed"},
		{common.ErrInvalidTransition, http.StatusConflict, "Status transition not allowed"},
		{common.ErrVersionConflict, http.StatusConflict, "Concurrent update, retry"},
	}
	for _, tt := range tests {
		s.commitErr = tt.err
		rec = call(h, http.MethodPost, "/api/applications/documents-meta?code=REC-1", `{"key":"k1","hash":"sha256:ab"}`)
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())
		assert.JSONEq(t, `{"error":"`+tt.msg+`"}`, rec.Body.String())
	}
}

func TestAPI_Decide(t *testing.T) {
	s := &fakeSubmissions{}
	h := newAPIHandler(s, nil)

	rec := call(h, http.MethodPost, "/api/applications/decision?code=REC-1", `{"event":"ACCEPT"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, revision.Accept, s.gotEvent)
	assert.Contains(t, rec.Body.String(), `"status":"accepted"`)

	s.decideErr = common.ErrorNotFound
	rec = call(h, http.MethodPost, "/api/applications/decision?code=REC-9", `{"event":"reject"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Application not found"}`, rec.Body.String())
}

func TestAPI_IssueUpload(t *testing.T) {
	s := &fakeSubmissions{}
	h := newAPIHandler(s, nil)

	rec := call(h, http.MethodPost, "/api/uploads?code=REC-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"applications/REC-1/x.zip","url":"http://minio/put"}`, rec.Body.String())

	rec = call(h, http.MethodGet, "/api/uploads?code=REC-1", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	s.issueErr = common.ErrBadRequest
	rec = call(h, http.MethodPost, "/api/uploads", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Healthz(t *testing.T) {
	var dbErr error
	h := newAPIHandler(&fakeSubmissions{}, map[string]HealthCheck{
		"database": func(context.Context) error { return dbErr },
	})

	rec := call(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	dbErr = errors.New("dial tcp: refused")
	rec = call(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}
