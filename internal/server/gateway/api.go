package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/recdocs/internal/common"
	"github.com/dmitrijs2005/recdocs/internal/logging"
	"github.com/dmitrijs2005/recdocs/internal/models"
	sm "github.com/dmitrijs2005/recdocs/internal/server/models"
	"github.com/dmitrijs2005/recdocs/internal/server/revision"
	"github.com/dmitrijs2005/recdocs/internal/server/services"
)

const maxRequestBody = 1 << 20

// Submissions is the document workflow the API exposes.
type Submissions interface {
	IssueUploadURL(ctx context.Context, code string) (*sm.UploadTask, error)
	CommitDocuments(ctx context.Context, code string, req *services.CommitRequest) (*sm.Application, error)
	Decide(ctx context.Context, code string, event revision.Event) (*sm.Application, error)
	GetDocumentsMeta(ctx context.Context, code string) (*models.DocumentsMeta, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type API struct {
	submissions Submissions
	logger      logging.Logger
	checks      map[string]HealthCheck
}

func NewAPI(s Submissions, logger logging.Logger, checks map[string]HealthCheck) *API {
	return &API{
		submissions: s,
		logger:      logger.With("module", "api"),
		checks:      checks,
	}
}

type applicationResponse struct {
	Code          string                `json:"code"`
	Status        string                `json:"status"`
	Version       int64                 `json:"version"`
	DocumentsMeta *models.DocumentsMeta `json:"documentsMeta,omitempty"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

type decisionRequest struct {
	Event string `json:"event"`
}

// Register adds the API routes to mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/applications/documents-meta", a.getDocumentsMeta)
	mux.HandleFunc("POST /api/applications/documents-meta", a.commitDocuments)
	mux.HandleFunc("POST /api/applications/decision", a.decide)
	mux.HandleFunc("POST /api/uploads", a.issueUpload)
	mux.HandleFunc("GET /healthz", a.healthz)
}

func (a *API) getDocumentsMeta(w http.ResponseWriter, r *http.Request) {
	meta, err := a.submissions.GetDocumentsMeta(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (a *API) commitDocuments(w http.ResponseWriter, r *http.Request) {
	var req services.CommitRequest
	if !a.decode(w, r, &req) {
		return
	}
	app, err := a.submissions.CommitDocuments(r.Context(), r.URL.Query().Get("code"), &req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(app))
}

func (a *API) decide(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !a.decode(w, r, &req) {
		return
	}
	app, err := a.submissions.Decide(r.Context(), r.URL.Query().Get("code"), revision.Event(strings.ToLower(req.Event)))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(app))
}

func (a *API) issueUpload(w http.ResponseWriter, r *http.Request) {
	task, err := a.submissions.IssueUploadURL(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			a.logger.Warn(ctx, "health check failed", "check", name, "error", err)
			writeJSONError(w, http.StatusServiceUnavailable, msgUnavailable)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		a.logger.Warn(r.Context(), "bad request body", "route", r.URL.Path, "request_id", requestID(r), "error", err)
		writeJSONError(w, http.StatusBadRequest, msgInvalidRequest)
		return false
	}
	return true
}

// fail maps service errors to a status and a generic message.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, msgInternal
	switch {
	case errors.Is(err, common.ErrMetadataMissing):
		status, msg = http.StatusNotFound, msgMetaNotFound
	case errors.Is(err, common.ErrorNotFound):
		status, msg = http.StatusNotFound, msgAppNotFound
	case errors.Is(err, common.ErrForbidden):
		status, msg = http.StatusForbidden, msgUploadForbidden
	case errors.Is(err, common.ErrInvalidTransition):
		status, msg = http.StatusConflict, msgBadTransition
	case errors.Is(err, common.ErrVersionConflict):
		status, msg = http.StatusConflict, msgConflict
	case errors.Is(err, common.ErrBadRequest):
		status, msg = http.StatusBadRequest, msgInvalidRequest
	}

	a.logger.Error(r.Context(), "request failed",
		"route", r.URL.Path,
		"status", status,
		"request_id", requestID(r),
		"error", err,
	)
	writeJSONError(w, status, msg)
}

func toResponse(app *sm.Application) applicationResponse {
	return applicationResponse{
		Code:          app.Code,
		Status:        app.Status,
		Version:       app.Version,
		DocumentsMeta: app.DocumentsMeta,
		UpdatedAt:     app.UpdatedAt,
	}
}
