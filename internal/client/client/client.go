package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/recdocs/internal/common"
	"github.com/dmitrijs2005/recdocs/internal/models"
)

// maxErrorBody bounds how much of an error response is decoded.
const maxErrorBody = 4 << 10

// UploadTask is a presigned upload target issued by the gateway.
type UploadTask struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// CommitRequest records an uploaded archive on an application.
type CommitRequest struct {
	Key          string                 `json:"key"`
	Hash         string                 `json:"hash"`
	LastModified int64                  `json:"lastModified,omitempty"`
	Manifest     []models.ManifestEntry `json:"manifest"`
}

// Application is the gateway's view of an application record.
type Application struct {
	Code          string                `json:"code"`
	Status        string                `json:"status"`
	Version       int64                 `json:"version"`
	DocumentsMeta *models.DocumentsMeta `json:"documentsMeta,omitempty"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HTTPClient is a gateway client rooted at a base URL.
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
}

// New returns a client for the gateway at baseURL. A nil httpClient uses
// http.DefaultClient.
func New(baseURL string, httpClient *http.Client) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("server url %q must be absolute http(s)", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{baseURL: u, http: httpClient}, nil
}

// GetDocumentsMeta returns the packaging metadata of an application. An
// application without metadata yields an error matching
// common.ErrMetadataMissing.
func (c *HTTPClient) GetDocumentsMeta(ctx context.Context, applicationCode string) (*models.DocumentsMeta, error) {
	var meta models.DocumentsMeta
	q := url.Values{"code": {applicationCode}}
	if err := c.doJSON(ctx, http.MethodGet, "/api/applications/documents-meta", q, nil, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// FetchArchive downloads the archive named by locator. Absolute URLs go
// through /api/proxy-storage, object keys through /api/proxy-storage/path.
func (c *HTTPClient) FetchArchive(ctx context.Context, locator string) ([]byte, error) {
	if locator == "" {
		return nil, fmt.Errorf("empty archive locator: %w", common.ErrBadRequest)
	}

	path, q := "/api/proxy-storage/path", url.Values{"path": {locator}}
	if u, err := url.Parse(locator); err == nil && u.IsAbs() {
		path, q = "/api/proxy-storage", url.Values{"url": {locator}}
	}

	resp, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", common.ErrUpstreamFetch)
	}
	return data, nil
}

// RequestUploadURL asks the gateway for a presigned archive upload URL.
func (c *HTTPClient) RequestUploadURL(ctx context.Context, applicationCode string) (*UploadTask, error) {
	var task UploadTask
	q := url.Values{"code": {applicationCode}}
	if err := c.doJSON(ctx, http.MethodPost, "/api/uploads", q, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CommitDocuments records an uploaded archive on the application.
func (c *HTTPClient) CommitDocuments(ctx context.Context, applicationCode string, req *CommitRequest) (*Application, error) {
	var app Application
	q := url.Values{"code": {applicationCode}}
	if err := c.doJSON(ctx, http.MethodPost, "/api/applications/documents-meta", q, req, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// Decide records a reviewer decision ("accept" or "reject").
func (c *HTTPClient) Decide(ctx context.Context, applicationCode, event string) (*Application, error) {
	var app Application
	q := url.Values{"code": {applicationCode}}
	body := map[string]string{"event": event}
	if err := c.doJSON(ctx, http.MethodPost, "/api/applications/decision", q, body, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// Ping reports whether the gateway and its dependencies are healthy.
func (c *HTTPClient) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, q url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	resp, err := c.do(ctx, method, path, q, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// do sends a request and returns the response only for 2xx statuses.
func (c *HTTPClient) do(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Response, error) {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s %s: %v: %w", method, path, err, ErrUnavailable)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er errorResponse
		if json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&er) == nil {
			apiErr.Message = er.Error
		}
		return nil, apiErr
	}
	return resp, nil
}
