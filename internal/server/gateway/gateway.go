// Package gateway is the storage proxy in front of the object store and the
// small JSON API that records submitted archives.
//
// Proxy handlers are stateless: every request opens its own upstream read,
// bound to the request context and the configured upstream timeout.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/recdocs/internal/common"
	"github.com/dmitrijs2005/recdocs/internal/logging"
	"github.com/dmitrijs2005/recdocs/internal/server/storage"
)

const (
	defaultTimeout        = 60 * time.Second
	defaultMaxArchiveSize = 256 << 20
	maxRedirects          = 10
)

// UpstreamStatusError is a non-2xx response from a fetched document URL.
// Its status is propagated to the client.
type UpstreamStatusError struct {
	StatusCode int
	URL        string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream %s returned %d", e.URL, e.StatusCode)
}

func (e *UpstreamStatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return common.ErrorNotFound
	}
	return common.ErrUpstreamFetch
}

type Gateway struct {
	store          storage.BlobStore
	client         *http.Client
	logger         logging.Logger
	timeout        time.Duration
	maxArchiveSize int64
	documentHosts  map[string]struct{}
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient sets the client used for fallback and document fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		if c != nil {
			g.client = c
		}
	}
}

// WithTimeout bounds every upstream read.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithMaxArchiveSize limits how much of an archive auto-extract buffers.
func WithMaxArchiveSize(n int64) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxArchiveSize = n
		}
	}
}

// WithDocumentHosts allows proxy-document to fetch from hosts other than the
// object store.
func WithDocumentHosts(hosts ...string) Option {
	return func(g *Gateway) {
		for _, h := range hosts {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				g.documentHosts[h] = struct{}{}
			}
		}
	}
}

func New(store storage.BlobStore, logger logging.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		store:          store,
		client:         http.DefaultClient,
		logger:         logger.With("module", "gateway"),
		timeout:        defaultTimeout,
		maxArchiveSize: defaultMaxArchiveSize,
		documentHosts:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}

	// Every redirect hop is held to the same host rules as the requested URL.
	client := *g.client
	client.CheckRedirect = g.checkRedirect
	g.client = &client
	return g
}

func (g *Gateway) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects: %w", maxRedirects, common.ErrUpstreamFetch)
	}
	allowed, err := g.documentURLAllowed(req.URL.String())
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("redirect to %s: %w", req.URL.Redacted(), common.ErrForbidden)
	}
	return nil
}

// Register adds the proxy routes to mux.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/proxy-storage/path", g.proxyStoragePath)
	mux.HandleFunc("OPTIONS /api/proxy-storage/path", preflight)
	mux.HandleFunc("GET /api/proxy-storage", g.proxyStorage)
	mux.HandleFunc("OPTIONS /api/proxy-storage", preflight)
	mux.HandleFunc("GET /api/proxy-document", g.proxyDocument)
	mux.HandleFunc("OPTIONS /api/proxy-document", preflight)
	mux.HandleFunc("GET /api/auto-extract-zip", g.autoExtractZip)
	mux.HandleFunc("OPTIONS /api/auto-extract-zip", preflight)
}

// open returns the object stored under key. A missing object is reported as
// common.ErrorNotFound. Any other SDK failure is followed by exactly one
// plain GET of fallbackURL.
func (g *Gateway) open(ctx context.Context, key, fallbackURL string) (*storage.Object, error) {
	exists, err := g.store.Exists(ctx, key)
	if err == nil {
		if !exists {
			return nil, fmt.Errorf("object %s: %w", key, common.ErrorNotFound)
		}
		obj, getErr := g.store.Get(ctx, key)
		if getErr == nil || errors.Is(getErr, common.ErrorNotFound) {
			return obj, getErr
		}
		err = getErr
	}

	g.logger.Warn(ctx, "storage read failed, trying public url", "key", key, "error", err)

	obj, fbErr := storage.FetchPublic(ctx, g.client, fallbackURL)
	if fbErr != nil {
		return nil, fmt.Errorf("fallback fetch of %s after %v: %w", key, err, fbErr)
	}
	return obj, nil
}

// fetchDocument GETs rawURL and reports non-2xx responses as
// *UpstreamStatusError.
func (g *Gateway) fetchDocument(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstreamFetch, err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUpstreamFetch, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &UpstreamStatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}
	return resp, nil
}

// documentURLAllowed reports whether proxy-document may fetch rawURL.
func (g *Gateway) documentURLAllowed(rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return false, fmt.Errorf("url %q: %w", rawURL, common.ErrBadRequest)
	}
	if _, ok := g.documentHosts[strings.ToLower(u.Host)]; ok {
		return true, nil
	}
	if _, err := g.store.KeyFromURL(rawURL); err != nil {
		return false, nil
	}
	return true, nil
}

func (g *Gateway) fail(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	g.logger.Error(r.Context(), "request failed",
		"route", r.URL.Path,
		"status", status,
		"request_id", requestID(r),
		"error", err,
	)
	setCORS(w.Header())
	writeJSONError(w, status, msg)
}

func (g *Gateway) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), g.timeout)
}
