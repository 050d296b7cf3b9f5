package gateway

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/recdocs/internal/archive"
	"github.com/dmitrijs2005/recdocs/internal/common"
	"github.com/dmitrijs2005/recdocs/internal/mimex"
	"github.com/dmitrijs2005/recdocs/internal/server/storage"
)

const pdfType = "application/pdf"

// GET /api/proxy-storage/path?path=<object key>
func (g *Gateway) proxyStoragePath(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(strings.TrimSpace(r.URL.Query().Get("path")), "/")
	if key == "" {
		g.fail(w, r, http.StatusBadRequest, msgNoPath, common.ErrBadRequest)
		return
	}

	ctx, cancel := g.withTimeout(r)
	defer cancel()

	obj, err := g.open(ctx, key, g.store.PublicURL(key))
	if err != nil {
		g.failOpen(w, r, err)
		return
	}
	defer obj.Body.Close()

	h := w.Header()
	h.Set("Content-Type", "application/zip")
	g.stream(w, r, obj, http.StatusOK)
}

// GET /api/proxy-storage?url=<public object url>
func (g *Gateway) proxyStorage(w http.ResponseWriter, r *http.Request) {
	rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if rawURL == "" {
		g.fail(w, r, http.StatusBadRequest, msgNoURL, common.ErrBadRequest)
		return
	}

	key, err := g.store.KeyFromURL(rawURL)
	if err != nil {
		if errors.Is(err, common.ErrForbidden) {
			g.fail(w, r, http.StatusForbidden, msgHostNotAllowed, err)
			return
		}
		g.fail(w, r, http.StatusBadRequest, msgInvalidURL, err)
		return
	}

	ctx, cancel := g.withTimeout(r)
	defer cancel()

	obj, err := g.open(ctx, key, rawURL)
	if err != nil {
		g.failOpen(w, r, err)
		return
	}
	defer obj.Body.Close()

	h := w.Header()
	h.Set("Content-Type", storageContentType(key, obj.ContentType))
	h.Set("Content-Disposition", disposition(true, path.Base(key)))
	if obj.CacheControl != "" {
		h.Set("Cache-Control", obj.CacheControl)
	} else {
		h.Set("Cache-Control", "public, max-age=3600")
	}
	h.Set("Accept-Ranges", "bytes")
	g.stream(w, r, obj, http.StatusOK)
}

// GET /api/proxy-document?url=<document url>&inline=<bool>
func (g *Gateway) proxyDocument(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rawURL := strings.TrimSpace(q.Get("url"))
	if rawURL == "" {
		g.fail(w, r, http.StatusBadRequest, msgNoURL, common.ErrBadRequest)
		return
	}
	inline, _ := strconv.ParseBool(q.Get("inline"))

	allowed, err := g.documentURLAllowed(rawURL)
	if err != nil {
		g.fail(w, r, http.StatusBadRequest, msgInvalidURL, err)
		return
	}
	if !allowed {
		g.fail(w, r, http.StatusForbidden, msgHostNotAllowed, fmt.Errorf("document url %q: %w", rawURL, common.ErrForbidden))
		return
	}

	ctx, cancel := g.withTimeout(r)
	defer cancel()

	resp, err := g.fetchDocument(ctx, rawURL)
	if err != nil {
		if errors.Is(err, common.ErrForbidden) {
			g.fail(w, r, http.StatusForbidden, msgHostNotAllowed, err)
			return
		}
		var statusErr *UpstreamStatusError
		if errors.As(err, &statusErr) {
			g.fail(w, r, statusErr.StatusCode, msgDocumentFailed, err)
			return
		}
		g.fail(w, r, http.StatusInternalServerError, msgDocumentFailed, err)
		return
	}
	defer resp.Body.Close()

	name := path.Base(resp.Request.URL.Path)
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, mimex.DefaultType) {
		contentType = mimex.Resolve(rawURL)
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", disposition(inline, name))
	for _, k := range []string{"ETag", "Last-Modified", "Cache-Control"} {
		if v := resp.Header.Get(k); v != "" {
			h.Set(k, v)
		}
	}

	g.stream(w, r, &storage.Object{Body: resp.Body, ContentLength: resp.ContentLength}, http.StatusOK)
}

// GET /api/auto-extract-zip?path=<archive key>
func (g *Gateway) autoExtractZip(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(strings.TrimSpace(r.URL.Query().Get("path")), "/")
	if key == "" {
		g.fail(w, r, http.StatusBadRequest, msgNoPath, common.ErrBadRequest)
		return
	}

	ctx, cancel := g.withTimeout(r)
	defer cancel()

	obj, err := g.open(ctx, key, g.store.PublicURL(key))
	if err != nil {
		g.failOpen(w, r, err)
		return
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(io.LimitReader(obj.Body, g.maxArchiveSize+1))
	if err != nil {
		g.fail(w, r, http.StatusInternalServerError, msgFetchFailed, fmt.Errorf("read archive %s: %w", key, err))
		return
	}
	if int64(len(data)) > g.maxArchiveSize {
		g.fail(w, r, http.StatusInternalServerError, msgExtractFailed, fmt.Errorf("archive %s exceeds %d bytes", key, g.maxArchiveSize))
		return
	}

	name, content, err := archive.ExtractFirst(data, archive.HasSuffixFold(".pdf"))
	if errors.Is(err, common.ErrorNotFound) {
		g.fail(w, r, http.StatusNotFound, msgNoPDF, err)
		return
	}
	if err != nil {
		g.fail(w, r, http.StatusInternalServerError, msgExtractFailed, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", pdfType)
	h.Set("Content-Disposition", disposition(true, path.Base(name)))
	h.Set("Cache-Control", "private, max-age=300")
	setCORS(h)
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		g.logger.Warn(r.Context(), "write response", "route", r.URL.Path, "request_id", requestID(r), "error", err)
	}
}

func (g *Gateway) failOpen(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, common.ErrorNotFound) {
		g.fail(w, r, http.StatusNotFound, msgFileNotFound, err)
		return
	}
	g.fail(w, r, http.StatusInternalServerError, msgFetchFailed, err)
}

// stream copies obj to w after the common security and CORS headers.
func (g *Gateway) stream(w http.ResponseWriter, r *http.Request, obj *storage.Object, status int) {
	h := w.Header()
	setCORS(h)
	h.Set("X-Content-Type-Options", "nosniff")
	if obj.ContentLength >= 0 {
		h.Set("Content-Length", strconv.FormatInt(obj.ContentLength, 10))
	}
	if obj.ETag != "" && h.Get("ETag") == "" {
		h.Set("ETag", obj.ETag)
	}
	if !obj.LastModified.IsZero() && h.Get("Last-Modified") == "" {
		h.Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(status)

	if _, err := io.Copy(w, obj.Body); err != nil {
		g.logger.Warn(r.Context(), "stream interrupted", "route", r.URL.Path, "request_id", requestID(r), "error", err)
	}
}

// storageContentType prefers PDF whenever the key or the stored metadata
// says so, then the stored type, then the type implied by the key.
func storageContentType(key, stored string) string {
	byKey := mimex.Resolve(key)
	if byKey == pdfType || strings.Contains(strings.ToLower(stored), "pdf") {
		return pdfType
	}
	if stored != "" && !strings.HasPrefix(stored, mimex.DefaultType) {
		return stored
	}
	return byKey
}

func disposition(inline bool, name string) string {
	kind := "attachment"
	if inline {
		kind = "inline"
	}
	if name == "" || name == "." || name == "/" {
		return kind
	}
	if v := mime.FormatMediaType(kind, map[string]string{"filename": name}); v != "" {
		return v
	}
	return kind
}
