package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/recdocs/internal/common"
)

// FetchPublic GETs url with a plain HTTP client. It is the fallback path
// when the SDK read fails. A 404 maps to common.ErrorNotFound; any other
// non-2xx status or transport failure maps to common.ErrUpstreamFetch.
func FetchPublic(ctx context.Context, client *http.Client, url string) (*Object, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstreamFetch, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstreamFetch, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", url, common.ErrorNotFound)
		}
		return nil, fmt.Errorf("%w: %s returned %s", common.ErrUpstreamFetch, url, resp.Status)
	}

	obj := &Object{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		CacheControl:  resp.Header.Get("Cache-Control"),
		ETag:          resp.Header.Get("ETag"),
	}
	if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		obj.LastModified = lm.UTC()
	}
	return obj, nil
}
