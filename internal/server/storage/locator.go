package storage

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/recdocs/internal/common"
)

// Locator converts between object keys and path-style public URLs
// ("<base>/<bucket>/<key>").
type Locator struct {
	base   *url.URL
	bucket string
}

// NewLocator parses the public base URL of the object store.
func NewLocator(publicURL, bucket string) (*Locator, error) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return nil, fmt.Errorf("parse public url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("public url %q must be absolute", publicURL)
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket is empty")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return &Locator{base: u, bucket: bucket}, nil
}

// PublicURL returns the public URL of key.
func (l *Locator) PublicURL(key string) string {
	u := *l.base
	u.Path = u.Path + "/" + l.bucket + "/" + strings.TrimPrefix(key, "/")
	u.RawQuery = ""
	return u.String()
}

// KeyFromURL extracts the object key from a public object URL.
//
// It fails with common.ErrBadRequest for URLs that are not absolute or do
// not point into the bucket (including paths with dot segments), and with
// common.ErrForbidden for URLs on any
// host other than the object store.
func (l *Locator) KeyFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q: %w", raw, common.ErrBadRequest)
	}
	if !strings.EqualFold(u.Host, l.base.Host) {
		return "", fmt.Errorf("host %q: %w", u.Host, common.ErrForbidden)
	}

	if hasDotSegment(u.Path) {
		return "", fmt.Errorf("url %q has dot segments: %w", raw, common.ErrBadRequest)
	}

	prefix := l.base.Path + "/" + l.bucket + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", fmt.Errorf("url %q is outside bucket: %w", raw, common.ErrBadRequest)
	}
	key := strings.TrimPrefix(u.Path, prefix)
	if key == "" {
		return "", fmt.Errorf("url %q has no object key: %w", raw, common.ErrBadRequest)
	}
	return key, nil
}

func hasDotSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}
