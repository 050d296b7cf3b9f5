// Package storage is the gateway's view of the object store: existence
// checks, streaming reads, presigned uploads, and the mapping between
// object keys and public URLs.
package storage

import (
	"context"
	"io"
	"time"
)

// Object is an open object body plus the headers the gateway forwards.
// The caller must close Body.
type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64 // -1 when unknown
	CacheControl  string
	ETag          string
	LastModified  time.Time
}

// BlobStore reads and presigns objects by key. Get and Exists report a
// missing object with common.ErrorNotFound and false respectively; any other
// error is an SDK or transport failure.
type BlobStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (*Object, error)
	PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error)
	PublicURL(key string) string
	KeyFromURL(raw string) (string, error)
}
