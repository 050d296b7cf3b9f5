// Package prefetch keeps the local document cache in step with the
// documents metadata recorded on the server.
//
// Ensure resolves the current archive version of an application, serves it
// from the cache when the exact version is present and otherwise downloads,
// verifies and extracts it once, however many callers ask at the same time.
package prefetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/recdocs/internal/archive"
	"github.com/dmitrijs2005/recdocs/internal/common"
	"github.com/dmitrijs2005/recdocs/internal/logging"
	"github.com/dmitrijs2005/recdocs/internal/models"
	"golang.org/x/sync/singleflight"
)

// MetaSource returns the documents metadata of an application.
type MetaSource interface {
	GetDocumentsMeta(ctx context.Context, applicationCode string) (*models.DocumentsMeta, error)
}

// ArchiveFetcher downloads an archive by its locator.
type ArchiveFetcher interface {
	FetchArchive(ctx context.Context, locator string) ([]byte, error)
}

// Cache is the content-addressed store Ensure reads and fills.
type Cache interface {
	Get(ctx context.Context, applicationCode, zipHash string) (models.FileMap, error)
	Put(ctx context.Context, applicationCode, zipHash string, files models.FileMap) error
	Prune(ctx context.Context, applicationCode, keepHash string) (int64, error)
}

// Event is a notable step of Ensure.
type Event string

const (
	EventCacheHit    Event = "cache_hit"
	EventCacheMiss   Event = "cache_miss"
	EventStored      Event = "stored"
	EventFetchFailed Event = "fetch_failed"
)

// Notifier receives Ensure events. err is set for EventFetchFailed only.
type Notifier func(ctx context.Context, event Event, applicationCode string, err error)

// Option configures a Prefetcher.
type Option func(*Prefetcher)

// WithHashVerification toggles checking downloaded archives against the
// declared hash. It is on by default.
func WithHashVerification(enabled bool) Option {
	return func(p *Prefetcher) {
		p.verify = enabled
	}
}

// WithNotifier installs an event callback.
func WithNotifier(n Notifier) Option {
	return func(p *Prefetcher) {
		p.notify = n
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Prefetcher) {
		p.logger = l
	}
}

// Prefetcher is safe for concurrent use.
type Prefetcher struct {
	meta    MetaSource
	fetcher ArchiveFetcher
	cache   Cache
	logger  logging.Logger
	notify  Notifier
	verify  bool
	group   singleflight.Group
}

func New(meta MetaSource, fetcher ArchiveFetcher, cache Cache, opts ...Option) *Prefetcher {
	p := &Prefetcher{
		meta:    meta,
		fetcher: fetcher,
		cache:   cache,
		logger:  logging.Discard(),
		verify:  true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("module", "prefetch")
	return p
}

// Ensure returns the extracted files of the application's current archive.
//
// Concurrent calls for the same application share one in-flight operation,
// which is forgotten once it completes or fails. The shared operation is
// not cancelled when one waiting caller gives up; each caller stops waiting
// when its own ctx is done.
func (p *Prefetcher) Ensure(ctx context.Context, applicationCode string) (models.FileMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := p.group.DoChan(applicationCode, func() (any, error) {
		return p.ensure(context.WithoutCancel(ctx), applicationCode)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(models.FileMap), nil
	}
}

func (p *Prefetcher) ensure(ctx context.Context, code string) (models.FileMap, error) {
	meta, err := p.meta.GetDocumentsMeta(ctx, code)
	if err != nil {
		if errors.Is(err, common.ErrMetadataMissing) {
			return nil, fmt.Errorf("application %s: %w", code, common.ErrMetadataMissing)
		}
		return nil, p.failed(ctx, code, fmt.Errorf("get documents meta of %s: %w", code, err))
	}
	if meta == nil || meta.ZipHash == "" || meta.ZipDownloadURL == "" {
		return nil, fmt.Errorf("application %s: %w", code, common.ErrMetadataMissing)
	}

	cached, err := p.cache.Get(ctx, code, meta.ZipHash)
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	if cached != nil {
		p.emit(ctx, EventCacheHit, code, nil)
		return cached, nil
	}
	p.emit(ctx, EventCacheMiss, code, nil)

	data, err := p.fetcher.FetchArchive(ctx, meta.ZipDownloadURL)
	if err != nil {
		return nil, p.failed(ctx, code, fmt.Errorf("fetch archive of %s: %w", code, err))
	}

	if p.verify {
		ok, err := archive.Verify(meta.ZipHash, data)
		if err != nil {
			return nil, p.failed(ctx, code, err)
		}
		if !ok {
			p.logger.Warn(ctx, "archive hash is not a digest, skipping verification", "application", code, "hash", meta.ZipHash)
		}
	}

	files, err := archive.Extract(data)
	if err != nil {
		return nil, p.failed(ctx, code, err)
	}

	if err := p.cache.Put(ctx, code, meta.ZipHash, files); err != nil {
		return nil, fmt.Errorf("write cache: %w", err)
	}
	p.emit(ctx, EventStored, code, nil)

	if n, err := p.cache.Prune(ctx, code, meta.ZipHash); err != nil {
		p.logger.Warn(ctx, "prune old versions failed", "application", code, "error", err)
	} else if n > 0 {
		p.logger.Debug(ctx, "pruned old versions", "application", code, "count", n)
	}

	return files, nil
}

func (p *Prefetcher) failed(ctx context.Context, code string, err error) error {
	p.logger.Error(ctx, "prefetch failed", "application", code, "error", err)
	p.emit(ctx, EventFetchFailed, code, err)
	return err
}

func (p *Prefetcher) emit(ctx context.Context, e Event, code string, err error) {
	if p.notify != nil {
		p.notify(ctx, e, code, err)
	}
}
