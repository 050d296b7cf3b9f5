package prefetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/recdocs/internal/archive"
	"github.com/dmitrijs2005/recdocs/internal/common"
	"github.com/dmitrijs2005/recdocs/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMeta struct {
	mu    sync.Mutex
	metas map[string]*models.DocumentsMeta
	err   error
}

func (f *fakeMeta) GetDocumentsMeta(_ context.Context, code string) (*models.DocumentsMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.metas[code], nil
}

func (f *fakeMeta) set(code string, m *models.DocumentsMeta) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metas[code] = m
}

type fakeFetcher struct {
	blobs map[string][]byte
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeFetcher) FetchArchive(ctx context.Context, locator string) ([]byte, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.blobs[locator]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return b, nil
}

type memCache struct {
	mu      sync.Mutex
	records map[string]models.FileMap
	puts    int
	pruned  []string
	putErr  error
}

func newMemCache() *memCache {
	return &memCache{records: map[string]models.FileMap{}}
}

func (c *memCache) Get(_ context.Context, app, hash string) (models.FileMap, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[app+":"+hash], nil
}

func (c *memCache) Put(_ context.Context, app, hash string, files models.FileMap) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return c.putErr
	}
	c.puts++
	c.records[app+":"+hash] = files
	return nil
}

func (c *memCache) Prune(_ context.Context, app, keep string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruned = append(c.pruned, app+":"+keep)
	var n int64
	for k := range c.records {
		if len(k) > len(app) && k[:len(app)+1] == app+":" && k != app+":"+keep {
			delete(c.records, k)
			n++
		}
	}
	return n, nil
}

func buildArchive(t *testing.T, content string) *archive.Package {
	t.Helper()
	pkg, err := archive.Build([]archive.SourceFile{
		{FieldKey: "form", Title: "Application Form", Files: []archive.File{{Name: "form.pdf", Content: []byte(content)}}},
	})
	require.NoError(t, err)
	return pkg
}

type fixture struct {
	meta    *fakeMeta
	fetcher *fakeFetcher
	cache   *memCache
	pkg     *archive.Package
}

func newFixture(t *testing.T) *fixture {
	pkg := buildArchive(t, "%PDF-1")
	return &fixture{
		meta: &fakeMeta{metas: map[string]*models.DocumentsMeta{
			"APP-1": {ZipHash: pkg.Hash, ZipDownloadURL: "applications/APP-1/v1.zip"},
		}},
		fetcher: &fakeFetcher{blobs: map[string][]byte{"applications/APP-1/v1.zip": pkg.Data}},
		cache:   newMemCache(),
		pkg:     pkg,
	}
}

func (f *fixture) prefetcher(opts ...Option) *Prefetcher {
	return New(f.meta, f.fetcher, f.cache, opts...)
}

func TestEnsure_MissThenHit(t *testing.T) {
	f := newFixture(t)
	var events []Event
	p := f.prefetcher(WithNotifier(func(_ context.Context, e Event, code string, err error) {
		assert.Equal(t, "APP-1", code)
		events = append(events, e)
	}))

	files, err := p.Ensure(context.Background(), "APP-1")
	require.NoError(t, err)
	assert.Equal(t, models.FileMap{"Application_Form.pdf": []byte("%PDF-1")}, files)

	again, err := p.Ensure(context.Background(), "APP-1")
	require.NoError(t, err)
	assert.Equal(t, files, again)

	assert.Equal(t, int32(1), f.fetcher.calls.Load())
	assert.Equal(t, []Event{EventCacheMiss, EventStored, EventCacheHit}, events)
}

func TestEnsure_ConcurrentCallsShareOneFetch(t *testing.T) {
	f := newFixture(t)
	f.fetcher.gate = make(chan struct{})
	p := f.prefetcher()

	const n = 8
	var wg sync.WaitGroup
	results := make([]models.FileMap, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Ensure(context.Background(), "APP-1")
		}(i)
	}

	require.Eventually(t, func() bool { return f.fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)
	// let stragglers join the in-flight call before releasing it
	time.Sleep(20 * time.Millisecond)
	close(f.fetcher.gate)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, int32(1), f.fetcher.calls.Load())
	assert.Equal(t, 1, f.cache.puts)
}

func TestEnsure_NewVersionIsFetchedAndOldPruned(t *testing.T) {
	f := newFixture(t)
	p := f.prefetcher()

	_, err := p.Ensure(context.Background(), "APP-1")
	require.NoError(t, err)

	v2 := buildArchive(t, "%PDF-2")
	f.fetcher.blobs["applications/APP-1/v2.zip"] = v2.Data
	f.meta.set("APP-1", &models.DocumentsMeta{ZipHash: v2.Hash, ZipDownloadURL: "applications/APP-1/v2.zip"})

	files, err := p.Ensure(context.Background(), "APP-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-2"), files["Application_Form.pdf"])
	assert.Equal(t, int32(2), f.fetcher.calls.Load())

	_, stale := f.cache.records["APP-1:"+f.pkg.Hash]
	assert.False(t, stale)
	assert.Len(t, f.cache.records, 1)
}

func TestEnsure_MetadataMissing(t *testing.T) {
	f := newFixture(t)
	p := f.prefetcher()

	_, err := p.Ensure(context.Background(), "UNKNOWN")
	assert.True(t, errors.Is(err, common.ErrMetadataMissing))

	f.meta.set("EMPTY", &models.DocumentsMeta{})
	_, err = p.Ensure(context.Background(), "EMPTY")
	assert.True(t, errors.Is(err, common.ErrMetadataMissing))

	f.meta.err = common.ErrMetadataMissing
	_, err = p.Ensure(context.Background(), "APP-1")
	assert.True(t, errors.Is(err, common.ErrMetadataMissing))
	assert.Zero(t, f.fetcher.calls.Load())
}

func TestEnsure_HashMismatchCachesNothing(t *testing.T) {
	f := newFixture(t)
	f.fetcher.blobs["applications/APP-1/v1.zip"] = buildArchive(t, "tampered").Data

	var failed error
	p := f.prefetcher(WithNotifier(func(_ context.Context, e Event, _ string, err error) {
		if e == EventFetchFailed {
			failed = err
		}
	}))

	_, err := p.Ensure(context.Background(), "APP-1")
	assert.True(t, errors.Is(err, common.ErrHashMismatch))
	assert.True(t, errors.Is(failed, common.ErrHashMismatch))
	assert.Zero(t, f.cache.puts)
}

func TestEnsure_VerificationDisabledOrLegacyHash(t *testing.T) {
	f := newFixture(t)
	f.fetcher.blobs["applications/APP-1/v1.zip"] = buildArchive(t, "other").Data

	files, err := f.prefetcher(WithHashVerification(false)).Ensure(context.Background(), "APP-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("other"), files["Application_Form.pdf"])

	g := newFixture(t)
	g.meta.set("APP-1", &models.DocumentsMeta{ZipHash: "legacy-1234", ZipDownloadURL: "applications/APP-1/v1.zip"})
	_, err = g.prefetcher().Ensure(context.Background(), "APP-1")
	require.NoError(t, err)
	_, ok := g.cache.records["APP-1:legacy-1234"]
	assert.True(t, ok)
}

func TestEnsure_FetchAndExtractFailures(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = common.ErrUpstreamFetch
	p := f.prefetcher()

	_, err := p.Ensure(context.Background(), "APP-1")
	assert.True(t, errors.Is(err, common.ErrUpstreamFetch))

	// the failure is not remembered
	f.fetcher.err = nil
	_, err = p.Ensure(context.Background(), "APP-1")
	require.NoError(t, err)

	g := newFixture(t)
	g.fetcher.blobs["applications/APP-1/v1.zip"] = []byte("not a zip")
	_, err = g.prefetcher(WithHashVerification(false)).Ensure(context.Background(), "APP-1")
	assert.True(t, errors.Is(err, common.ErrCorruptArchive))
	assert.Zero(t, g.cache.puts)
}

func TestEnsure_CacheWriteFailure(t *testing.T) {
	f := newFixture(t)
	f.cache.putErr = errors.New("disk full")

	_, err := f.prefetcher().Ensure(context.Background(), "APP-1")
	assert.ErrorContains(t, err, "write cache: disk full")
}

func TestEnsure_CallerCancelDoesNotCancelSharedWork(t *testing.T) {
	f := newFixture(t)
	f.fetcher.gate = make(chan struct{})
	p := f.prefetcher()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Ensure(ctx, "APP-1")
		done <- err
	}()

	require.Eventually(t, func() bool { return f.fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))

	close(f.fetcher.gate)
	require.Eventually(t, func() bool {
		f.cache.mu.Lock()
		defer f.cache.mu.Unlock()
		return f.cache.puts == 1
	}, time.Second, time.Millisecond)
}
