package prefetch

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/recdocs/internal/models"
)

// DocumentSet is a lazily resolved view of one application's documents.
// The first GetFile triggers Ensure; later calls are served from the
// resolved map until Retry.
type DocumentSet struct {
	p    *Prefetcher
	code string

	mu    sync.Mutex
	files models.FileMap
	err   error
	gen   uint64 // bumped by Retry so stale resolutions are not stored
}

// Documents returns a DocumentSet for applicationCode.
func (p *Prefetcher) Documents(applicationCode string) *DocumentSet {
	return &DocumentSet{p: p, code: applicationCode}
}

// GetFile returns the named file. ok is false when the archive has no such
// entry. A failed resolution is remembered and returned until Retry.
func (d *DocumentSet) GetFile(ctx context.Context, name string) (content []byte, ok bool, err error) {
	files, err := d.resolve(ctx)
	if err != nil {
		return nil, false, err
	}
	content, ok = files[name]
	return content, ok, nil
}

// Files lists the resolved entry names in order. It is empty before the
// set has been resolved.
func (d *DocumentSet) Files() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := d.files.Names()
	sort.Strings(names)
	return names
}

// Err returns the last resolution failure, if any.
func (d *DocumentSet) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Retry drops any remembered result and resolves again.
func (d *DocumentSet) Retry(ctx context.Context) error {
	d.mu.Lock()
	d.files, d.err = nil, nil
	d.gen++
	d.mu.Unlock()

	_, err := d.resolve(ctx)
	return err
}

// resolve does not hold d.mu while Ensure runs; concurrent callers share
// the in-flight operation through the Prefetcher's singleflight group.
func (d *DocumentSet) resolve(ctx context.Context) (models.FileMap, error) {
	d.mu.Lock()
	if d.files != nil || d.err != nil {
		files, err := d.files, d.err
		d.mu.Unlock()
		return files, err
	}
	gen := d.gen
	d.mu.Unlock()

	files, err := d.p.Ensure(ctx, d.code)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		// a caller giving up is not a resolution failure
		if ctx.Err() == nil && d.gen == gen && d.files == nil {
			d.err = err
		}
		return nil, err
	}
	if d.gen == gen {
		d.files, d.err = files, nil
	}
	return files, nil
}
