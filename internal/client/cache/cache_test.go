package cache

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/dmitrijs2005/recdocs/internal/models"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	s, db, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return s, db
}

func TestKey(t *testing.T) {
	assert.Equal(t, "recdocs-cache:APP-1:sha256:abc", Key("recdocs-cache", "APP-1", "sha256:abc"))
}

func TestPutGet_Identity(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	files := models.FileMap{
		"Application_Form.pdf": []byte("%PDF-form"),
		"Researcher_CV.docx":   []byte("docx"),
		"empty.txt":            {},
	}
	require.NoError(t, s.Put(ctx, "APP-1", "h1", files))

	got, err := s.Get(ctx, "APP-1", "h1")
	require.NoError(t, err)
	assert.Equal(t, files, got)

	miss, err := s.Get(ctx, "APP-1", "h2")
	require.NoError(t, err)
	assert.Nil(t, miss)

	other, err := s.Get(ctx, "APP-2", "h1")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestPut_EmptyMapIsAHit(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "APP-1", "h1", models.FileMap{}))

	got, err := s.Get(ctx, "APP-1", "h1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGet_NeverReturnsPartialRecord(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	files := models.FileMap{
		"a.pdf": []byte("a"),
		"b.pdf": []byte("b"),
	}
	require.NoError(t, s.Put(ctx, "APP-1", "h1", files))

	stop := make(chan struct{})
	writerErr := make(chan error, 1)
	go func() {
		defer close(writerErr)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if err := s.Clear(ctx, "APP-1", "h1"); err != nil {
				writerErr <- err
				return
			}
			if err := s.Put(ctx, "APP-1", "h1", files); err != nil {
				writerErr <- err
				return
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		got, err := s.Get(ctx, "APP-1", "h1")
		require.NoError(t, err)
		if got != nil {
			require.Equal(t, files, got, "iteration %d", i)
		}
	}
	close(stop)
	require.NoError(t, <-writerErr)
}

func TestPut_ReplacesWholeValue(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "APP-1", "h1", models.FileMap{"a.pdf": []byte("1"), "b.pdf": []byte("2")}))
	require.NoError(t, s.Put(ctx, "APP-1", "h1", models.FileMap{"c.pdf": []byte("3")}))

	got, err := s.Get(ctx, "APP-1", "h1")
	require.NoError(t, err)
	assert.Equal(t, models.FileMap{"c.pdf": []byte("3")}, got)
}

func TestClear(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "APP-1", "h1", models.FileMap{"a.pdf": []byte("1")}))
	require.NoError(t, s.Clear(ctx, "APP-1", "h1"))

	got, err := s.Get(ctx, "APP-1", "h1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// clearing twice is fine
	require.NoError(t, s.Clear(ctx, "APP-1", "h1"))
}

func TestPrune_KeepsOnlyRequestedVersion(t *testing.T) {
	s, db := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "APP-1", "old1", models.FileMap{"a.pdf": []byte("1")}))
	require.NoError(t, s.Put(ctx, "APP-1", "old2", models.FileMap{"a.pdf": []byte("2")}))
	require.NoError(t, s.Put(ctx, "APP-1", "new", models.FileMap{"a.pdf": []byte("3")}))
	require.NoError(t, s.Put(ctx, "APP-2", "old1", models.FileMap{"x.pdf": []byte("x")}))

	n, err := s.Prune(ctx, "APP-1", "new")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := s.Get(ctx, "APP-1", "new")
	require.NoError(t, err)
	assert.Equal(t, models.FileMap{"a.pdf": []byte("3")}, got)

	gone, err := s.Get(ctx, "APP-1", "old1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	untouched, err := s.Get(ctx, "APP-2", "old1")
	require.NoError(t, err)
	assert.NotNil(t, untouched)

	var orphans int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM cache_files WHERE record_key NOT IN (SELECT key FROM cache_records)`).Scan(&orphans))
	assert.Zero(t, orphans)
}

func TestClearAll(t *testing.T) {
	s, db := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "APP-1", "h1", models.FileMap{"a.pdf": []byte("1")}))
	require.NoError(t, s.Put(ctx, "APP-2", "h2", models.FileMap{"b.pdf": []byte("2")}))
	require.NoError(t, s.ClearAll(ctx))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM cache_records`).Scan(&n))
	assert.Zero(t, n)
}

func TestPrefixIsolatesStores(t *testing.T) {
	_, db := openStore(t)
	ctx := context.Background()

	a := New(db, "a")
	b := New(db, "b")
	require.NoError(t, a.Put(ctx, "APP-1", "h1", models.FileMap{"a.pdf": []byte("1")}))

	got, err := b.Get(ctx, "APP-1", "h1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOpen_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "cache.db")

	s, db, err := Open(ctx, dsn, "p")
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "APP-1", "h1", models.FileMap{"a.pdf": []byte("1")}))
	require.NoError(t, db.Close())

	s2, db2, err := Open(ctx, dsn, "p")
	require.NoError(t, err)
	defer db2.Close()

	got, err := s2.Get(ctx, "APP-1", "h1")
	require.NoError(t, err)
	names := got.Names()
	sort.Strings(names)
	assert.Equal(t, []string{"a.pdf"}, names)
}

func TestErrorsAreWrapped(t *testing.T) {
	s, db := openStore(t)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := s.Get(ctx, "APP-1", "h1")
	assert.ErrorContains(t, err, "failed to get cache record[test:APP-1:h1]")

	err = s.Put(ctx, "APP-1", "h1", models.FileMap{})
	assert.ErrorContains(t, err, "failed to put cache record[test:APP-1:h1]")

	_, err = s.Prune(ctx, "APP-1", "h1")
	assert.ErrorContains(t, err, "failed to prune cache of APP-1")

	assert.ErrorContains(t, s.Clear(ctx, "APP-1", "h1"), "failed to clear cache record")
	assert.ErrorContains(t, s.ClearAll(ctx), "failed to clear cache")
}

func TestRunMigrations_Error(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	_, _, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"), "p")
	assert.ErrorContains(t, err, "migrate cache: boom")
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "recdocs", "cache.db")

	_, db, err := Open(context.Background(), dsn, "p")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.PingContext(context.Background()))
}
