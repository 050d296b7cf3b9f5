package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/dmitrijs2005/recdocs/internal/client/cache"
	"github.com/dmitrijs2005/recdocs/internal/client/client"
	"github.com/dmitrijs2005/recdocs/internal/client/config"
	"github.com/dmitrijs2005/recdocs/internal/client/prefetch"
	"github.com/dmitrijs2005/recdocs/internal/client/services"
	"github.com/dmitrijs2005/recdocs/internal/logging"
)

// App holds the dependencies shared by all commands. It is built lazily in
// the root command's PersistentPreRunE, once flags are parsed.
type App struct {
	config *config.Config
	out    io.Writer
	errOut io.Writer
	logger logging.Logger

	client      *client.HTTPClient
	cache       *cache.Store
	db          *sql.DB
	prefetcher  *prefetch.Prefetcher
	submissions *services.SubmissionService
}

func newApp(ctx context.Context, cfg *config.Config, out, errOut io.Writer, verbose bool) (*App, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := logging.NewJSON(errOut, level)

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	c, err := client.New(cfg.ServerBaseURL, httpClient)
	if err != nil {
		return nil, err
	}

	store, db, err := cache.Open(ctx, cfg.CacheDSN, cfg.CacheKeyPrefix)
	if err != nil {
		return nil, err
	}

	a := &App{
		config: cfg,
		out:    out,
		errOut: errOut,
		logger: logger,
		client: c,
		cache:  store,
		db:     db,
	}
	a.prefetcher = prefetch.New(c, c, store,
		prefetch.WithHashVerification(cfg.VerifyHash),
		prefetch.WithLogger(logger),
		prefetch.WithNotifier(a.notify),
	)
	a.submissions = services.NewSubmissionService(c, httpClient, logger)
	return a, nil
}

func (a *App) notify(ctx context.Context, e prefetch.Event, code string, err error) {
	switch e {
	case prefetch.EventCacheMiss:
		fmt.Fprintf(a.errOut, "%s: downloading documents\n", code)
	case prefetch.EventFetchFailed:
		fmt.Fprintf(a.errOut, "%s: %v\n", code, err)
	}
}

// Close releases the cache database. It is safe to call on an App that was
// never initialized.
func (a *App) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	db := a.db
	a.db = nil
	return db.Close()
}
