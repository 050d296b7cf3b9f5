// Package server initializes and runs the gateway: it opens the document
// store, applies migrations, connects to object storage, and serves the
// HTTP proxy/API and the gRPC health endpoint until a termination signal.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/recdocs/internal/logging"
	"github.com/dmitrijs2005/recdocs/internal/server/config"
	"github.com/dmitrijs2005/recdocs/internal/server/gateway"
	gs "github.com/dmitrijs2005/recdocs/internal/server/grpc"
	"github.com/dmitrijs2005/recdocs/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/recdocs/internal/server/services"
	"github.com/dmitrijs2005/recdocs/internal/server/storage"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	store  *storage.S3Store
	http   *http.Server
	grpc   *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, slog.LevelInfo)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := storage.NewS3Store(ctx, c)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	submissions := services.NewSubmissionService(db, rm, store, c)

	g := gateway.New(store, logger,
		gateway.WithTimeout(c.UpstreamTimeout),
		gateway.WithDocumentHosts(c.DocumentHosts...),
		gateway.WithHTTPClient(&http.Client{Timeout: c.UpstreamTimeout}),
	)
	api := gateway.NewAPI(submissions, logger, map[string]gateway.HealthCheck{
		"database": db.PingContext,
	})

	grpcServer := gs.NewGRPCServer(c.EndpointAddrGRPC, logger, 15*time.Second)
	grpcServer.AddCheck("database", db.PingContext)
	grpcServer.AddCheck("storage", func(ctx context.Context) error {
		// Any answer from the store, including "absent", means it is reachable.
		_, err := store.Exists(ctx, ".healthcheck")
		return err
	})

	return &App{
		config: c,
		logger: logger,
		db:     db,
		store:  store,
		http: &http.Server{
			Addr:              c.EndpointAddrHTTP,
			Handler:           gateway.NewRouter(g, api, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		grpc: grpcServer,
	}, nil
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM/SIGQUIT arrives, then
// shuts both servers down gracefully.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	defer app.db.Close()

	app.logger.Info(ctx, "Starting app...", "http", app.config.EndpointAddrHTTP, "grpc", app.config.EndpointAddrGRPC)

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return app.grpc.Run(ctx)
	})

	eg.Go(func() error {
		if err := app.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.http.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil {
		app.logger.Error(ctx, "server stopped with error", "error", err)
		return err
	}
	app.logger.Info(ctx, "Server stopped")
	return nil
}
