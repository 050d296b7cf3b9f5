// Package grpc exposes the standard gRPC health service for the gateway.
// Registered checks (database, object store) are probed periodically; the
// overall status is SERVING only while every check passes.
package grpc

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/recdocs/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

type GRPCServer struct {
	address  string
	logger   logging.Logger
	health   *health.Server
	interval time.Duration

	mu     sync.Mutex
	checks map[string]Checker
}

func NewGRPCServer(a string, l logging.Logger, interval time.Duration) *GRPCServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		health:   health.NewServer(),
		interval: interval,
		checks:   make(map[string]Checker),
	}
}

// AddCheck registers c under service. It must be called before Run.
func (s *GRPCServer) AddCheck(service string, c Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[service] = c
}

func (s *GRPCServer) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve runs the server on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	s.probe(ctx)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping gPRC server...")
				s.health.Shutdown()
				srv.GracefulStop()
				return
			case <-ticker.C:
				s.probe(ctx)
			}
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}

func (s *GRPCServer) probe(ctx context.Context) {
	s.mu.Lock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)

	overall := healthpb.HealthCheckResponse_SERVING
	for _, name := range names {
		s.mu.Lock()
		check := s.checks[name]
		s.mu.Unlock()

		status := healthpb.HealthCheckResponse_SERVING
		if err := check(ctx); err != nil {
			s.logger.Warn(ctx, "health check failed", "service", name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = status
		}
		s.health.SetServingStatus(name, status)
	}
	s.health.SetServingStatus("", overall)
}
