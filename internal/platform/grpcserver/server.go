package grpcserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server exposes the standard gRPC health service so orchestrators can probe
// the API process without going through HTTP.
type Server struct {
	addr   string
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func New(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	return &Server{
		addr:   addr,
		grpc:   grpcServer,
		health: healthSrv,
		logger: logger,
	}
}

// SetServing flips the overall and per-service status.
func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	if service != "" {
		s.health.SetServingStatus(service, status)
	}
}

// Run listens on addr and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", s.addr, err)
	}
	return s.Serve(ctx, lis)
}

func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("grpc health server starting",
			"event", "grpc_server_starting",
			"module", "internal/platform/grpcserver",
			"layer", "platform",
			"addr", lis.Addr().String(),
		)
		errCh <- s.grpc.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	}
}
