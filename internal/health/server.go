// Package health runs the gRPC health service (grpc.health.v1) with server
// reflection. Serving status follows the route store's connectivity.
package health

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Checker reports whether a dependency is reachable
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Server wraps a grpc.Server exposing health and reflection
type Server struct {
	grpc    *grpc.Server
	health  *grpchealth.Server
	checker Checker
	logger  zerolog.Logger
}

// NewServer creates the gRPC server and marks it serving
func NewServer(checker Checker, logger zerolog.Logger) *Server {
	s := &Server{
		grpc:    grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler())),
		health:  grpchealth.NewServer(),
		checker: checker,
		logger:  logger,
	}

	grpc_health_v1.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	s.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	return s
}

// Check runs the checker once and updates the serving status
func (s *Server) Check(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err := s.checker.HealthCheck(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Health check failed")
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}

	s.setStatus(status)
	return status
}

// Watch re-checks every interval until ctx is done
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Serve accepts connections on lis until Stop
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")
	return s.grpc.Serve(lis)
}

// Stop marks every service not serving and stops gracefully, forcing the
// stop once ctx is done
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown timeout exceeded, forcing stop")
		s.grpc.Stop()
	case <-stopped:
		s.logger.Info().Msg("gRPC server stopped")
	}
}

func (s *Server) setStatus(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	// only the overall status; the API is served over HTTP, not gRPC
	s.health.SetServingStatus("", status)
}
