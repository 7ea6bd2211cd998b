package grpcserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"innkeep/internal/infra/obs"
)

// ServiceName is the health service entry reported alongside the overall status.
const ServiceName = "innkeep.v1.Availability"

// HealthServer exposes the standard gRPC health protocol. Its status follows
// the same readiness checks as /readyz.
type HealthServer struct {
	Server   *grpc.Server
	Checks   []obs.Check
	Interval time.Duration
	Logger   *slog.Logger

	health *health.Server
}

func NewHealthServer(checks []obs.Check, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(srv, h)
	return &HealthServer{Server: srv, Checks: checks, Logger: logger, health: h}
}

// Serve listens on addr until ctx is cancelled.
func (s *HealthServer) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go s.watch(ctx)
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.Server.GracefulStop()
	}()
	s.Logger.Info("grpc health listening", "addr", addr)
	if err := s.Server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *HealthServer) watch(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	s.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Refresh runs the checks once and publishes the resulting status.
func (s *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	status := healthpb.HealthCheckResponse_SERVING
	if err := obs.RunChecks(checkCtx, s.Checks); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		s.Logger.WarnContext(ctx, "grpc health not serving", "error", err)
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}
