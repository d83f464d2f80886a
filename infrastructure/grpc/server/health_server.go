package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported by the health endpoint, next to the overall "" status.
const ServiceName = "chat.relay"

// HealthServer exposes grpc.health.v1.Health for orchestrators and load balancers.
// It reports SERVING while Run is active and NOT_SERVING once shutdown begins.
type HealthServer struct {
	log      *slog.Logger
	listener net.Listener
	server   *grpc.Server
	health   *health.Server
}

func NewHealthServer(log *slog.Logger, listener net.Listener) *HealthServer {
	s := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	return &HealthServer{log: log, listener: listener, server: s, health: h}
}

func (s *HealthServer) Addr() net.Addr { return s.listener.Addr() }

// SetServing flips the relay status without stopping the endpoint.
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *HealthServer) Run(ctx context.Context) error {
	s.SetServing(true)

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting health endpoint", "address", s.listener.Addr().String())
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("health endpoint error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.server.GracefulStop()
		return nil
	case err := <-errChan:
		return err
	}
}
