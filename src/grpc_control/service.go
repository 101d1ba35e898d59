package grpc_control

import (
	"fmt"
	"net"

	"financials-sync/src/logger"
	"financials-sync/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// SyncServiceName is the health key reflecting the last run's outcome.
const SyncServiceName = "financials_sync.Synchronizer"

// HealthService serves grpc.health.v1. The overall status is SERVING while
// the process runs; SyncServiceName turns NOT_SERVING after a run in which
// no company could be updated.
type HealthService struct {
	Logger *logger.Logger
	Port   int

	server *grpc.Server
	health *health.Server
}

// NewHealthService creates a new instance of HealthService
func NewHealthService(port int, log *logger.Logger) *HealthService {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(SyncServiceName, healthpb.HealthCheckResponse_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &HealthService{
		Logger: log,
		Port:   port,
		server: srv,
		health: hs,
	}
}

// -----------------------------------------------------------------------------

// Start listens on the configured port and serves until Stop.
func (s *HealthService) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.Port, err)
	}
	s.Logger.Info("gRPC health service listening on :%d", s.Port)
	return s.Serve(lis)
}

// -----------------------------------------------------------------------------

func (s *HealthService) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// -----------------------------------------------------------------------------

func (s *HealthService) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

// -----------------------------------------------------------------------------

// Report implements the progress reporter contract.
func (s *HealthService) Report(event models.MProgressEvent) {
	if event.Type != models.ProgressRunFinished || event.Summary == nil {
		return
	}

	status := healthpb.HealthCheckResponse_SERVING
	if event.Summary.Attempted > 0 && event.Summary.Succeeded == 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		s.Logger.Warning("gRPC: marking %s NOT_SERVING, last run updated no company", SyncServiceName)
	}
	s.health.SetServingStatus(SyncServiceName, status)
}
