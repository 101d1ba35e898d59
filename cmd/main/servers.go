package main

import (
	"context"
	"time"

	"financials-sync/src/grpc_control"
	"financials-sync/src/interfaces"
	"financials-sync/src/logger"
	"financials-sync/src/metrics"
	"financials-sync/src/models"
	"financials-sync/src/server"
	"financials-sync/src/synchronizer"
)

// -----------------------------------------------------------------------------

// servers holds the optional status and health endpoints.
type servers struct {
	status *server.StatusServer
	health *grpc_control.HealthService
}

// -----------------------------------------------------------------------------

// startServers orchestrates the startup of all server components
func startServers(config *models.MConfig, appLogger *logger.Logger) *servers {
	s := &servers{}

	// 1. Status API (progress, metrics, websocket stream)
	if config.StatusEnabled {
		s.status = server.NewStatusServer(config, logger.NewLogger(config, "StatusServer"))
		go func() {
			if err := s.status.Start(); err != nil {
				appLogger.Error("Status server failed: %v", err)
			}
		}()
	}

	// 2. gRPC health service
	if config.GrpcPort != 0 {
		s.health = grpc_control.NewHealthService(config.GrpcPort, logger.NewLogger(config, "HealthService"))
		go func() {
			if err := s.health.Start(); err != nil {
				appLogger.Error("gRPC health service failed: %v", err)
			}
		}()
	}

	return s
}

// -----------------------------------------------------------------------------

// reporter fans progress out to the log, metrics and whichever servers run.
func (s *servers) reporter(appLogger *logger.Logger) interfaces.IProgressReporter {
	reporters := synchronizer.MultiReporter{
		synchronizer.LogReporter{Logger: appLogger},
		metrics.Reporter{},
	}
	if s.status != nil {
		reporters = append(reporters, s.status)
	}
	if s.health != nil {
		reporters = append(reporters, s.health)
	}
	return reporters
}

// -----------------------------------------------------------------------------

func (s *servers) stop(appLogger *logger.Logger) {
	if s.status != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.status.Stop(ctx); err != nil {
			appLogger.Warning("Status server shutdown: %v", err)
		}
	}
	if s.health != nil {
		s.health.Stop()
	}
}
