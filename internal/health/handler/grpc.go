// Package handler implements the standard grpc.health.v1 Health service with store and policy readiness.
package handler

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// checkTimeout bounds each dependency check.
const checkTimeout = 2 * time.Second

// Pinger checks the challenge store (e.g. repository.Repository).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker checks the issuance policy (e.g. *policy.OPAEvaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server implements grpc.health.v1.Health. Check reports NOT_SERVING when a dependency fails;
// it never returns a gRPC error for a failed dependency.
type Server struct {
	healthpb.UnimplementedHealthServer
	pinger   Pinger
	policy   PolicyChecker
	services map[string]bool
}

// NewServer returns a Health server. Nil pinger or policy skips that check. services lists the
// service names Check answers for in addition to "" (overall health).
func NewServer(pinger Pinger, policy PolicyChecker, services ...string) *Server {
	known := map[string]bool{"": true}
	for _, s := range services {
		known[s] = true
	}
	return &Server{pinger: pinger, policy: policy, services: known}
}

// Check returns SERVING when the store and policy checks pass, NOT_SERVING otherwise.
// Unknown service names return NotFound.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if !s.services[req.GetService()] {
		return nil, status.Error(codes.NotFound, "unknown service")
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "health: store ping failed", "error", err)
			return notServing(), nil
		}
	}
	if s.policy != nil {
		if err := s.policy.HealthCheck(ctx); err != nil {
			slog.WarnContext(ctx, "health: policy check failed", "error", err)
			return notServing(), nil
		}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

func notServing() *healthpb.HealthCheckResponse {
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}
}
