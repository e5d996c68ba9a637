// services/health_service.go

package services

import (
	"context"

	"github.com/sirupsen/logrus"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/norun9/gomarket-cart/storage"
)

// HealthCheckService implements the gRPC health check by pinging cart storage.
type HealthCheckService struct {
	storage storage.Storage
	log     logrus.FieldLogger
	healthpb.UnimplementedHealthServer
}

// NewHealthCheckService constructor
func NewHealthCheckService(st storage.Storage, log logrus.FieldLogger) *HealthCheckService {
	return &HealthCheckService{storage: st, log: log}
}

// Check reports SERVING while storage answers a ping.
func (h *HealthCheckService) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if h.storage.Ping(ctx) {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
	}
	h.log.WithField("service", req.GetService()).Warn("health check failed: storage unreachable")
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
}
