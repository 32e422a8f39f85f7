package ledger

import (
	"context"
	"time"

	"knowledge-ledger/pkg/errutil"

	health "google.golang.org/grpc/health/grpc_health_v1"
)

const pingTimeout = 2 * time.Second

// Check answers grpc.health.v1 probes. Any service name maps to the ledger database.
func (s *Service) Check(ctx context.Context, _ *health.HealthCheckRequest) (*health.HealthCheckResponse, error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, errutil.ToGRPCError(errutil.ServiceUnavailable("ledger database not ready", err))
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	st := health.HealthCheckResponse_SERVING
	if err := sqlDB.PingContext(ctx); err != nil {
		st = health.HealthCheckResponse_NOT_SERVING
	}
	return &health.HealthCheckResponse{Status: st}, nil
}
