package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/docsync/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const pingTimeout = 3 * time.Second

// HealthChecker probes the standard gRPC health service of the backend.
type HealthChecker struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
}

var _ Pinger = (*HealthChecker)(nil)

func NewHealthChecker(addr string, opts ...grpc.DialOption) (*HealthChecker, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &HealthChecker{conn: conn, client: healthpb.NewHealthClient(conn)}, nil
}

func (h *HealthChecker) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp, err := h.client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return mapGRPCError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return common.ErrUnavailable
	}
	return nil
}

func (h *HealthChecker) Close() error {
	return h.conn.Close()
}
