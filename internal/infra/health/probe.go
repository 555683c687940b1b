// Package health checks that the managed service answers on its port.
package health

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"ops-agent/internal/domain/repository"
)

const (
	TypeTCP  = "tcp"
	TypeGRPC = "grpc"
	TypeNone = "none"
)

// NewProbe returns the probe for kind, or nil for TypeNone.
func NewProbe(kind, host string, port int, timeout time.Duration) (repository.HealthProbe, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	switch kind {
	case TypeTCP, "":
		return &TCPProbe{Addr: addr, Timeout: timeout}, nil
	case TypeGRPC:
		return &GRPCProbe{Addr: addr, Timeout: timeout}, nil
	case TypeNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported health probe type: %s", kind)
	}
}

// TCPProbe passes when a TCP connection to Addr succeeds.
type TCPProbe struct {
	Addr    string
	Timeout time.Duration
}

func (p *TCPProbe) Check(ctx context.Context) error {
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return fmt.Errorf("port %s not open: %w", p.Addr, err)
	}
	return conn.Close()
}

// GRPCProbe passes when the standard gRPC health service reports SERVING.
type GRPCProbe struct {
	Addr    string
	Service string
	Timeout time.Duration
}

func (p *GRPCProbe) Check(ctx context.Context) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	conn, err := grpc.NewClient(p.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to create gRPC client for %s: %w", p.Addr, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: p.Service})
	if err != nil {
		return fmt.Errorf("gRPC health check on %s: %w", p.Addr, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("gRPC health check on %s: status %s", p.Addr, resp.GetStatus())
	}
	return nil
}
