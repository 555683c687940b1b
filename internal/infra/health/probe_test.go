package health

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return lis
}

func TestTCPProbe(t *testing.T) {
	lis := listen(t)
	addr := lis.Addr().String()

	p := &TCPProbe{Addr: addr, Timeout: time.Second}
	require.NoError(t, p.Check(context.Background()))

	require.NoError(t, lis.Close())
	assert.Error(t, p.Check(context.Background()))
}

func TestGRPCProbe(t *testing.T) {
	lis := listen(t)
	srv := grpc.NewServer()
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	p := &GRPCProbe{Addr: lis.Addr().String(), Timeout: 2 * time.Second}
	require.NoError(t, p.Check(context.Background()))

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	err := p.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_SERVING")
}

func TestNewProbe(t *testing.T) {
	p, err := NewProbe(TypeTCP, "127.0.0.1", 3000, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:"+strconv.Itoa(3000), p.(*TCPProbe).Addr)

	p, err = NewProbe(TypeNone, "127.0.0.1", 3000, time.Second)
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = NewProbe("http", "127.0.0.1", 3000, time.Second)
	assert.Error(t, err)
}
