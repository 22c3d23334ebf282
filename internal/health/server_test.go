package health

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type switchChecker struct {
	mu  sync.Mutex
	err error
}

func (c *switchChecker) set(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *switchChecker) HealthCheck(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func setupServer(t *testing.T, checker Checker) (*Server, grpc_health_v1.HealthClient) {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := NewServer(checker, zerolog.Nop())

	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	})

	return srv, grpc_health_v1.NewHealthClient(conn)
}

func TestHealth_Serving(t *testing.T) {
	_, client := setupServer(t, &switchChecker{})

	resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}

func TestHealth_FollowsChecker(t *testing.T) {
	checker := &switchChecker{}
	srv, client := setupServer(t, checker)

	checker.set(errors.New("database unreachable"))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, srv.Check(context.Background()))

	resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.Status)

	checker.set(nil)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, srv.Check(context.Background()))
}

func TestHealth_Watch(t *testing.T) {
	checker := &switchChecker{err: errors.New("down")}
	srv, client := setupServer(t, checker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Watch(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
		return err == nil && resp.Status == grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestHealth_UnknownService(t *testing.T) {
	_, client := setupServer(t, &switchChecker{})

	// no gRPC application service is registered, so only "" has a status
	for _, service := range []string{"unknown", "asistentevial.eta.v1.ETAService"} {
		_, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: service})
		assert.Equal(t, codes.NotFound, status.Code(err), service)
	}
}
