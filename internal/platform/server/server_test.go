package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ogurasousui/basex-empresa/internal/adapters/grpc/handler"
	"github.com/ogurasousui/basex-empresa/internal/core/org"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type notFoundUseCase struct {
	org.UseCase
}

func (notFoundUseCase) FetchEmployee(context.Context, string) (*org.Employee, error) {
	return nil, org.ErrEmployeeNotFound
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServer_HealthAndLogging(t *testing.T) {
	t.Parallel()

	var logs syncBuffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	srv := New("", notFoundUseCase{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	lis := bufconn.Listen(1 << 20)
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: handler.ServiceName})
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}

	_, err = handler.NewEmpresaClient(conn).FetchEmployee(context.Background(), "E404")
	if err == nil {
		t.Fatalf("expected error")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}

	out := logs.String()
	if !strings.Contains(out, "rpc failed") || !strings.Contains(out, handler.FullMethod("GetEmployee")) || !strings.Contains(out, codes.NotFound.String()) {
		t.Fatalf("expected failed rpc to be logged, got %q", out)
	}
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	interceptor := loggingInterceptor(logger)
	want := status.Error(codes.Unavailable, "store down")

	resp, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/x/y"}, func(context.Context, any) (any, error) {
		return "resp", want
	})
	if resp != "resp" || err != want {
		t.Fatalf("interceptor altered result: %v, %v", resp, err)
	}
}
