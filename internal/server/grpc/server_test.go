package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/uhhharsh/VidShare/internal/server/auth"
	"github.com/uhhharsh/VidShare/internal/server/metrics"
	"github.com/uhhharsh/VidShare/internal/server/repositories/users"
	"github.com/uhhharsh/VidShare/internal/server/services"
)

type testBed struct {
	svc    *services.UserService
	client *AccountClient
	conn   *grpc.ClientConn
	tokens services.TokenPair
}

func newTestBed(t *testing.T) *testBed {
	t.Helper()

	repo := users.NewMemoryRepository()
	issuer := auth.NewIssuer("access-secret", "refresh-secret", 15*time.Minute, 240*time.Hour)
	svc := services.NewUserService(repo, issuer, nil, nil, services.Options{BcryptCost: bcrypt.MinCost})

	ctx := context.Background()
	if _, err := svc.Register(ctx, services.RegisterInput{
		Username: "alice", Email: "alice@x.com", FullName: "Alice", Password: "P@ss1",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := svc.Login(ctx, services.LoginInput{Username: "alice", Password: "P@ss1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer("bufnet", nil, svc, auth.NewGate(issuer, repo, time.Second), metrics.New())

	serveCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(serveCtx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	return &testBed{svc: svc, client: NewAccountClient(conn), conn: conn, tokens: res.Tokens}
}

func withBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func TestCurrentUser(t *testing.T) {
	b := newTestBed(t)

	out, err := b.client.CurrentUser(withBearer(context.Background(), b.tokens.AccessToken))
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if got := out.GetFields()["username"].GetStringValue(); got != "alice" {
		t.Fatalf("username = %q, want alice", got)
	}
	if _, leaked := out.GetFields()["password"]; leaked {
		t.Fatal("password must not be exposed")
	}

	ctx := metadata.AppendToOutgoingContext(context.Background(), "access_token", b.tokens.AccessToken)
	if _, err := b.client.CurrentUser(ctx); err != nil {
		t.Fatalf("CurrentUser via access_token: %v", err)
	}
}

func TestCurrentUser_Unauthenticated(t *testing.T) {
	b := newTestBed(t)

	tests := []struct {
		name string
		ctx  context.Context
	}{
		{"no token", context.Background()},
		{"garbage", withBearer(context.Background(), "not-a-jwt")},
		{"refresh token as access", withBearer(context.Background(), b.tokens.RefreshToken)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.client.CurrentUser(tt.ctx)
			if status.Code(err) != codes.Unauthenticated {
				t.Fatalf("code = %v, want Unauthenticated", status.Code(err))
			}
		})
	}
}

func TestRefreshAndLogout(t *testing.T) {
	b := newTestBed(t)
	ctx := context.Background()

	out, err := b.client.RefreshToken(ctx, b.tokens.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	next := out.GetFields()["refreshToken"].GetStringValue()
	if next == "" || next == b.tokens.RefreshToken {
		t.Fatalf("expected a new refresh token, got %q", next)
	}

	if _, err := b.client.RefreshToken(ctx, b.tokens.RefreshToken); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("reused token: code = %v, want Unauthenticated", status.Code(err))
	}

	access := out.GetFields()["accessToken"].GetStringValue()
	if err := b.client.Logout(withBearer(ctx, access)); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if _, err := b.client.RefreshToken(ctx, next); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("after logout: code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestRequestIDHeader(t *testing.T) {
	b := newTestBed(t)

	var header metadata.MD
	ctx := metadata.AppendToOutgoingContext(withBearer(context.Background(), b.tokens.AccessToken), "x-request-id", "trace-9")
	if _, err := b.client.CurrentUser(ctx, grpc.Header(&header)); err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if got := header.Get("x-request-id"); len(got) != 1 || got[0] != "trace-9" {
		t.Fatalf("x-request-id = %v, want [trace-9]", got)
	}
}

func TestHealth(t *testing.T) {
	b := newTestBed(t)

	resp, err := healthpb.NewHealthClient(b.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v, want SERVING", resp.GetStatus())
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}
