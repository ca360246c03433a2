// Package grpc exposes the session operations over gRPC alongside the
// standard health service.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/uhhharsh/VidShare/internal/logging"
	"github.com/uhhharsh/VidShare/internal/server/metrics"
	"github.com/uhhharsh/VidShare/internal/server/models"
	"github.com/uhhharsh/VidShare/internal/server/ratelimit"
	"github.com/uhhharsh/VidShare/internal/server/services"
)

// Accounts is the part of the account service reachable over gRPC.
type Accounts interface {
	CurrentUser(ctx context.Context, userID string) (models.PublicUser, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID string) error
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.PublicUser, error)
}

type GRPCServer struct {
	address  string
	accounts Accounts
	gate     Authenticator
	limiter  ratelimit.Limiter
	metrics  *metrics.Metrics
	logger   logging.Logger
	health   *health.Server
}

func NewGRPCServer(a string, l logging.Logger, accounts Accounts, gate Authenticator, m *metrics.Metrics) *GRPCServer {
	if l == nil {
		l = logging.Nop()
	}
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		accounts: accounts,
		gate:     gate,
		metrics:  m,
		health:   health.NewServer(),
	}
}

// WithLimiter rate limits the methods in limitedMethods per peer address.
func (s *GRPCServer) WithLimiter(l ratelimit.Limiter) *GRPCServer {
	s.limiter = l
	return s
}

// newServer builds a grpc.Server with interceptors and services registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.observeInterceptor,
		s.rateLimitInterceptor,
		s.accessTokenInterceptor,
	))

	RegisterAccountServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return srv
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	return srv.Serve(lis)
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}
