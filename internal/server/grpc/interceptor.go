package grpc

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/uhhharsh/VidShare/internal/common"
	"github.com/uhhharsh/VidShare/internal/logging"
	"github.com/uhhharsh/VidShare/internal/server/auth"
)

// securedMethods require a valid access token.
var securedMethods = map[string]bool{
	MethodCurrentUser: true,
	MethodLogout:      true,
}

// accessToken reads "authorization: Bearer <token>", falling back to the bare
// access_token key.
func accessToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(common.AuthorizationHeaderName); len(values) > 0 {
		if token := auth.BearerToken(values[0]); token != "" {
			return token
		}
	}
	if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
		return values[0]
	}
	return ""
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !securedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	user, err := s.gate.Authenticate(ctx, accessToken(ctx))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return handler(auth.WithUser(ctx, user), req)
}

// limitedMethods maps rate limited methods to their limiter scope. Scopes are
// shared with the HTTP routes, so one client gets one budget per operation.
var limitedMethods = map[string]string{
	MethodRefreshToken: "refresh",
}

// peerHost returns the caller's host without the port.
func peerHost(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func (s *GRPCServer) rateLimitInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	scope, ok := limitedMethods[info.FullMethod]
	if !ok || s.limiter == nil {
		return handler(ctx, req)
	}

	d, err := s.limiter.Allow(ctx, scope+":"+peerHost(ctx))
	if err != nil {
		s.logger.Warn(ctx, "rate limiter unavailable", "scope", scope, "error", err)
		return handler(ctx, req)
	}

	if !d.Allowed {
		s.metrics.RateLimited(info.FullMethod)
		retry := strconv.Itoa(int(d.ResetIn.Round(time.Second) / time.Second))
		_ = grpc.SetHeader(ctx, metadata.Pairs("retry-after", retry))
		return nil, s.toStatus(ctx, common.NewError(common.ErrorRateLimited, "too many requests, try again later"))
	}
	return handler(ctx, req)
}

const requestIDKey = "x-request-id"

func (s *GRPCServer) observeInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()

	id := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(requestIDKey); len(v) > 0 && len(v[0]) <= 64 {
			id = v[0]
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	ctx = logging.WithRequestID(ctx, id)
	_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDKey, id))

	resp, err := handler(ctx, req)

	code := status.Code(err)
	s.metrics.ObserveGRPC(info.FullMethod, code.String())
	s.logger.Info(ctx, "rpc", "method", info.FullMethod, "code", code.String(), "latency", time.Since(start))

	return resp, err
}

// toStatus maps an error kind to a gRPC status. Internal detail is logged and
// never sent.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, common.ErrorInvalidInput):
		code = codes.InvalidArgument
	case errors.Is(err, common.ErrorConflict):
		code = codes.AlreadyExists
	case errors.Is(err, common.ErrorNotFound):
		code = codes.NotFound
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		code = codes.Unauthenticated
	case errors.Is(err, common.ErrorRateLimited):
		code = codes.ResourceExhausted
	case errors.Is(err, common.ErrorUnavailable), errors.Is(err, common.ErrorUploadFailed):
		code = codes.Unavailable
	default:
		s.logger.Error(ctx, "rpc failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}

	if code == codes.Unavailable {
		s.logger.Warn(ctx, "rpc unavailable", "error", err)
	}
	return status.Error(code, common.Message(err, code.String()))
}
