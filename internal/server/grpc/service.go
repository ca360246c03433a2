package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "vidshare.account.v1.AccountService"

const (
	MethodCurrentUser  = "/" + ServiceName + "/CurrentUser"
	MethodRefreshToken = "/" + ServiceName + "/RefreshToken"
	MethodLogout       = "/" + ServiceName + "/Logout"
)

// AccountServer is implemented by GRPCServer. Messages are protobuf
// well-known types, so no generated code is needed.
type AccountServer interface {
	CurrentUser(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	RefreshToken(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error)
	Logout(ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error)
}

func unaryHandler[Req, Resp any](method string, newReq func() Req, call func(AccountServer, context.Context, Req) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AccountServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AccountServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func newEmpty() *emptypb.Empty { return new(emptypb.Empty) }

func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }

var accountServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CurrentUser",
			Handler:    unaryHandler(MethodCurrentUser, newEmpty, AccountServer.CurrentUser),
		},
		{
			MethodName: "RefreshToken",
			Handler:    unaryHandler(MethodRefreshToken, newString, AccountServer.RefreshToken),
		},
		{
			MethodName: "Logout",
			Handler:    unaryHandler(MethodLogout, newEmpty, AccountServer.Logout),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vidshare/account/v1/account.proto",
}

// RegisterAccountServer registers srv on s.
func RegisterAccountServer(s grpc.ServiceRegistrar, srv AccountServer) {
	s.RegisterService(&accountServiceDesc, srv)
}

// AccountClient calls AccountService over cc.
type AccountClient struct {
	cc grpc.ClientConnInterface
}

func NewAccountClient(cc grpc.ClientConnInterface) *AccountClient {
	return &AccountClient{cc: cc}
}

func (c *AccountClient) CurrentUser(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodCurrentUser, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AccountClient) RefreshToken(ctx context.Context, refreshToken string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodRefreshToken, wrapperspb.String(refreshToken), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AccountClient) Logout(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, MethodLogout, &emptypb.Empty{}, &emptypb.Empty{}, opts...)
}
