package grpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/uhhharsh/VidShare/internal/server/auth"
)

// toStruct converts a JSON-tagged value into a protobuf Struct with the same
// field names the HTTP API uses.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GRPCServer) userID(ctx context.Context) (string, error) {
	u, ok := auth.UserFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "unauthorized request")
	}
	return u.ID, nil
}

func (s *GRPCServer) CurrentUser(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	id, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.accounts.CurrentUser(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out, err := toStruct(user)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	pair, err := s.accounts.Refresh(ctx, req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out, err := toStruct(pair)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}

func (s *GRPCServer) Logout(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	id, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Logout(ctx, id); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Logged out", "user_id", id)
	return &emptypb.Empty{}, nil
}
