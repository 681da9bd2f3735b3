package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/userauth/internal/common"
	"github.com/dmitrijs2005/userauth/internal/server/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// VerifyAccessToken checks the token in the request, or in the access_token
// metadata when the request is empty.
func (s *GRPCServer) VerifyAccessToken(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	token := in.GetValue()
	if token == "" {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
				token = values[0]
			}
		}
	}
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.tokens.Verify(token, auth.KindAccess)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	out, err := structpb.NewStruct(map[string]any{
		"user_id":    claims.UserID,
		"issued_at":  claims.IssuedAt.Unix(),
		"expires_at": claims.ExpiresAt.Unix(),
	})
	if err != nil {
		s.logger.Error(ctx, "failed to build response", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}
