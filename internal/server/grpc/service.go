package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	TokenVerifierServiceName = "userauth.TokenVerifier"
	VerifyAccessTokenMethod  = "/userauth.TokenVerifier/VerifyAccessToken"
)

// TokenVerifierServer resolves access tokens for upstream services. The
// request carries the raw token; the response holds user_id, issued_at and
// expires_at (Unix seconds).
type TokenVerifierServer interface {
	VerifyAccessToken(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error)
}

func verifyAccessTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenVerifierServer).VerifyAccessToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: VerifyAccessTokenMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenVerifierServer).VerifyAccessToken(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// TokenVerifierServiceDesc describes the service for grpc.Server.RegisterService.
var TokenVerifierServiceDesc = grpc.ServiceDesc{
	ServiceName: TokenVerifierServiceName,
	HandlerType: (*TokenVerifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "VerifyAccessToken", Handler: verifyAccessTokenHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "userauth/token_verifier.proto",
}

func RegisterTokenVerifierServer(s grpc.ServiceRegistrar, srv TokenVerifierServer) {
	s.RegisterService(&TokenVerifierServiceDesc, srv)
}

// TokenVerifierClient calls TokenVerifier on a remote server.
type TokenVerifierClient struct {
	cc grpc.ClientConnInterface
}

func NewTokenVerifierClient(cc grpc.ClientConnInterface) *TokenVerifierClient {
	return &TokenVerifierClient{cc: cc}
}

func (c *TokenVerifierClient) VerifyAccessToken(ctx context.Context, token string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, VerifyAccessTokenMethod, wrapperspb.String(token), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
