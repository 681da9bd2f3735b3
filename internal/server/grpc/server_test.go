package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/userauth/internal/common"
	"github.com/dmitrijs2005/userauth/internal/logging"
	"github.com/dmitrijs2005/userauth/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var issuedAt = time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)

func newTokens() *auth.TokenService {
	return auth.NewTokenService("access-secret", 15*time.Minute, "refresh-secret", time.Hour).
		WithClock(func() time.Time { return issuedAt })
}

// startBufconn serves s over an in-memory listener and returns a client
// connection to it.
func startBufconn(t *testing.T, s *GRPCServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return conn
}

func TestVerifyAccessToken_OverBufconn(t *testing.T) {
	tokens := newTokens()
	conn := startBufconn(t, NewGRPCServer("", logging.Nop{}, tokens))
	client := NewTokenVerifierClient(conn)

	at, err := tokens.IssueAccessToken("u-1")
	require.NoError(t, err)

	out, err := client.VerifyAccessToken(context.Background(), at.Value)
	require.NoError(t, err)

	fields := out.AsMap()
	assert.Equal(t, "u-1", fields["user_id"])
	assert.EqualValues(t, issuedAt.Unix(), fields["issued_at"])
	assert.EqualValues(t, issuedAt.Add(15*time.Minute).Unix(), fields["expires_at"])
}

func TestVerifyAccessToken_TokenFromMetadata(t *testing.T) {
	tokens := newTokens()
	conn := startBufconn(t, NewGRPCServer("", logging.Nop{}, tokens))
	client := NewTokenVerifierClient(conn)

	at, err := tokens.IssueAccessToken("u-2")
	require.NoError(t, err)

	ctx := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, at.Value)
	out, err := client.VerifyAccessToken(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "u-2", out.AsMap()["user_id"])
}

func TestVerifyAccessToken_Rejections(t *testing.T) {
	tokens := newTokens()
	conn := startBufconn(t, NewGRPCServer("", logging.Nop{}, tokens))
	client := NewTokenVerifierClient(conn)

	rt, err := tokens.IssueRefreshToken("u-1")
	require.NoError(t, err)
	expired, err := auth.NewTokenService("access-secret", time.Minute, "r", time.Minute).
		WithClock(func() time.Time { return time.Now().Add(-time.Hour) }).
		IssueAccessToken("u-1")
	require.NoError(t, err)

	// the server clock is fixed in the past, so check expiry with a live one
	liveConn := startBufconn(t, NewGRPCServer("", logging.Nop{},
		auth.NewTokenService("access-secret", time.Minute, "r", time.Minute)))

	tests := []struct {
		name   string
		client *TokenVerifierClient
		token  string
		msg    string
	}{
		{"missing", client, "", "missing token"},
		{"garbage", client, "abc", "invalid token"},
		{"refresh token", client, rt.Value, "invalid token"},
		{"expired", NewTokenVerifierClient(liveConn), expired.Value, "token expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.client.VerifyAccessToken(context.Background(), tt.token)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, codes.Unauthenticated, st.Code())
			assert.Equal(t, tt.msg, st.Message())
		})
	}
}

func TestHealth(t *testing.T) {
	conn := startBufconn(t, NewGRPCServer("", logging.Nop{}, newTokens()))

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: TokenVerifierServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	s := NewGRPCServer("", logging.Nop{}, newTokens())
	info := &grpc.UnaryServerInfo{FullMethod: VerifyAccessTokenMethod}

	resp, err := s.loggingInterceptor(context.Background(), "req", info,
		func(ctx context.Context, req any) (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	_, err = s.loggingInterceptor(context.Background(), "req", info,
		func(ctx context.Context, req any) (any, error) { return nil, status.Error(codes.Internal, "x") })
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop{}, newTokens())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop{}, newTokens())
	assert.Error(t, srv.Run(context.Background()))
}

func TestRecovered_ReturnsInternal(t *testing.T) {
	s := NewGRPCServer("", logging.Nop{}, newTokens())

	err := s.recovered(context.Background(), "boom")
	assert.Equal(t, codes.Internal, status.Code(err))
}
