// Package grpc serves internal RPCs: access-token verification for upstream
// services and the standard health check.
package grpc

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/userauth/internal/logging"
	"github.com/dmitrijs2005/userauth/internal/server/auth"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

var enableHistogram sync.Once

// Verifier checks signed tokens. *auth.TokenService satisfies it.
type Verifier interface {
	Verify(token string, kind auth.Kind) (*auth.TokenClaims, error)
}

type GRPCServer struct {
	address string
	tokens  Verifier
	logger  logging.Logger
}

func NewGRPCServer(address string, logger logging.Logger, tokens Verifier) *GRPCServer {
	return &GRPCServer{
		address: address,
		tokens:  tokens,
		logger:  logger.With("module", "grpc_server"),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc_recovery.UnaryServerInterceptor(grpc_recovery.WithRecoveryHandlerContext(s.recovered)),
			s.loggingInterceptor,
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ConnectionTimeout(10*time.Second),
	)

	RegisterTokenVerifierServer(srv, s)
	grpc_prometheus.Register(srv)
	enableHistogram.Do(func() { grpc_prometheus.EnableHandlingTimeHistogram() })

	hs := health.NewServer()
	hs.SetServingStatus(TokenVerifierServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	return srv.Serve(listen)
}

func (s *GRPCServer) recovered(ctx context.Context, p any) error {
	s.logger.Error(ctx, "panic in gRPC handler", "panic", p)
	return status.Error(codes.Internal, "internal error")
}
