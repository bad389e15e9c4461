// Package grpcserver exposes the staff admin API and a health service over gRPC.
package grpcserver

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"hydro360/internal/auth"
	"hydro360/internal/config"
	"hydro360/internal/logging"
	"hydro360/repository"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// NewServer builds a gRPC server with the admin and health services registered.
// Every method except the health check requires a bearer token.
func NewServer(secret string, store *repository.Store) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		logUnary,
		auth.NewUnaryAuthInterceptor(secret, healthCheckMethod),
	))

	RegisterAdminServiceServer(srv, &AdminServer{Store: store})

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(adminServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

// StartGRPC starts the gRPC server on cfg.GRPC.Address and returns a shutdown function.
// An empty address leaves gRPC disabled.
func StartGRPC(cfg *config.Config, store *repository.Store) (func(context.Context) error, error) {
	if cfg == nil {
		panic("config is required")
	}
	addr := cfg.GRPC.Address
	if addr == "" {
		return func(context.Context) error { return nil }, nil
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv, hs := NewServer(cfg.Auth.JWTSecret, store)
	go func() {
		if err := srv.Serve(lis); err != nil {
			logging.Error().Err(err).Msg("grpc server stopped")
		}
	}()
	logging.Info().Str("addr", lis.Addr().String()).Msg("grpc server listening")

	return func(ctx context.Context) error {
		hs.Shutdown()
		done := make(chan struct{})
		go func() { srv.GracefulStop(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			srv.Stop()
			return ctx.Err()
		}
	}, nil
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	ev := logging.Debug()
	if err != nil {
		ev = logging.Warn().Err(err)
	}
	ev.Str("method", info.FullMethod).
		Str("code", status.Code(err).String()).
		Dur("duration", time.Since(start)).
		Msg("grpc call")
	return resp, err
}
