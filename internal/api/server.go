package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"

	"shareit/internal/config"
	"shareit/internal/domain"
	"shareit/internal/logging"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	log      *zerolog.Logger
}

func NewGRPCServer(cfg *config.APIConfig, bookings domain.BookingService, defaultPageSize int, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	srv, err := newGRPCServer(cfg, lis, bookings, defaultPageSize, logger)
	if err != nil {
		_ = lis.Close()
		return nil, err
	}
	return srv, nil
}

func newGRPCServer(
	cfg *config.APIConfig,
	lis net.Listener,
	bookings domain.BookingService,
	defaultPageSize int,
	logger *zerolog.Logger,
) (*GRPCServer, error) {
	auth := NewAuthInterceptor(cfg)
	unary := ChainUnaryInterceptors(
		LoggingUnaryInterceptor(logger),
		auth.Unary(),
	)

	opts := []grpc.ServerOption{grpc.UnaryInterceptor(unary)}
	if cfg.GRPC.TLS.Enabled {
		creds, err := serverCredentials(cfg.GRPC.TLS)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}

	grpcServer := grpc.NewServer(opts...)
	RegisterBookingServiceServer(grpcServer, NewBookingGRPCService(bookings, defaultPageSize))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(bookingServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	if cfg.GRPC.Reflection {
		reflection.Register(grpcServer)
	}

	return &GRPCServer{
		server:   grpcServer,
		health:   healthServer,
		listener: lis,
		log:      logging.Component(logger, "grpc"),
	}, nil
}

// serverCredentials builds TLS transport credentials, requiring verified
// client certificates when mTLS is configured.
func serverCredentials(cfg config.APITLSConfig) (credentials.TransportCredentials, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.New("grpc tls: cert_file and key_file are required")
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("grpc tls: load key pair: %w", err)
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if !cfg.RequireClientCert {
		return credentials.NewTLS(tlsCfg), nil
	}

	if cfg.ClientCAFile == "" {
		return nil, errors.New("grpc tls: client_ca_file is required for client certificates")
	}
	caPEM, err := os.ReadFile(cfg.ClientCAFile)
	if err != nil {
		return nil, fmt.Errorf("grpc tls: read client ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("grpc tls: no certificates in %s", cfg.ClientCAFile)
	}
	tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	tlsCfg.ClientCAs = pool
	return credentials.NewTLS(tlsCfg), nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("grpc api listening")
	return s.server.Serve(s.listener)
}

// Shutdown marks the booking service NOT_SERVING, then drains in-flight
// calls until ctx expires and stops hard after that.
func (s *GRPCServer) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	drained := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		s.log.Warn().Err(ctx.Err()).Msg("grpc drain interrupted, stopping")
		s.server.Stop()
		<-drained
	}
}
