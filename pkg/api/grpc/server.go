package grpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/vamanadb/vamana/pkg/config"
	"github.com/vamanadb/vamana/pkg/namespace"
	"github.com/vamanadb/vamana/pkg/observability"
)

// Server is the gRPC adapter in front of a namespace.Manager: it owns
// the network listener and the per-RPC structpb (de)serialization, and
// delegates every actual operation straight to the manager.
type Server struct {
	cfg     *config.Config
	manager *namespace.Manager
	metrics *observability.Metrics
	logger  *observability.Logger // nil when cfg.Logging.Enabled is false

	grpcServer *grpc.Server
	listener   net.Listener
	startTime  time.Time

	shutdownMu sync.Mutex
	isShutdown bool
}

// NewServer creates a gRPC server backed by a fresh namespace.Manager.
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		manager:   namespace.NewManager(),
		metrics:   observability.NewMetrics(),
		startTime: time.Now(),
	}
	if cfg.Logging.Enabled {
		s.logger = observability.NewLogger(observability.ParseLogLevel(cfg.Logging.Level), nil)
	}
	return s, nil
}

// Start brings up the TCP listener and gRPC server.
func (s *Server) Start() error {
	var opts []grpc.ServerOption

	if s.cfg.Server.EnableTLS {
		cert, err := tls.LoadX509KeyPair(s.cfg.Server.CertFile, s.cfg.Server.KeyFile)
		if err != nil {
			return fmt.Errorf("failed to load TLS certificates: %w", err)
		}
		tlsConfig := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsConfig)))
		log.Println("TLS enabled")
	}

	kaParams := keepalive.ServerParameters{
		MaxConnectionIdle: 15 * time.Second,
		MaxConnectionAge:  30 * time.Second,
		Time:              5 * time.Second,
		Timeout:           1 * time.Second,
	}
	opts = append(opts, grpc.KeepaliveParams(kaParams))
	opts = append(opts, grpc.MaxConcurrentStreams(uint32(s.cfg.Server.MaxConnections)))
	opts = append(opts, grpc.UnaryInterceptor(authInterceptor(s.cfg.Server.JWTSecret)))

	s.grpcServer = grpc.NewServer(opts...)
	RegisterVectorDBServer(s.grpcServer, s)
	reflection.Register(s.grpcServer)

	addr := s.cfg.Server.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	log.Printf("vamana gRPC server listening on %s", addr)

	go func() {
		if err := s.grpcServer.Serve(listener); err != nil {
			log.Printf("gRPC server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down, forcing a hard stop if
// ShutdownTimeout elapses first.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()

	if s.isShutdown {
		return nil
	}
	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		log.Println("server stopped gracefully")
	case <-ctx.Done():
		log.Println("shutdown timeout exceeded, forcing stop")
		s.grpcServer.Stop()
	}

	s.isShutdown = true
	return nil
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

func (s *Server) isShuttingDown() bool {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	return s.isShutdown
}
