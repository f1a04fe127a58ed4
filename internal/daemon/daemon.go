// Package daemon serves extraction and rendering over gRPC so other
// processes can render templates without linking the engine.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/affandhia/simple-template-string/internal/config"
)

// DefaultPort is the default daemon port.
const DefaultPort = 7460

// Options configure the daemon runtime.
type Options struct {
	Hostname string
	Port     int
	Version  string
}

// Daemon is the long-running render service.
type Daemon struct {
	cfg    *config.Config
	logger zerolog.Logger
	opts   Options

	server      *Server
	rateLimiter *RateLimiter
	grpcServer  *grpc.Server
}

// New constructs a daemon from cfg. Zero options fall back to cfg.Daemon.
func New(cfg *config.Config, logger zerolog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if opts.Hostname == "" {
		opts.Hostname = cfg.Daemon.Host
	}
	if opts.Hostname == "" {
		opts.Hostname = "127.0.0.1"
	}
	if opts.Port == 0 {
		opts.Port = cfg.Daemon.Port
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}

	server := NewServer(logger, WithVersion(opts.Version), WithRenderer(cfg.Renderer()))
	rateLimiter := NewRateLimiter(WithEnabled(cfg.Daemon.RateLimitEnabled))

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(rateLimiter.UnaryServerInterceptor()),
	)
	RegisterTemplateServiceServer(grpcServer, server)

	return &Daemon{
		cfg:         cfg,
		logger:      logger,
		opts:        opts,
		server:      server,
		rateLimiter: rateLimiter,
		grpcServer:  grpcServer,
	}, nil
}

// Run listens on the configured address and blocks until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	bindAddr := d.bindAddr()
	listener, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", bindAddr, err)
	}
	return d.Serve(ctx, listener)
}

// Serve serves on listener until ctx is canceled.
func (d *Daemon) Serve(ctx context.Context, listener net.Listener) error {
	d.logger.Info().
		Str("bind", listener.Addr().String()).
		Str("version", d.opts.Version).
		Bool("rate_limit", d.rateLimiter.IsEnabled()).
		Msg("template daemon starting")

	errCh := make(chan error, 1)
	go func() {
		if err := d.grpcServer.Serve(listener); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		d.logger.Info().Msg("template daemon shutting down...")
		d.grpcServer.GracefulStop()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("gRPC server error: %w", err)
		}
	}

	d.logger.Info().Msg("template daemon shutdown complete")
	return nil
}

func (d *Daemon) bindAddr() string {
	return net.JoinHostPort(d.opts.Hostname, strconv.Itoa(d.opts.Port))
}

// Server returns the service implementation.
func (d *Daemon) Server() *Server {
	return d.server
}

// RateLimiter returns the limiter guarding the service.
func (d *Daemon) RateLimiter() *RateLimiter {
	return d.rateLimiter
}
