package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/xhd193694/ninja/pkg/auth"
	"github.com/xhd193694/ninja/pkg/config"
	"github.com/xhd193694/ninja/pkg/limits"
	"github.com/xhd193694/ninja/pkg/limits/ratelimit"
	"github.com/xhd193694/ninja/pkg/proxy"
	"github.com/xhd193694/ninja/pkg/telemetry/health"
	"github.com/xhd193694/ninja/pkg/telemetry/logging"
	"github.com/xhd193694/ninja/pkg/telemetry/metrics"
)

// Dependencies are the constructed subsystems the server wires into its
// route table. Logger and Dispatcher are required; nil optional fields
// disable the concern they serve.
type Dependencies struct {
	Logger     *logging.Logger
	Metrics    *metrics.Collector
	Dispatcher *proxy.Dispatcher
	Auth       *auth.Manager
	Keyring    *auth.Keyring
	Limiter    *limits.Manager
	Health     *health.Checker
}

// Server is the gateway's HTTP front end.
type Server struct {
	cfg    *config.Config
	deps   Dependencies
	logger *logging.Logger
	gate   *ratelimit.ConcurrencyGate

	httpServer   *http.Server
	shutdownOnce sync.Once

	mu        sync.RWMutex
	isRunning bool
}

// New creates a server over the assembled dependencies.
func New(cfg *config.Config, deps Dependencies) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}

	var gate *ratelimit.ConcurrencyGate
	if cfg.Server.Concurrency > 0 {
		gate = ratelimit.NewConcurrencyGate(cfg.Server.Concurrency)
	}

	return &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.Component("server"),
		gate:   gate,
	}, nil
}

// Start runs the server and blocks until the context is cancelled, a
// termination signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	tlsEnabled := s.cfg.Server.TLSCertFile != "" && s.cfg.Server.TLSKeyFile != ""

	s.httpServer = &http.Server{
		Addr:           s.cfg.Server.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		IdleTimeout:    s.cfg.Server.IdleTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
	}
	if tlsEnabled {
		tlsConfig, err := s.configureTLS()
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
	}

	go s.logWANIP(ctx)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Gateway listening",
			"address", s.cfg.Server.ListenAddress,
			"tls", tlsEnabled)

		var err error
		if tlsEnabled {
			err = s.httpServer.ListenAndServeTLS(s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("Context cancelled, shutting down")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("Received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		running := s.isRunning
		s.isRunning = false
		s.mu.Unlock()
		if !running {
			return
		}

		s.logger.Info("Draining connections", "timeout", s.cfg.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("Shutdown did not drain cleanly", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.logger.Info("Gateway stopped")
	})

	return shutdownErr
}

// IsRunning reports whether Start has been called and not yet shut down.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Server) configureTLS() (*tls.Config, error) {
	for _, path := range []string{s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("TLS file not readable: %s: %w", path, err)
		}
	}
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
	}, nil
}
