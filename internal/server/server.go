package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	_ "github.com/jackzampolin/invoicex/docs"
	"github.com/jackzampolin/invoicex/internal/api"
	"github.com/jackzampolin/invoicex/internal/modelserver"
	"github.com/jackzampolin/invoicex/internal/providers"
	"github.com/jackzampolin/invoicex/internal/server/endpoints"
	"github.com/jackzampolin/invoicex/internal/svcctx"
)

// ModelServer is the managed model container, stopped at shutdown.
type ModelServer interface {
	Stop(ctx context.Context) error
	Close() error
}

// Server is the invoicex HTTP server. It answers /health immediately and
// accepts extractions once the model endpoint reports ready.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger

	apiKey       string
	modelChecker providers.HealthChecker
	modelServer  ModelServer
	readyTimeout time.Duration
	pollInterval time.Duration

	readiness *modelserver.Readiness
	services  *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8000)
	Port string
	// APIKey is the shared secret for protected routes. Empty rejects all
	// protected requests.
	APIKey string
	// MaxFileSize is the upload limit in bytes.
	MaxFileSize int64
	// RequestTimeout bounds one extraction.
	RequestTimeout time.Duration

	// Pipeline runs extractions.
	Pipeline svcctx.Pipeline
	// ModelChecker is polled until the model answers.
	ModelChecker providers.HealthChecker
	// ReadyTimeout bounds the readiness wait.
	ReadyTimeout time.Duration
	// PollInterval is the delay between readiness probes (default: 1s).
	PollInterval time.Duration
	// ModelServer is optional; when set it is stopped at shutdown.
	ModelServer ModelServer

	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8000"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if cfg.ModelChecker == nil {
		return nil, errors.New("model checker is required")
	}

	readiness := &modelserver.Readiness{}
	s := &Server{
		logger:       cfg.Logger,
		apiKey:       cfg.APIKey,
		modelChecker: cfg.ModelChecker,
		modelServer:  cfg.ModelServer,
		readyTimeout: cfg.ReadyTimeout,
		pollInterval: cfg.PollInterval,
		readiness:    readiness,
		services: &svcctx.Services{
			Pipeline:       cfg.Pipeline,
			Readiness:      readiness,
			Logger:         cfg.Logger,
			MaxFileSize:    cfg.MaxFileSize,
			RequestTimeout: cfg.RequestTimeout,
		},
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.protect)

	writeTimeout := cfg.RequestTimeout + 30*time.Second
	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withRequestID(s.withAccessLog(s.withServices(mux))),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Readiness exposes the model readiness flag.
func (s *Server) Readiness() *modelserver.Readiness {
	return s.readiness
}

// Start listens, waits for the model in the background and blocks until
// the context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.setNotRunning()
		s.stopModelServer()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	readyCtx, cancelReady := context.WithCancel(ctx)
	defer cancelReady()
	go func() {
		_ = s.readiness.Watch(readyCtx, s.modelChecker, s.readyTimeout, s.pollInterval, s.logger)
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown drains in-flight requests and stops the managed model server.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.stopModelServer()
	s.readiness.Set(false)
	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) stopModelServer() {
	if s.modelServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("stopping model server")
	if err := s.modelServer.Stop(ctx); err != nil {
		s.logger.Error("model server stop error", "error", err)
	}
	if err := s.modelServer.Close(); err != nil {
		s.logger.Error("model server close error", "error", err)
	}
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address. Once started it reflects the
// bound port.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}
