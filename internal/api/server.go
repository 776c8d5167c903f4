package api

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/wonny/valuescope/pkg/config"
	"github.com/wonny/valuescope/pkg/logger"
)

// Server represents the HTTP API server
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	cancel     context.CancelFunc
	logger     *logger.Logger
	config     *config.Config
}

// New creates a new API server.
// Request contexts derive from a base context cancelled on Shutdown, so
// long screening and evaluation requests stop with the server.
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		cancel: cancel,
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
			ReadTimeout:       cfg.HTTP.ReadTimeout,
			WriteTimeout:      cfg.HTTP.WriteTimeout,
			IdleTimeout:       cfg.HTTP.IdleTimeout,
			MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
			BaseContext: func(net.Listener) context.Context {
				return baseCtx
			},
		},
		logger: log,
		config: cfg,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"port": s.config.Port,
		"env":  s.config.Env,
	}).Info("Starting API server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	err := s.httpServer.Shutdown(ctx)
	s.cancel()
	if err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
