package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/avelichko/clip-keeper/internal/logger"
)

// Server runs the development object store over HTTP.
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
}

// NewServer builds a Server for the given listen address and handler.
func NewServer(addr string, handler http.Handler, timeout time.Duration, log *logger.Logger) *Server {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		logger: log,
	}
}

// Run blocks serving requests until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("object store listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Err(err).Msg("server shutdown")
	}
	s.logger.Info().Msg("server stopped gracefully")
}
