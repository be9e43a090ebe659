package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 3 * time.Second
)

// Server runs the HTTP surface until its context ends.
type Server struct {
	logger *slog.Logger
	srv    *http.Server
	ln     net.Listener
	done   chan struct{}
	err    error
}

// Listen binds addr. Serving starts with Serve.
func Listen(addr string, handler http.Handler, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	return &Server{
		logger: logger,
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		ln:   ln,
		done: make(chan struct{}),
	}, nil
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve handles requests in the background and shuts down gracefully when ctx ends.
func (s *Server) Serve(ctx context.Context) {
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }
	s.logger.Info("http api listening", "addr", s.Addr())

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http api stopped", "error", err)
			s.err = err
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http api shutdown", "error", err)
			_ = s.srv.Close()
		}
	}()
}

// Done is closed after the server stops serving.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Err reports the serve error after Done is closed.
func (s *Server) Err() error {
	<-s.done
	return s.err
}
