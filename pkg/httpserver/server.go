// Package httpserver runs an http.Handler until its context is done.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

type Logger interface {
	Info(context.Context, string, ...slog.Attr)
}

type Option func(*Server)

// WithMiddlewares wraps the handler, the first middleware being the outermost.
func WithMiddlewares(mws ...func(http.Handler) http.Handler) Option {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, mws...)
	}
}

func WithLogger(l Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithShutdownTimeout bounds how long in-flight requests may take to finish.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

type Server struct {
	addr            string
	middlewares     []func(http.Handler) http.Handler
	logger          Logger
	shutdownTimeout time.Duration

	srv *http.Server
}

func New(addr string, handler http.Handler, opts ...Option) (*Server, error) {
	if addr == "" {
		return nil, errors.New("http server address is required")
	}
	if handler == nil {
		return nil, errors.New("http handler is required")
	}

	s := &Server{addr: addr, shutdownTimeout: shutdownTimeout}
	for _, opt := range opts {
		opt(s)
	}

	for i := len(s.middlewares) - 1; i >= 0; i-- {
		handler = s.middlewares[i](handler)
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s, nil
}

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		return s.srv.Shutdown(ctx)
	})

	eg.Go(func() error {
		if s.logger != nil {
			s.logger.Info(ctx, "listen and serve", slog.String("addr", ln.Addr().String()))
		}

		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}

		return nil
	})

	return eg.Wait()
}
