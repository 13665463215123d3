package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/zeusync/netecs/internal/core/observability/log"
)

// HTTPServer serves the websocket endpoint and the status page of the host.
type HTTPServer struct {
	server *http.Server
	logger log.Log
}

func NewHTTPServer(addr string, handler http.Handler, logger log.Log) *HTTPServer {
	if logger == nil {
		logger = log.Nop()
	}
	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With(log.String("component", "http")),
	}
}

// Run listens until ctx is done and then shuts the server down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *HTTPServer) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(ln) }()
	s.logger.Info("http server listening", log.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("http server stopped")
		return nil
	}
}
