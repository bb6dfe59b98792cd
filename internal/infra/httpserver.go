package infra

import (
	"context"
	"net/http"
	"time"
)

// HTTPServer wraps http.Server with the start/shutdown pair the server main
// uses to drain the story API after the job worker has stopped.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer builds the server for the story API and the static asset
// mount, with the timeouts taken from configuration.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	return &HTTPServer{server: srv}
}

// Start serves requests in the current goroutine until Shutdown is called.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests
// within the context deadline.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
