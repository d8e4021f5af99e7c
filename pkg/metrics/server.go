package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/bonfire/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPort is the metrics port used when none is configured.
const DefaultPort = 9090

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	// Port to listen on. 0 selects DefaultPort, a negative value a free port.
	Port int

	// Address optionally restricts the listening interface.
	Address string
}

func (c *ServerConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 0 {
		c.Port = 0
	}
}

// Server exposes the registry over HTTP.
//
// Endpoints:
//   - GET /metrics: Prometheus metrics
//   - GET /healthz: 200 while the process serves HTTP
//   - GET /readyz: 200 once MarkReady was called, 503 before and after shutdown
type Server struct {
	config  ServerConfig
	handler http.Handler
	server  *http.Server
	ready   atomic.Bool

	mu       sync.Mutex
	listener net.Listener
	stopOnce sync.Once
}

// NewServer creates a metrics HTTP server. Nothing listens until Start.
func NewServer(config ServerConfig) *Server {
	config.applyDefaults()

	s := &Server{config: config}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeText(w, http.StatusServiceUnavailable, "not ready")
			return
		}
		writeText(w, http.StatusOK, "ready")
	})

	s.handler = mux
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func metricsHandler() http.Handler {
	if IsEnabled() {
		return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{EnableOpenMetrics: true})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusServiceUnavailable, "metrics collection is disabled")
	})
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintln(w, body)
}

// MarkReady flips /readyz to 200. Call it once the chat server is accepting
// connections.
func (s *Server) MarkReady() {
	s.ready.Store(true)
}

// Start serves until ctx is cancelled, then shuts down gracefully. It returns
// early with an error if the listener cannot be opened.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Address, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics server failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	logger.Info("Metrics server listening on %s", listener.Addr())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		// ctx is already done, so shutdown gets its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop shuts the server down. It is safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var stopErr error
	s.stopOnce.Do(func() {
		s.ready.Store(false)
		if err := s.server.Shutdown(ctx); err != nil {
			stopErr = fmt.Errorf("metrics server shutdown: %w", err)
			return
		}
		logger.Info("Metrics server stopped")
	})
	return stopErr
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.config.Port
}

// Handler returns the HTTP handler serving the endpoints.
func (s *Server) Handler() http.Handler {
	return s.handler
}
