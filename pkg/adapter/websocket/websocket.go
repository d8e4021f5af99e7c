// Package websocket serves the chat protocol to browsers. Protocol bytes travel
// in binary WebSocket messages; everything else behaves like the TCP adapter.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marmos91/bonfire/internal/logger"
	"github.com/marmos91/bonfire/pkg/adapter"
	"github.com/marmos91/bonfire/pkg/metrics"
	"github.com/marmos91/bonfire/pkg/transport"
)

const protocolName = "websocket"

// DefaultPort is the port used when the configuration names none.
const DefaultPort = 8080

// Config holds the WebSocket adapter settings.
//
// Default values (applied by New if zero):
//   - Path: /ws
//   - ReadTimeout: 2s
//   - WriteTimeout: 5s
//   - MaxBufferedBytes: 1 MiB
//   - MaxMessageBytes: 64 KiB
//   - ShutdownTimeout: 10s
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the HTTP port to listen on. 0 picks a free port.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	Address string `mapstructure:"address"`

	// Path is the upgrade endpoint.
	Path string `mapstructure:"path"`

	// AllowedOrigins lists the browser origins allowed to connect, "*" for
	// any. Empty accepts same-host pages only.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	ReadTimeout      time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	MaxBufferedBytes int           `mapstructure:"max_buffered_bytes" validate:"min=0"`

	// MaxMessageBytes limits a single WebSocket message.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes" validate:"min=0"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = "/ws"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = transport.DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = transport.DefaultWriteTimeout
	}
	if c.MaxBufferedBytes == 0 {
		c.MaxBufferedBytes = transport.DefaultMaxBufferedBytes
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = 64 << 10
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Adapter upgrades HTTP requests to WebSockets and queues them for the room.
type Adapter struct {
	config   Config
	inbox    *transport.Inbox
	tracker  *adapter.ConnTracker
	metrics  metrics.AdapterMetrics
	upgrader websocket.Upgrader

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	ready    chan struct{}

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// New creates a WebSocket adapter. A nil metrics value disables metrics.
func New(config Config, m metrics.AdapterMetrics) *Adapter {
	config.applyDefaults()
	if m == nil {
		m = metrics.NewNoopAdapterMetrics()
	}

	a := &Adapter{
		config:   config,
		tracker:  adapter.NewConnTracker(protocolName, m),
		metrics:  m,
		ready:    make(chan struct{}),
		shutdown: make(chan struct{}),
	}

	policy := newOriginPolicy(config.AllowedOrigins)
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if policy.check(r) {
				return true
			}
			logger.Warn("Blocked WebSocket connection from disallowed origin: %q", r.Header.Get("Origin"))
			a.metrics.RecordConnectionRefused(protocolName, "origin")
			return false
		},
	}
	return a
}

func (a *Adapter) SetInbox(inbox *transport.Inbox) {
	a.inbox = inbox
}

// Handler returns the HTTP handler serving the upgrade endpoint.
func (a *Adapter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(a.config.Path, a.handleUpgrade)
	return mux
}

func (a *Adapter) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "WebSocket endpoint only accepts GET requests", http.StatusMethodNotAllowed)
		return
	}

	select {
	case <-a.shutdown:
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		a.metrics.RecordConnectionRefused(protocolName, "shutdown")
		return
	default:
	}

	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		logger.Debug("WebSocket upgrade from %s failed: %v", r.RemoteAddr, err)
		a.metrics.RecordConnectionRefused(protocolName, "upgrade")
		return
	}
	ws.SetReadLimit(a.config.MaxMessageBytes)

	stream := transport.NewStream(newConn(ws), r.RemoteAddr, transport.Options{
		ReadTimeout:      a.config.ReadTimeout,
		WriteTimeout:     a.config.WriteTimeout,
		MaxBufferedBytes: a.config.MaxBufferedBytes,
	})
	a.tracker.Handoff(a.inbox, stream)
}

// Serve listens for HTTP requests until ctx is cancelled or Stop is called.
func (a *Adapter) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(a.config.Address, fmt.Sprint(a.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create WebSocket listener on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.mu.Lock()
	select {
	case <-a.shutdown:
		a.mu.Unlock()
		_ = listener.Close()
		return nil
	default:
	}
	a.server = server
	a.listener = listener
	close(a.ready)
	a.mu.Unlock()

	logger.Info("WebSocket adapter listening on %s%s", listener.Addr(), a.config.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("WebSocket shutdown signal received: %v", ctx.Err())
	case <-a.shutdown:
	case err := <-errCh:
		a.initiateShutdown()
		return fmt.Errorf("WebSocket server failed: %w", err)
	}

	a.initiateShutdown()
	return a.gracefulShutdown()
}

func (a *Adapter) initiateShutdown() {
	a.shutdownOnce.Do(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		logger.Debug("WebSocket shutdown initiated")
		close(a.shutdown)
		if a.server == nil {
			return
		}

		// Hijacked connections are not tracked by http.Server, so this only
		// stops the listener and pending upgrades.
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			logger.Debug("Error shutting down WebSocket HTTP server: %v", err)
		}
	})
}

func (a *Adapter) gracefulShutdown() error {
	logger.Info("WebSocket graceful shutdown: waiting for %d connection(s) (timeout: %v)",
		a.tracker.Open(), a.config.ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer cancel()

	if err := a.tracker.Wait(ctx); err != nil {
		closed := a.tracker.CloseAll()
		logger.Warn("WebSocket shutdown timeout exceeded: force-closed %d connection(s)", closed)
		return fmt.Errorf("WebSocket shutdown timeout: %d connections force-closed", closed)
	}

	logger.Info("WebSocket graceful shutdown complete")
	return nil
}

// Stop stops accepting upgrades and waits for open connections to close.
func (a *Adapter) Stop(ctx context.Context) error {
	a.initiateShutdown()
	if ctx == nil {
		return a.gracefulShutdown()
	}
	if err := a.tracker.Wait(ctx); err != nil {
		logger.Warn("WebSocket shutdown context done with %d connection(s) still open: %v", a.tracker.Open(), err)
		return err
	}
	return nil
}

// Addr returns the listening address once the listener is open.
func (a *Adapter) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-a.ready:
		return a.listener.Addr(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Adapter) OpenConnections() int {
	return a.tracker.Open()
}

func (a *Adapter) Port() int {
	return a.config.Port
}

func (a *Adapter) Protocol() string {
	return protocolName
}

var _ adapter.Adapter = (*Adapter)(nil)
