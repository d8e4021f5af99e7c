// Package tcp serves the chat protocol over plain TCP.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/marmos91/bonfire/internal/logger"
	"github.com/marmos91/bonfire/pkg/adapter"
	"github.com/marmos91/bonfire/pkg/metrics"
	"github.com/marmos91/bonfire/pkg/transport"
)

const protocolName = "tcp"

// DefaultPort is the port used when the configuration names none.
const DefaultPort = 4545

// Config holds the TCP adapter settings.
//
// Default values (applied by New if zero):
//   - ReadTimeout: 2s
//   - WriteTimeout: 5s
//   - MaxBufferedBytes: 1 MiB
//   - ShutdownTimeout: 10s
type Config struct {
	// Enabled controls whether the adapter is started.
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP port to listen on. 0 picks a free port.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// Address optionally restricts the listening interface.
	Address string `mapstructure:"address"`

	// ReadTimeout bounds how long the room waits for the rest of a packet
	// once its first byte arrived.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds each write to a client.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// MaxBufferedBytes caps the unread backlog per connection. A client
	// exceeding it is dropped.
	MaxBufferedBytes int `mapstructure:"max_buffered_bytes" validate:"min=0"`

	// ShutdownTimeout bounds how long Serve waits for connections to close
	// before forcing them.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

func (c *Config) applyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = transport.DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = transport.DefaultWriteTimeout
	}
	if c.MaxBufferedBytes == 0 {
		c.MaxBufferedBytes = transport.DefaultMaxBufferedBytes
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Adapter accepts TCP connections and queues them for the room.
type Adapter struct {
	config  Config
	inbox   *transport.Inbox
	tracker *adapter.ConnTracker
	metrics metrics.AdapterMetrics

	mu       sync.Mutex
	listener net.Listener

	// ready is closed once the listener is open.
	ready chan struct{}

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// New creates a TCP adapter. A nil metrics value disables metrics.
func New(config Config, m metrics.AdapterMetrics) *Adapter {
	config.applyDefaults()
	if m == nil {
		m = metrics.NewNoopAdapterMetrics()
	}
	return &Adapter{
		config:   config,
		tracker:  adapter.NewConnTracker(protocolName, m),
		metrics:  m,
		ready:    make(chan struct{}),
		shutdown: make(chan struct{}),
	}
}

func (a *Adapter) SetInbox(inbox *transport.Inbox) {
	a.inbox = inbox
}

// Serve listens on the configured port and queues every accepted connection.
func (a *Adapter) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(a.config.Address, fmt.Sprint(a.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create TCP listener on %s: %w", addr, err)
	}

	a.mu.Lock()
	select {
	case <-a.shutdown:
		a.mu.Unlock()
		_ = listener.Close()
		return nil
	default:
	}
	a.listener = listener
	close(a.ready)
	a.mu.Unlock()

	logger.Info("TCP adapter listening on %s", listener.Addr())
	logger.Debug("TCP config: read_timeout=%v write_timeout=%v max_buffered_bytes=%d",
		a.config.ReadTimeout, a.config.WriteTimeout, a.config.MaxBufferedBytes)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("TCP shutdown signal received: %v", ctx.Err())
			a.initiateShutdown()
		case <-a.shutdown:
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-a.shutdown:
				return a.gracefulShutdown()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return a.gracefulShutdown()
			}
			logger.Debug("Error accepting TCP connection: %v", err)
			continue
		}

		select {
		case <-a.shutdown:
			_ = conn.Close()
			a.metrics.RecordConnectionRefused(protocolName, "shutdown")
			continue
		default:
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		stream := transport.NewStream(conn, conn.RemoteAddr().String(), transport.Options{
			ReadTimeout:      a.config.ReadTimeout,
			WriteTimeout:     a.config.WriteTimeout,
			MaxBufferedBytes: a.config.MaxBufferedBytes,
		})
		a.tracker.Handoff(a.inbox, stream)
	}
}

func (a *Adapter) initiateShutdown() {
	a.shutdownOnce.Do(func() {
		logger.Debug("TCP shutdown initiated")
		a.mu.Lock()
		defer a.mu.Unlock()

		close(a.shutdown)
		if a.listener != nil {
			if err := a.listener.Close(); err != nil {
				logger.Debug("Error closing TCP listener: %v", err)
			}
		}
	})
}

// gracefulShutdown waits up to ShutdownTimeout for the room to close the
// connections it owns, then force-closes the rest.
func (a *Adapter) gracefulShutdown() error {
	logger.Info("TCP graceful shutdown: waiting for %d connection(s) (timeout: %v)",
		a.tracker.Open(), a.config.ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer cancel()

	if err := a.tracker.Wait(ctx); err != nil {
		closed := a.tracker.CloseAll()
		logger.Warn("TCP shutdown timeout exceeded: force-closed %d connection(s)", closed)
		return fmt.Errorf("TCP shutdown timeout: %d connections force-closed", closed)
	}

	logger.Info("TCP graceful shutdown complete")
	return nil
}

// Stop stops accepting connections and waits for open ones to close.
func (a *Adapter) Stop(ctx context.Context) error {
	a.initiateShutdown()
	if ctx == nil {
		return a.gracefulShutdown()
	}
	if err := a.tracker.Wait(ctx); err != nil {
		logger.Warn("TCP shutdown context done with %d connection(s) still open: %v", a.tracker.Open(), err)
		return err
	}
	return nil
}

// Addr returns the listening address, waiting until the listener is open or
// ctx is done.
func (a *Adapter) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-a.ready:
		return a.listener.Addr(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OpenConnections returns the number of connections not yet closed.
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
