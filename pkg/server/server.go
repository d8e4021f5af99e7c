// Package server runs a chat room behind one or more protocol adapters.
//
// The server owns the adapters and the inbox they feed, acts as the room's
// chat.Listener, and calls Room.Update at a fixed cadence until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/marmos91/bonfire/internal/logger"
	"github.com/marmos91/bonfire/pkg/adapter"
	"github.com/marmos91/bonfire/pkg/chat"
	"github.com/marmos91/bonfire/pkg/transport"
)

const (
	DefaultTickInterval    = 50 * time.Millisecond
	DefaultShutdownTimeout = 10 * time.Second
	DefaultInboxSize       = 64
)

// Config controls the tick loop and shutdown.
type Config struct {
	// TickInterval is the time between two Room.Update calls.
	TickInterval time.Duration

	// ShutdownTimeout bounds how long adapters may take to stop.
	ShutdownTimeout time.Duration

	// InboxSize is the number of accepted connections that may wait for the
	// next tick. Connections beyond it are refused by the adapters.
	InboxSize int
}

func (c *Config) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.InboxSize <= 0 {
		c.InboxSize = DefaultInboxSize
	}
}

// Room is the part of *chat.Room the server drives.
type Room interface {
	Start(ctx context.Context) error
	Update() error
	Close() error
}

// Server manages the lifecycle of the adapters feeding a room.
//
// Lifecycle:
//  1. Creation: New()
//  2. Registration: AddAdapter() for each protocol
//  3. Run: starts the room, which calls Listen, then ticks until shutdown
//
// AddAdapter may be called concurrently before Run. Run is called once.
type Server struct {
	config Config
	inbox  *transport.Inbox

	mu        sync.RWMutex
	adapters  []adapter.Adapter
	listening bool

	wg     sync.WaitGroup
	errCh  chan adapterError
	cancel context.CancelFunc

	// ready is closed once the room started and every adapter listens.
	ready chan struct{}
}

// addresser is implemented by adapters that can wait until they listen.
type addresser interface {
	Addr(ctx context.Context) (net.Addr, error)
}

// adapterError pairs an adapter protocol name with its error.
type adapterError struct {
	protocol string
	err      error
}

// New creates a server with no adapters.
func New(config Config) *Server {
	config.applyDefaults()
	return &Server{
		config:   config,
		inbox:    transport.NewInbox(config.InboxSize),
		adapters: make([]adapter.Adapter, 0, 2),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once Run started the room and every adapter that reports
// its address is listening. It stays open if startup fails.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

func (s *Server) awaitListening(ctx context.Context) {
	for _, a := range s.Adapters() {
		if la, ok := a.(addresser); ok {
			if _, err := la.Addr(ctx); err != nil {
				return
			}
		}
	}
	close(s.ready)
	logger.Info("All adapters listening")
}

// AddAdapter registers a protocol adapter. Duplicate protocols and port
// conflicts are rejected. Port 0 (pick a free port) never conflicts.
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		return errors.New("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listening {
		return errors.New("cannot add adapter after the server started listening")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetInbox(s.inbox)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Adapters returns a copy of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}

// Listen starts every adapter in its own goroutine. It implements
// chat.Listener and is normally called through Room.Start.
func (s *Server) Listen(ctx context.Context) error {
	s.mu.Lock()
	if s.listening {
		s.mu.Unlock()
		return errors.New("server is already listening")
	}
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return errors.New("no adapters registered; call AddAdapter() before Listen()")
	}
	s.listening = true
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.errCh = make(chan adapterError, len(adapters))

	for _, a := range adapters {
		s.wg.Add(1)
		go func(a adapter.Adapter) {
			defer s.wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			if err := a.Serve(ctx); err != nil {
				if ctx.Err() == nil {
					logger.Error("%s adapter failed: %v", protocol, err)
					s.errCh <- adapterError{protocol: protocol, err: err}
				} else {
					logger.Debug("%s adapter stopped: %v", protocol, err)
				}
				return
			}
			logger.Info("%s adapter stopped", protocol)
		}(a)
	}
	return nil
}

// Accept returns a connection queued by an adapter, if any.
func (s *Server) Accept() (transport.Transport, bool) {
	return s.inbox.Accept()
}

// Run starts room and calls its Update every TickInterval until ctx is
// cancelled, an adapter fails or the room reports a fatal error. The room and
// every adapter are shut down before Run returns.
//
// Returns nil when ctx was cancelled.
func (s *Server) Run(ctx context.Context, room Room) error {
	if err := room.Start(ctx); err != nil {
		return fmt.Errorf("failed to start room: %w", err)
	}

	readyCtx, cancelReady := context.WithCancel(ctx)
	defer cancelReady()
	go s.awaitListening(readyCtx)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	logger.Info("Room running (tick interval: %v)", s.config.TickInterval)

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
			break loop

		case ae := <-s.errCh:
			runErr = fmt.Errorf("%s adapter error: %w", ae.protocol, ae.err)
			break loop

		case <-ticker.C:
			if err := room.Update(); err != nil {
				var fatal *chat.FatalError
				if errors.As(err, &fatal) {
					logger.Error("Fatal error in room update: %v", err)
				}
				runErr = err
				break loop
			}
		}
	}

	s.shutdown(room)
	return runErr
}

// shutdown closes the room first so that adapters find no open connections,
// then stops the adapters in reverse registration order.
func (s *Server) shutdown(room Room) {
	if err := room.Close(); err != nil {
		logger.Warn("Error closing room: %v", err)
	}
	s.inbox.Close()

	adapters := s.Adapters()
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))
	for i := len(adapters) - 1; i >= 0; i-- {
		a := adapters[i]
		if err := a.Stop(ctx); err != nil {
			logger.Error("Error stopping %s adapter: %v", a.Protocol(), err)
		}
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	logger.Info("Server stopped")
}

var _ chat.Listener = (*Server)(nil)
