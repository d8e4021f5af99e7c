// Package chat implements the chat room: session lifecycle, name and identity
// bookkeeping, message routing and recall.
//
// A Room is driven by repeated calls to Update from a single goroutine. Nothing
// inside a tick waits on the network: packets are decoded from bytes already
// buffered by the transport, and an incomplete packet is left for a later
// tick. The room needs no locking.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/bonfire/internal/protocol/packet"
	"github.com/marmos91/bonfire/internal/ratelimiter"
	"github.com/marmos91/bonfire/pkg/metrics"
	"github.com/marmos91/bonfire/pkg/transport"
)

// Listener supplies new connections to the room.
type Listener interface {
	// Listen starts accepting connections in the background.
	Listen(ctx context.Context) error

	// Accept returns a pending connection without blocking, or false when
	// none is waiting.
	Accept() (transport.Transport, bool)
}

// Option customizes a Room.
type Option func(*Room)

// WithLogger sets the logger. A nil logger discards everything.
func WithLogger(l Logger) Option {
	return func(r *Room) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetrics sets the metrics sink. A nil value keeps the no-op sink.
func WithMetrics(m metrics.ChatMetrics) Option {
	return func(r *Room) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(clock func() time.Time) Option {
	return func(r *Room) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// Room is a single chat room.
type Room struct {
	cfg      Config
	listener Listener
	log      Logger
	metrics  metrics.ChatMetrics
	clock    func() time.Time

	// now is the time of the tick in progress.
	now time.Time

	sessions   SessionTable
	names      *NameRegistry
	recall     *RecallBuffer
	identities *IdentityPool
	plugins    []Plugin
	ctx        *Context

	started bool
	closed  bool
}

// New creates a room. The message-of-the-day and recall plugins are registered
// first, so plugins added with Register run after them.
func New(cfg Config, listener Listener, opts ...Option) (*Room, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chat config: %w", err)
	}

	r := &Room{
		cfg:        cfg,
		listener:   listener,
		log:        nopLogger{},
		metrics:    metrics.NewNoopChatMetrics(),
		clock:      time.Now,
		names:      NewNameRegistry(cfg.MinNameLength, cfg.MaxNameLength),
		recall:     NewRecallBuffer(cfg.RecallCapacity),
		identities: NewIdentityPool(cfg.MaxUsers),
	}
	r.ctx = &Context{room: r}
	for _, opt := range opts {
		opt(r)
	}
	r.now = r.clock()

	if cfg.MessageOfTheDay != "" {
		r.Register(MessageOfTheDay(cfg.MessageOfTheDay))
	}
	r.Register(Recall())

	return r, nil
}

// Register adds a plugin. It must not be called concurrently with Update.
func (r *Room) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	r.log.Debug("plugin registered", "plugin", p.Name)
}

// Start begins listening for connections.
func (r *Room) Start(ctx context.Context) error {
	if r.closed {
		return ErrRoomClosed
	}
	if r.listener == nil {
		return ErrNoListener
	}
	if r.started {
		return nil
	}
	if err := r.listener.Listen(ctx); err != nil {
		return fmt.Errorf("start listening: %w", err)
	}
	r.started = true
	r.log.Info("chat room started",
		"max_users", r.cfg.MaxUsers,
		"recall_capacity", r.cfg.RecallCapacity)
	return nil
}

// Update runs one tick: accept pending connections, enforce timeouts, then
// read and handle at most one packet per session.
//
// Per-session failures are absorbed. A non-nil error is either ErrRoomClosed,
// ErrNotStarted or a *FatalError.
func (r *Room) Update() error {
	if r.closed {
		return ErrRoomClosed
	}
	if !r.started {
		return ErrNotStarted
	}

	started := time.Now()
	r.now = r.clock()

	r.reap()
	r.acceptPending()
	r.superviseTimeouts()
	r.reap()

	for _, s := range r.sessions.Sessions() {
		if !r.sessions.Contains(s) || s.failed || !s.transport.Available() {
			continue
		}
		if err := r.serve(s); err != nil {
			return err
		}
		r.reap()
	}

	connecting, active := r.sessions.Counts()
	r.metrics.SetSessions(connecting, active)
	r.metrics.ObserveTick(time.Since(started))
	return nil
}

// Close disconnects every session without notifying anyone. The room cannot
// be used afterwards.
func (r *Room) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	for _, s := range r.sessions.Sessions() {
		r.sessions.Remove(s.id)
		if s.name != "" {
			r.names.Deregister(s.name)
		}
		_ = s.transport.Close()
		r.identities.Release(s.id)
		r.metrics.RecordDisconnect(metrics.ReasonShutdown)
	}
	r.metrics.SetSessions(0, 0)
	r.log.Info("chat room closed")
	return nil
}

// Counts returns the number of connecting and active sessions.
func (r *Room) Counts() (connecting, active int) {
	return r.sessions.Counts()
}

func (r *Room) acceptPending() {
	for {
		t, ok := r.listener.Accept()
		if !ok {
			return
		}

		id, ok := r.identities.Acquire()
		if !ok {
			r.log.Warn("room is full, rejecting connection", "remote", t.RemoteAddr())
			_ = t.Close()
			r.metrics.RecordConnectionRejected("room_full")
			continue
		}

		var limiter *ratelimiter.RateLimiter
		if r.cfg.MessagesPerSecond > 0 {
			limiter = ratelimiter.New(r.cfg.MessagesPerSecond, r.cfg.MessageBurst)
		}

		s := newSession(id, t, r.now, limiter)
		r.sessions.Insert(s)
		r.metrics.RecordConnectionAccepted()
		r.log.Info("session connected", "id", id, "conn", s.connID, "remote", t.RemoteAddr())

		r.send(s, packet.UserID{ID: id})
	}
}

func (r *Room) superviseTimeouts() {
	for _, s := range r.sessions.Sessions() {
		if s.failed {
			continue
		}
		idle := r.now.Sub(s.lastActive)

		if !s.Active() {
			if idle > r.cfg.HandshakeTimeout {
				r.log.Info("handshake timed out", "id", s.id, "conn", s.connID, "idle", idle)
				r.disconnect(s.id, metrics.ReasonHandshakeTimeout)
			}
			continue
		}

		if idle > r.cfg.IdleTimeout {
			r.log.Debug("pinging idle session", "id", s.id, "name", s.name, "idle", idle)
			r.send(s, packet.ServerPingPacket{})
		}
	}
}

// send writes p to s. A write failure marks the session for removal.
// Any successful write refreshes the session's activity clock.
func (r *Room) send(s *Session, p packet.ServerPacket) {
	data, err := p.Encode()
	if err != nil {
		r.log.Error("cannot encode packet", "type", p.Type(), "id", s.id, "err", err)
		return
	}
	r.write(s, data)
}

func (r *Room) write(s *Session, data []byte) {
	if s.failed || !r.sessions.Contains(s) {
		return
	}
	if _, err := s.transport.Write(data); err != nil {
		r.log.Warn("write failed", "id", s.id, "conn", s.connID, "err", err)
		s.failed = true
		s.failReason = metrics.ReasonTransportError
		return
	}
	s.lastActive = r.now
}

// broadcast sends p to every active session except exclude.
func (r *Room) broadcast(p packet.ServerPacket, exclude uint8) {
	data, err := p.Encode()
	if err != nil {
		r.log.Error("cannot encode packet", "type", p.Type(), "err", err)
		return
	}
	for _, s := range r.sessions.Sessions() {
		if s.Active() && s.id != exclude {
			r.write(s, data)
		}
	}
}

func (r *Room) logToAll(format string, args ...any) packet.LogMessage {
	msg := packet.LogMessage{
		Timestamp: packet.Timestamp(r.now),
		Body:      fmt.Sprintf(format, args...),
	}
	r.broadcast(msg, packet.PublicTarget)
	return msg
}

// disconnect removes a session and releases its name and identity. Peers are
// told when the session was active. Disconnecting an absent identity only
// logs a warning.
func (r *Room) disconnect(id uint8, reason string) {
	s, ok := r.sessions.Remove(id)
	if !ok {
		r.log.Warn("disconnect of unknown session", "id", id, "reason", reason)
		return
	}

	if s.name != "" {
		r.names.Deregister(s.name)
	}
	_ = s.transport.Close()
	r.identities.Release(id)
	r.metrics.RecordDisconnect(reason)
	r.log.Info("session disconnected", "id", id, "name", s.name, "conn", s.connID, "reason", reason)

	if s.Active() {
		r.broadcast(packet.UserLeft{ID: id}, packet.PublicTarget)
	}
}

// reap removes sessions whose writes failed. Each removal broadcasts to the
// others, which may fail further writes, so it loops until nothing is left.
func (r *Room) reap() {
	for {
		var failed *Session
		for _, s := range r.sessions.Sessions() {
			if s.failed {
				failed = s
				break
			}
		}
		if failed == nil {
			return
		}
		r.disconnect(failed.id, failed.failReason)
	}
}
