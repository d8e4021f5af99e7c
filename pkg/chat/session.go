package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/bonfire/internal/ratelimiter"
	"github.com/marmos91/bonfire/pkg/transport"
)

// State is the position of a session in its lifecycle.
type State int

const (
	// StateConnecting sessions have an identity but no name yet.
	StateConnecting State = iota

	// StateActive sessions completed the handshake and take part in the chat.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Session is one connected client.
//
// Sessions are created and mutated by the room only. Hooks get read access
// through the exported methods.
type Session struct {
	id          uint8
	name        string
	connID      uuid.UUID
	connectedAt time.Time
	lastActive  time.Time
	transport   transport.Transport
	limiter     *ratelimiter.RateLimiter

	// partialSince is when the room first saw an incomplete packet at the
	// head of the buffer. Zero when no packet is pending.
	partialSince time.Time

	// failed is set when a write fails; the room removes the session at the
	// next reap.
	failed     bool
	failReason string
}

func newSession(id uint8, t transport.Transport, now time.Time, limiter *ratelimiter.RateLimiter) *Session {
	return &Session{
		id:          id,
		connID:      uuid.New(),
		connectedAt: now,
		lastActive:  now,
		transport:   t,
		limiter:     limiter,
	}
}

func (s *Session) ID() uint8 { return s.id }

// Name returns the display name, or "" before the handshake.
func (s *Session) Name() string { return s.name }

func (s *Session) State() State {
	if s.name == "" {
		return StateConnecting
	}
	return StateActive
}

func (s *Session) Active() bool { return s.name != "" }

// ConnID identifies the underlying connection in logs. Unlike the identity it
// is never reused.
func (s *Session) ConnID() uuid.UUID { return s.connID }

func (s *Session) ConnectedAt() time.Time { return s.connectedAt }
func (s *Session) LastActive() time.Time  { return s.lastActive }
func (s *Session) RemoteAddr() string     { return s.transport.RemoteAddr() }

// SessionTable indexes sessions by identity.
type SessionTable struct {
	slots [MaxIdentities + 1]*Session
	count int
}

func (t *SessionTable) Insert(s *Session) {
	if t.slots[s.id] == nil {
		t.count++
	}
	t.slots[s.id] = s
}

// Remove deletes and returns the session holding id, if any.
func (t *SessionTable) Remove(id uint8) (*Session, bool) {
	s := t.slots[id]
	if s == nil {
		return nil, false
	}
	t.slots[id] = nil
	t.count--
	return s, true
}

func (t *SessionTable) Get(id uint8) (*Session, bool) {
	s := t.slots[id]
	return s, s != nil
}

// Contains reports whether s is still the session registered under its id.
func (t *SessionTable) Contains(s *Session) bool {
	return t.slots[s.id] == s
}

// Sessions returns the current sessions ordered by identity. The slice is a
// copy; the table may change while the caller iterates it.
func (t *SessionTable) Sessions() []*Session {
	out := make([]*Session, 0, t.count)
	for _, s := range t.slots {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Counts returns the number of sessions per state.
func (t *SessionTable) Counts() (connecting, active int) {
	for _, s := range t.slots {
		switch {
		case s == nil:
		case s.Active():
			active++
		default:
			connecting++
		}
	}
	return connecting, active
}

func (t *SessionTable) Len() int { return t.count }
