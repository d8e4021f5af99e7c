package chat

import (
	"time"

	"github.com/marmos91/bonfire/internal/protocol/packet"
)

// Plugin bundles optional callbacks run by the room. Either field may be nil.
//
// Hooks run synchronously on the tick goroutine after the room's own handling,
// in registration order. They must not block.
type Plugin struct {
	// Name identifies the plugin in logs.
	Name string

	// PacketReceived runs for every packet that decoded successfully.
	PacketReceived func(ctx *Context, ev *PacketReceivedEvent)

	// HandshakeFinished runs when a session picks its first name, before the
	// room announces it to the others.
	HandshakeFinished func(ctx *Context, ev *HandshakeFinishedEvent)
}

// PacketReceivedEvent describes a packet after the room handled it.
type PacketReceivedEvent struct {
	Session *Session
	Type    packet.ClientPacketType
	Packet  packet.ClientPacket

	// Response is the packet the room produced in reply, if any: the
	// ReceiveMessage for a chat message, the UserInfo for a rename and the
	// LogMessage for a disconnect. It is nil for pings and ignored messages.
	Response packet.ServerPacket
}

// HandshakeFinishedEvent describes a session that just became active.
type HandshakeFinishedEvent struct {
	Session *Session

	// announced holds the (identity, name) pairs the newcomer already knows.
	announced map[announcement]struct{}
}

type announcement struct {
	id   uint8
	name string
}

func newHandshakeFinishedEvent(s *Session) *HandshakeFinishedEvent {
	return &HandshakeFinishedEvent{
		Session:   s,
		announced: make(map[announcement]struct{}),
	}
}

// Announce tells the newcomer that id is called name, unless it was already
// told during this handshake. It reports whether a packet was sent.
func (e *HandshakeFinishedEvent) Announce(ctx *Context, id uint8, name string) bool {
	key := announcement{id: id, name: name}
	if _, ok := e.announced[key]; ok {
		return false
	}
	e.announced[key] = struct{}{}
	ctx.Send(e.Session.ID(), packet.UserInfo{ID: id, Name: name})
	return true
}

// forget drops every pair announced for id, after the newcomer was told that
// id left.
func (e *HandshakeFinishedEvent) forget(id uint8) {
	for key := range e.announced {
		if key.id == id {
			delete(e.announced, key)
		}
	}
}

// Announced reports whether the (id, name) pair was announced.
func (e *HandshakeFinishedEvent) Announced(id uint8, name string) bool {
	_, ok := e.announced[announcement{id: id, name: name}]
	return ok
}

// Context is the view of the room handed to hooks.
type Context struct {
	room *Room
}

// Send delivers p to one session. Delivery failures disconnect that session
// later in the tick; they are not reported to the caller.
func (c *Context) Send(id uint8, p packet.ServerPacket) {
	if s, ok := c.room.sessions.Get(id); ok {
		c.room.send(s, p)
	}
}

// Broadcast delivers p to every active session except the one holding
// exclude. Pass packet.PublicTarget to exclude nobody.
func (c *Context) Broadcast(p packet.ServerPacket, exclude uint8) {
	c.room.broadcast(p, exclude)
}

// Session looks up a connected session.
func (c *Context) Session(id uint8) (*Session, bool) {
	return c.room.sessions.Get(id)
}

// Sessions returns every connected session ordered by identity.
func (c *Context) Sessions() []*Session {
	return c.room.sessions.Sessions()
}

// Recall returns the recall buffer contents, oldest first.
func (c *Context) Recall() []RecallEntry {
	return c.room.recall.Snapshot()
}

func (c *Context) Config() Config {
	return c.room.cfg
}

// Now returns the time of the current tick.
func (c *Context) Now() time.Time {
	return c.room.now
}

func (c *Context) Logger() Logger {
	return c.room.log
}
