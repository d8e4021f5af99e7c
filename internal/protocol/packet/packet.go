package packet

import "time"

// ClientPacket is a decoded packet received from a client.
type ClientPacket interface {
	// Type returns the packet tag.
	Type() ClientPacketType

	// Encode returns the wire form, tag included.
	Encode() ([]byte, error)
}

// ServerPacket is a packet the server sends to clients.
type ServerPacket interface {
	// Type returns the packet tag.
	Type() ServerPacketType

	// Encode returns the wire form, tag included.
	Encode() ([]byte, error)
}

// ============================================================================
// Client packets
// ============================================================================

// Ping is sent by a client to keep its session alive. It carries no payload.
type Ping struct{}

func (Ping) Type() ClientPacketType { return ClientPing }

// SendMessage asks the server to deliver Body to Target, or to everyone when
// Target is PublicTarget.
type SendMessage struct {
	Target uint8
	Body   string
}

func (SendMessage) Type() ClientPacketType { return ClientSendMessage }

// Public reports whether the message is addressed to everyone.
func (p SendMessage) Public() bool { return p.Target == PublicTarget }

// ChangeName proposes a display name. The first one received completes the
// handshake.
type ChangeName struct {
	Name string
}

func (ChangeName) Type() ClientPacketType { return ClientChangeName }

// Disconnect announces that the client is leaving.
type Disconnect struct{}

func (Disconnect) Type() ClientPacketType { return ClientDisconnect }

// ============================================================================
// Server packets
// ============================================================================

// ServerPingPacket asks an idle client for a sign of life.
type ServerPingPacket struct{}

func (ServerPingPacket) Type() ServerPacketType { return ServerPing }

// ReceiveMessage delivers a chat message written by Author.
type ReceiveMessage struct {
	// Target is PublicTarget for public messages, else the recipient.
	Target uint8

	// Author is the identity of the sender.
	Author uint8

	// Timestamp is the server time the message was accepted, Unix milliseconds.
	Timestamp int64

	Body string
}

func (ReceiveMessage) Type() ServerPacketType { return ServerReceiveMessage }

// Public reports whether the message was addressed to everyone.
func (p ReceiveMessage) Public() bool { return p.Target == PublicTarget }

// Time returns the timestamp as a time.Time.
func (p ReceiveMessage) Time() time.Time { return time.UnixMilli(p.Timestamp) }

// LogMessage is a notice from the server itself (joins, renames, leaves,
// message of the day).
type LogMessage struct {
	Timestamp int64
	Body      string
}

func (LogMessage) Type() ServerPacketType { return ServerLogMessage }

// Time returns the timestamp as a time.Time.
func (p LogMessage) Time() time.Time { return time.UnixMilli(p.Timestamp) }

// UserInfo announces or updates the name bound to an identity.
type UserInfo struct {
	ID   uint8
	Name string
}

func (UserInfo) Type() ServerPacketType { return ServerSendUserInfo }

// UserID tells a freshly accepted connection which identity it was given.
type UserID struct {
	ID uint8
}

func (UserID) Type() ServerPacketType { return ServerSendUserID }

// UserLeft announces that an identity is no longer present.
type UserLeft struct {
	ID uint8
}

func (UserLeft) Type() ServerPacketType { return ServerUserLeft }

// Timestamp converts t to the wire timestamp representation.
func Timestamp(t time.Time) int64 {
	return t.UnixMilli()
}
