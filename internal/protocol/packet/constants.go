package packet

import (
	"encoding/binary"
	"fmt"
)

// ByteOrder is the byte order of every multi-byte integer on the wire.
var ByteOrder = binary.LittleEndian

// PublicTarget is the target identity of a message addressed to everyone.
const PublicTarget uint8 = 0

// Field limits imposed by the length prefixes.
const (
	// MaxNameBytes is the longest encodable name (u8 length prefix).
	MaxNameBytes = 0xFF

	// MaxBodyBytes is the longest encodable message body (u16 length prefix).
	MaxBodyBytes = 0xFFFF

	// MaxClientPacketBytes is the size of the largest client packet, a
	// SendMessage carrying a full body.
	MaxClientPacketBytes = 1 + 1 + 2 + MaxBodyBytes
)

// ClientPacketType identifies a packet sent by a client.
type ClientPacketType byte

const (
	ClientPing        ClientPacketType = 1
	ClientSendMessage ClientPacketType = 2
	ClientChangeName  ClientPacketType = 4
	ClientDisconnect  ClientPacketType = 10
)

// Known reports whether t is a tag this server understands.
func (t ClientPacketType) Known() bool {
	switch t {
	case ClientPing, ClientSendMessage, ClientChangeName, ClientDisconnect:
		return true
	default:
		return false
	}
}

func (t ClientPacketType) String() string {
	switch t {
	case ClientPing:
		return "PING"
	case ClientSendMessage:
		return "SEND_MESSAGE"
	case ClientChangeName:
		return "CHANGE_NAME"
	case ClientDisconnect:
		return "DISCONNECT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
}

// ServerPacketType identifies a packet sent by the server.
type ServerPacketType byte

const (
	ServerPing           ServerPacketType = 1
	ServerReceiveMessage ServerPacketType = 3
	ServerLogMessage     ServerPacketType = 5
	ServerSendUserInfo   ServerPacketType = 7
	ServerSendUserID     ServerPacketType = 9
	ServerUserLeft       ServerPacketType = 11
)

// Known reports whether t is a defined server tag.
func (t ServerPacketType) Known() bool {
	switch t {
	case ServerPing, ServerReceiveMessage, ServerLogMessage,
		ServerSendUserInfo, ServerSendUserID, ServerUserLeft:
		return true
	default:
		return false
	}
}

func (t ServerPacketType) String() string {
	switch t {
	case ServerPing:
		return "PING"
	case ServerReceiveMessage:
		return "RECEIVE_MESSAGE"
	case ServerLogMessage:
		return "LOG_MESSAGE"
	case ServerSendUserInfo:
		return "SEND_USER_INFO"
	case ServerSendUserID:
		return "SEND_USER_ID"
	case ServerUserLeft:
		return "USER_LEFT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
}
