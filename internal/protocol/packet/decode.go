package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// ============================================================================
// Decoding helpers - wire format -> Go values
// ============================================================================

// truncated marks a read failure inside a packet. Both ErrTruncated and the
// underlying stream error stay reachable through errors.Is.
func truncated(field string, err error) error {
	return fmt.Errorf("%w: read %s: %w", ErrTruncated, field, err)
}

// Incomplete reports whether err only means that the reader ran out of bytes
// before the packet ended. More bytes may still complete it.
func Incomplete(err error) bool {
	return errors.Is(err, ErrTruncated) &&
		(errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF))
}

// ReadTag reads the one byte tag that starts every packet.
//
// A failure here is returned unwrapped: an io.EOF at a packet boundary is an
// orderly close, not a truncated packet.
func ReadTag(r io.Reader) (byte, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return 0, err
	}
	return tag[0], nil
}

func readByte(r io.Reader, field string) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, truncated(field, err)
	}
	return b[0], nil
}

// readString reads n bytes and returns them as UTF-8. Invalid sequences are
// replaced with U+FFFD rather than rejected. The replacement can grow the
// string, so the result is cut back to limit bytes on a rune boundary.
func readString(r io.Reader, n, limit int, field string) (string, error) {
	if n == 0 {
		return "", nil
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", truncated(field, err)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	return truncateUTF8(strings.ToValidUTF8(string(data), "\uFFFD"), limit), nil
}

// truncateUTF8 cuts the valid UTF-8 string s to at most limit bytes without
// splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// readShortString reads a string with a u8 length prefix.
//
// Format: [length:u8][data:length bytes]
func readShortString(r io.Reader, field string) (string, error) {
	length, err := readByte(r, field+" length")
	if err != nil {
		return "", err
	}
	return readString(r, int(length), MaxNameBytes, field)
}

// readLongString reads a string with a u16 length prefix.
//
// Format: [length:u16][data:length bytes]
func readLongString(r io.Reader, field string) (string, error) {
	var length uint16
	if err := binary.Read(r, ByteOrder, &length); err != nil {
		return "", truncated(field+" length", err)
	}
	return readString(r, int(length), MaxBodyBytes, field)
}

func readTimestamp(r io.Reader) (int64, error) {
	var ts int64
	if err := binary.Read(r, ByteOrder, &ts); err != nil {
		return 0, truncated("timestamp", err)
	}
	return ts, nil
}

// ============================================================================
// Client packets
// ============================================================================

// ReadClientPacket reads one complete client packet from r.
func ReadClientPacket(r io.Reader) (ClientPacket, error) {
	tag, err := ReadTag(r)
	if err != nil {
		return nil, err
	}
	return DecodeClientPacket(ClientPacketType(tag), r)
}

// DecodeClientPacket decodes the payload of a client packet whose tag has
// already been consumed from r.
//
// Returns ErrUnknownPacket for tags outside the protocol; nothing is read from
// r in that case.
func DecodeClientPacket(t ClientPacketType, r io.Reader) (ClientPacket, error) {
	switch t {
	case ClientPing:
		return Ping{}, nil

	case ClientDisconnect:
		return Disconnect{}, nil

	case ClientChangeName:
		name, err := readShortString(r, "name")
		if err != nil {
			return nil, err
		}
		return ChangeName{Name: name}, nil

	case ClientSendMessage:
		target, err := readByte(r, "target")
		if err != nil {
			return nil, err
		}
		body, err := readLongString(r, "body")
		if err != nil {
			return nil, err
		}
		return SendMessage{Target: target, Body: body}, nil

	default:
		return nil, fmt.Errorf("%w: client tag %d", ErrUnknownPacket, byte(t))
	}
}

// ============================================================================
// Server packets
// ============================================================================

// ReadServerPacket reads one complete server packet from r. Clients and tests
// use it to consume the server's side of the stream.
func ReadServerPacket(r io.Reader) (ServerPacket, error) {
	tag, err := ReadTag(r)
	if err != nil {
		return nil, err
	}
	return DecodeServerPacket(ServerPacketType(tag), r)
}

// DecodeServerPacket decodes the payload of a server packet whose tag has
// already been consumed from r.
func DecodeServerPacket(t ServerPacketType, r io.Reader) (ServerPacket, error) {
	switch t {
	case ServerPing:
		return ServerPingPacket{}, nil

	case ServerReceiveMessage:
		target, err := readByte(r, "target")
		if err != nil {
			return nil, err
		}
		author, err := readByte(r, "author")
		if err != nil {
			return nil, err
		}
		ts, err := readTimestamp(r)
		if err != nil {
			return nil, err
		}
		body, err := readLongString(r, "body")
		if err != nil {
			return nil, err
		}
		return ReceiveMessage{Target: target, Author: author, Timestamp: ts, Body: body}, nil

	case ServerLogMessage:
		ts, err := readTimestamp(r)
		if err != nil {
			return nil, err
		}
		body, err := readLongString(r, "body")
		if err != nil {
			return nil, err
		}
		return LogMessage{Timestamp: ts, Body: body}, nil

	case ServerSendUserInfo:
		id, err := readByte(r, "id")
		if err != nil {
			return nil, err
		}
		name, err := readShortString(r, "name")
		if err != nil {
			return nil, err
		}
		return UserInfo{ID: id, Name: name}, nil

	case ServerSendUserID:
		id, err := readByte(r, "id")
		if err != nil {
			return nil, err
		}
		return UserID{ID: id}, nil

	case ServerUserLeft:
		id, err := readByte(r, "id")
		if err != nil {
			return nil, err
		}
		return UserLeft{ID: id}, nil

	default:
		return nil, fmt.Errorf("%w: server tag %d", ErrUnknownPacket, byte(t))
	}
}
