package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ============================================================================
// Encoding helpers - Go values -> wire format
// ============================================================================

// writeShortString writes a string with a u8 length prefix.
//
// Format: [length:u8][data:length bytes]
func writeShortString(buf *bytes.Buffer, s string) error {
	if len(s) > MaxNameBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFieldTooLong, len(s), MaxNameBytes)
	}
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	return nil
}

// writeLongString writes a string with a u16 length prefix.
//
// Format: [length:u16][data:length bytes]
func writeLongString(buf *bytes.Buffer, s string) error {
	if len(s) > MaxBodyBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFieldTooLong, len(s), MaxBodyBytes)
	}
	if err := binary.Write(buf, ByteOrder, uint16(len(s))); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	buf.WriteString(s)
	return nil
}

func writeTimestamp(buf *bytes.Buffer, ts int64) error {
	if err := binary.Write(buf, ByteOrder, ts); err != nil {
		return fmt.Errorf("write timestamp: %w", err)
	}
	return nil
}

// ============================================================================
// Client packets
// ============================================================================

func (Ping) Encode() ([]byte, error) {
	return []byte{byte(ClientPing)}, nil
}

func (Disconnect) Encode() ([]byte, error) {
	return []byte{byte(ClientDisconnect)}, nil
}

func (p ChangeName) Encode() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 2+len(p.Name)))
	buf.WriteByte(byte(ClientChangeName))
	if err := writeShortString(buf, p.Name); err != nil {
		return nil, fmt.Errorf("encode name: %w", err)
	}
	return buf.Bytes(), nil
}

func (p SendMessage) Encode() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 4+len(p.Body)))
	buf.WriteByte(byte(ClientSendMessage))
	buf.WriteByte(p.Target)
	if err := writeLongString(buf, p.Body); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return buf.Bytes(), nil
}

// ============================================================================
// Server packets
// ============================================================================

func (ServerPingPacket) Encode() ([]byte, error) {
	return []byte{byte(ServerPing)}, nil
}

func (p ReceiveMessage) Encode() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 13+len(p.Body)))
	buf.WriteByte(byte(ServerReceiveMessage))
	buf.WriteByte(p.Target)
	buf.WriteByte(p.Author)
	if err := writeTimestamp(buf, p.Timestamp); err != nil {
		return nil, err
	}
	if err := writeLongString(buf, p.Body); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return buf.Bytes(), nil
}

func (p LogMessage) Encode() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 11+len(p.Body)))
	buf.WriteByte(byte(ServerLogMessage))
	if err := writeTimestamp(buf, p.Timestamp); err != nil {
		return nil, err
	}
	if err := writeLongString(buf, p.Body); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return buf.Bytes(), nil
}

func (p UserInfo) Encode() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 3+len(p.Name)))
	buf.WriteByte(byte(ServerSendUserInfo))
	buf.WriteByte(p.ID)
	if err := writeShortString(buf, p.Name); err != nil {
		return nil, fmt.Errorf("encode name: %w", err)
	}
	return buf.Bytes(), nil
}

func (p UserID) Encode() ([]byte, error) {
	return []byte{byte(ServerSendUserID), p.ID}, nil
}

func (p UserLeft) Encode() ([]byte, error) {
	return []byte{byte(ServerUserLeft), p.ID}, nil
}
