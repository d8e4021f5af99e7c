package packet

import "errors"

var (
	// ErrTruncated is returned when the stream ends (or stalls) in the middle
	// of a packet. The connection can no longer be trusted.
	ErrTruncated = errors.New("packet truncated")

	// ErrUnknownPacket is returned for a tag that is not part of the protocol.
	// Its payload length is unknown, so framing is lost after it.
	ErrUnknownPacket = errors.New("unknown packet type")

	// ErrFieldTooLong is returned when encoding a string that does not fit its
	// length prefix.
	ErrFieldTooLong = errors.New("field exceeds length prefix")
)
