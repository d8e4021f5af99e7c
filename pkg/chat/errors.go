package chat

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/marmos91/bonfire/internal/protocol/packet"
	"github.com/marmos91/bonfire/pkg/metrics"
	"github.com/marmos91/bonfire/pkg/transport"
)

var (
	// ErrRoomClosed is returned by Update and Start once Close was called.
	ErrRoomClosed = errors.New("chat room closed")

	// ErrNotStarted is returned by Update before Start.
	ErrNotStarted = errors.New("chat room not started")

	// ErrNoListener is returned by Start when the room was built without one.
	ErrNoListener = errors.New("chat room has no listener")

	errNoName = errors.New("no display name could be assigned")
)

// FatalError wraps an error that escaped per-session handling. It signals a
// defect in the server rather than a misbehaving client, and the process is
// expected to stop.
type FatalError struct {
	Session uint8
	Err     error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal error while serving session %d: %v", e.Session, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsRecoverable reports whether err is confined to one session: malformed
// input, a dead or slow connection. Everything else is a defect.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, packet.ErrTruncated),
		errors.Is(err, packet.ErrUnknownPacket),
		errors.Is(err, packet.ErrFieldTooLong),
		errors.Is(err, transport.ErrClosed),
		errors.Is(err, transport.ErrReadTimeout),
		errors.Is(err, transport.ErrBufferOverflow),
		errors.Is(err, transport.ErrUnsupportedFrame),
		errors.Is(err, transport.ErrReaderFailed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed):
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func disconnectReason(err error) string {
	switch {
	case errors.Is(err, io.EOF) && !errors.Is(err, packet.ErrTruncated):
		return metrics.ReasonClientLeft
	case errors.Is(err, packet.ErrTruncated),
		errors.Is(err, packet.ErrUnknownPacket),
		errors.Is(err, packet.ErrFieldTooLong),
		errors.Is(err, transport.ErrBufferOverflow),
		errors.Is(err, transport.ErrUnsupportedFrame):
		return metrics.ReasonProtocolError
	default:
		return metrics.ReasonTransportError
	}
}
