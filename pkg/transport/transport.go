// Package transport defines the byte stream a chat session talks through and
// the plumbing that turns blocking network connections into one.
//
// The chat room runs on a single goroutine and must never block on a client.
// Adapters therefore wrap each connection in a Stream: a reader goroutine
// moves incoming bytes into a buffer, and the room only reads from a Stream
// once Available reports that bytes (or a terminal error) are waiting.
package transport

import (
	"errors"
	"time"
)

var (
	// ErrClosed is returned by operations on a transport that has been closed.
	ErrClosed = errors.New("transport closed")

	// ErrReadTimeout is returned when a packet started arriving but its
	// remainder did not show up within the read timeout.
	ErrReadTimeout = errors.New("transport read timeout")

	// ErrBufferOverflow is returned once a client has sent more unread data
	// than the stream is allowed to buffer.
	ErrBufferOverflow = errors.New("transport buffer overflow")

	// ErrUnsupportedFrame is returned by framed transports when the peer
	// sends a frame that cannot carry protocol bytes.
	ErrUnsupportedFrame = errors.New("transport frame not supported")

	// ErrReaderFailed is returned when the goroutine reading the connection
	// panicked.
	ErrReaderFailed = errors.New("transport reader failed")
)

// Transport is a bidirectional byte stream attached to one client.
//
// Implementations must be safe for Close to be called concurrently with the
// other methods. The other methods are only ever called by the room goroutine.
//
// The room never calls Read: it decodes packets from Peek and consumes them
// with Discard once complete, so a client sending half a packet cannot stall
// the tick.
type Transport interface {
	// Available reports whether Read would return without waiting for the
	// network: either data is buffered or the stream has failed.
	Available() bool

	// Read reads buffered bytes. It may wait up to the transport's read
	// timeout when called with nothing buffered.
	Read(p []byte) (int, error)

	// Peek returns a copy of at most max buffered bytes without consuming
	// them, along with the terminal error of the connection (nil while it is
	// open). It never waits.
	Peek(max int) ([]byte, error)

	// Discard drops the first n buffered bytes.
	Discard(n int)

	// ReadTimeout is how long the rest of a packet may take to arrive once
	// its first byte is buffered.
	ReadTimeout() time.Duration

	// Write sends p in full or returns an error.
	Write(p []byte) (int, error)

	// Close releases the underlying connection. It is idempotent.
	Close() error

	// RemoteAddr describes the peer, for logging.
	RemoteAddr() string
}
