package transport

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	DefaultReadTimeout      = 2 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultMaxBufferedBytes = 1 << 20

	readChunkSize = 4096
)

// Options tune a Stream. Zero values select the defaults above.
type Options struct {
	// ReadTimeout bounds how long Read waits for bytes that have not arrived yet.
	ReadTimeout time.Duration

	// WriteTimeout bounds each Write when the connection supports deadlines.
	WriteTimeout time.Duration

	// MaxBufferedBytes caps the unread backlog of a client.
	MaxBufferedBytes int
}

func (o Options) withDefaults() Options {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.MaxBufferedBytes <= 0 {
		o.MaxBufferedBytes = DefaultMaxBufferedBytes
	}
	return o
}

// writeDeadliner is implemented by net.Conn and *websocket.Conn.
type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Stream is a Transport over any blocking io.ReadWriteCloser.
type Stream struct {
	conn   io.ReadWriteCloser
	remote string
	opts   Options

	mu  sync.Mutex
	buf bytes.Buffer
	err error

	// data receives a token whenever the reader goroutine makes progress.
	data chan struct{}

	writeMu   sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
}

// NewStream wraps conn and starts its reader goroutine.
func NewStream(conn io.ReadWriteCloser, remote string, opts Options) *Stream {
	s := &Stream{
		conn:   conn,
		remote: remote,
		opts:   opts.withDefaults(),
		data:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *Stream) readLoop() {
	defer func() {
		// A panicking connection must not take the process down with it.
		if r := recover(); r != nil {
			s.mu.Lock()
			s.err = fmt.Errorf("%w: %v", ErrReaderFailed, r)
			s.mu.Unlock()
			s.signal()
			_ = s.conn.Close()
		}
	}()

	chunk := make([]byte, readChunkSize)
	for {
		n, err := s.conn.Read(chunk)

		s.mu.Lock()
		if n > 0 {
			if s.buf.Len()+n > s.opts.MaxBufferedBytes {
				s.err = ErrBufferOverflow
				s.mu.Unlock()
				s.signal()
				_ = s.conn.Close()
				return
			}
			s.buf.Write(chunk[:n])
		}
		if err != nil {
			s.err = err
		}
		s.mu.Unlock()
		s.signal()

		if err != nil {
			return
		}
	}
}

func (s *Stream) signal() {
	select {
	case s.data <- struct{}{}:
	default:
	}
}

func (s *Stream) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len() > 0 || s.err != nil
}

// Buffered returns the number of unread bytes.
func (s *Stream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

func (s *Stream) Peek(max int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := min(max, s.buf.Len())
	if n <= 0 {
		return nil, s.err
	}
	return bytes.Clone(s.buf.Bytes()[:n]), s.err
}

func (s *Stream) Discard(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Next(n)
}

func (s *Stream) ReadTimeout() time.Duration {
	return s.opts.ReadTimeout
}

// Read drains buffered bytes first. The terminal error of the connection is
// only reported once the buffer is empty, so a client that sends a packet and
// hangs up still has that packet processed.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		s.mu.Lock()
		if s.buf.Len() > 0 {
			n, _ := s.buf.Read(p)
			s.mu.Unlock()
			return n, nil
		}
		err := s.err
		s.mu.Unlock()

		if err != nil {
			return 0, err
		}

		if timer == nil {
			timer = time.NewTimer(s.opts.ReadTimeout)
		}
		select {
		case <-s.data:
		case <-s.closed:
			return 0, ErrClosed
		case <-timer.C:
			return 0, ErrReadTimeout
		}
	}
}

func (s *Stream) Write(p []byte) (int, error) {
	select {
	case <-s.closed:
		return 0, ErrClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if d, ok := s.conn.(writeDeadliner); ok {
		_ = d.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	}
	return s.conn.Write(p)
}

func (s *Stream) Close() error {
	err := ErrClosed
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.conn.Close()
	})
	return err
}

// Done is closed once Close has been called.
func (s *Stream) Done() <-chan struct{} {
	return s.closed
}

func (s *Stream) RemoteAddr() string {
	return s.remote
}

var _ Transport = (*Stream)(nil)
