package chat

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/bonfire/internal/protocol/packet"
	"github.com/marmos91/bonfire/pkg/transport"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Fake transport
// ============================================================================

const fakeReadTimeout = 2 * time.Second

// fakeTransport is an in-memory transport. Bytes queued with push are what
// the client sent; bytes written by the room are collected in out.
type fakeTransport struct {
	mu         sync.Mutex
	in         bytes.Buffer
	out        bytes.Buffer
	remote     string
	eof        bool
	closed     bool
	failWrites bool
	readErr    error
}

func newFakeTransport(remote string) *fakeTransport {
	return &fakeTransport{remote: remote}
}

func (f *fakeTransport) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.in.Len() > 0 || f.eof || f.readErr != nil
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	if f.in.Len() > 0 {
		return f.in.Read(p)
	}
	if f.eof {
		return 0, io.EOF
	}
	// Nothing more will arrive within a tick.
	return 0, transport.ErrReadTimeout
}

func (f *fakeTransport) Peek(max int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	switch {
	case f.readErr != nil:
		err = f.readErr
	case f.eof:
		err = io.EOF
	}
	data := f.in.Bytes()
	if len(data) > max {
		data = data[:max]
	}
	return bytes.Clone(data), err
}

func (f *fakeTransport) Discard(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.in.Next(n)
}

func (f *fakeTransport) ReadTimeout() time.Duration { return fakeReadTimeout }

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, transport.ErrClosed
	}
	if f.failWrites {
		return 0, io.ErrClosedPipe
	}
	return f.out.Write(p)
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return transport.ErrClosed
	}
	f.closed = true
	return nil
}

func (f *fakeTransport) RemoteAddr() string { return f.remote }

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// push queues client packets.
func (f *fakeTransport) push(t *testing.T, packets ...packet.ClientPacket) {
	t.Helper()
	for _, p := range packets {
		data, err := p.Encode()
		require.NoError(t, err)
		f.pushRaw(data...)
	}
}

func (f *fakeTransport) pushRaw(data ...byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.in.Write(data)
}

func (f *fakeTransport) hangUp() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eof = true
}

// drain decodes and clears everything the room wrote so far.
func (f *fakeTransport) drain(t *testing.T) []packet.ServerPacket {
	t.Helper()
	f.mu.Lock()
	data := bytes.Clone(f.out.Bytes())
	f.out.Reset()
	f.mu.Unlock()

	var out []packet.ServerPacket
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		p, err := packet.ReadServerPacket(r)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func (f *fakeTransport) written() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.Len()
}

// ============================================================================
// Fake listener and clock
// ============================================================================

type fakeListener struct {
	listening bool
	pending   []transport.Transport
	listenErr error
}

func (l *fakeListener) Listen(context.Context) error {
	if l.listenErr != nil {
		return l.listenErr
	}
	l.listening = true
	return nil
}

func (l *fakeListener) Accept() (transport.Transport, bool) {
	if !l.listening || len(l.pending) == 0 {
		return nil, false
	}
	t := l.pending[0]
	l.pending = l.pending[1:]
	return t, true
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// ============================================================================
// Harness
// ============================================================================

type harness struct {
	t        *testing.T
	room     *Room
	listener *fakeListener
	clock    *fakeClock
}

func newHarness(t *testing.T, configure func(*Config), opts ...Option) *harness {
	t.Helper()

	cfg := DefaultConfig()
	if configure != nil {
		configure(&cfg)
	}

	h := &harness{
		t:        t,
		listener: &fakeListener{},
		clock:    &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}

	room, err := New(cfg, h.listener, append([]Option{WithClock(h.clock.Now)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, room.Start(context.Background()))
	t.Cleanup(func() { _ = room.Close() })

	h.room = room
	return h
}

func (h *harness) tick() {
	h.t.Helper()
	require.NoError(h.t, h.room.Update())
}

// connect queues a new connection. It is accepted on the next tick.
func (h *harness) connect(remote string) *fakeTransport {
	ft := newFakeTransport(remote)
	h.listener.pending = append(h.listener.pending, ft)
	return ft
}

// join connects a client, completes its handshake and discards everything it
// received. It returns the transport and the assigned identity.
func (h *harness) join(name string) (*fakeTransport, uint8) {
	h.t.Helper()

	ft := h.connect(name)
	h.tick()

	packets := ft.drain(h.t)
	require.NotEmpty(h.t, packets)
	id, ok := packets[0].(packet.UserID)
	require.True(h.t, ok, "first packet must be the identity, got %T", packets[0])

	ft.push(h.t, packet.ChangeName{Name: name})
	h.tick()
	ft.drain(h.t)

	return ft, id.ID
}

// drainAll clears the output of every transport.
func drainAll(t *testing.T, transports ...*fakeTransport) {
	t.Helper()
	for _, ft := range transports {
		ft.drain(t)
	}
}

func logBodies(packets []packet.ServerPacket) []string {
	var out []string
	for _, p := range packets {
		if lm, ok := p.(packet.LogMessage); ok {
			out = append(out, lm.Body)
		}
	}
	return out
}
