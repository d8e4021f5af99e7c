package server

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/marmos91/bonfire/internal/protocol/packet"
	"github.com/marmos91/bonfire/pkg/adapter/tcp"
	"github.com/marmos91/bonfire/pkg/chat"
	"github.com/marmos91/bonfire/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter blocks in Serve until stopped, or fails immediately when
// serveErr is set.
type fakeAdapter struct {
	protocol string
	port     int
	serveErr error
	inbox    *transport.Inbox
	stop     chan struct{}
}

func newFakeAdapter(protocol string, port int) *fakeAdapter {
	return &fakeAdapter{protocol: protocol, port: port, stop: make(chan struct{})}
}

func (f *fakeAdapter) Serve(ctx context.Context) error {
	if f.serveErr != nil {
		return f.serveErr
	}
	select {
	case <-ctx.Done():
	case <-f.stop:
	}
	return nil
}

func (f *fakeAdapter) SetInbox(inbox *transport.Inbox) { f.inbox = inbox }

func (f *fakeAdapter) Stop(ctx context.Context) error {
	select {
	case <-f.stop:
	default:
		close(f.stop)
	}
	return nil
}

func (f *fakeAdapter) Protocol() string { return f.protocol }
func (f *fakeAdapter) Port() int        { return f.port }

// fakeRoom counts calls and returns updateErr from the n-th Update.
type fakeRoom struct {
	listener  chat.Listener
	updates   int
	failAfter int
	updateErr error
	startErr  error
	closed    bool
}

func (r *fakeRoom) Start(ctx context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	return r.listener.Listen(ctx)
}

func (r *fakeRoom) Update() error {
	r.updates++
	if r.updateErr != nil && r.updates >= r.failAfter {
		return r.updateErr
	}
	return nil
}

func (r *fakeRoom) Close() error {
	r.closed = true
	return nil
}

func TestAddAdapter(t *testing.T) {
	t.Run("DuplicateProtocol", func(t *testing.T) {
		s := New(Config{})
		require.NoError(t, s.AddAdapter(newFakeAdapter("tcp", 4545)))
		assert.Error(t, s.AddAdapter(newFakeAdapter("tcp", 4546)))
	})

	t.Run("PortConflict", func(t *testing.T) {
		s := New(Config{})
		require.NoError(t, s.AddAdapter(newFakeAdapter("tcp", 4545)))
		assert.Error(t, s.AddAdapter(newFakeAdapter("websocket", 4545)))
	})

	t.Run("EphemeralPortsNeverConflict", func(t *testing.T) {
		s := New(Config{})
		require.NoError(t, s.AddAdapter(newFakeAdapter("tcp", 0)))
		require.NoError(t, s.AddAdapter(newFakeAdapter("websocket", 0)))
		assert.Len(t, s.Adapters(), 2)
	})

	t.Run("InjectsInbox", func(t *testing.T) {
		s := New(Config{})
		a := newFakeAdapter("tcp", 0)
		require.NoError(t, s.AddAdapter(a))
		assert.Same(t, s.inbox, a.inbox)
	})

	t.Run("Nil", func(t *testing.T) {
		assert.Error(t, New(Config{}).AddAdapter(nil))
	})
}

func TestListenWithoutAdapters(t *testing.T) {
	s := New(Config{})
	assert.Error(t, s.Listen(context.Background()))
}

func TestAddAdapterAfterListen(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.AddAdapter(newFakeAdapter("tcp", 0)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Listen(ctx))

	assert.Error(t, s.AddAdapter(newFakeAdapter("websocket", 0)))
	assert.Error(t, s.Listen(ctx))

	s.shutdown(&fakeRoom{})
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := New(Config{TickInterval: time.Millisecond})
	a := newFakeAdapter("tcp", 0)
	require.NoError(t, s.AddAdapter(a))
	room := &fakeRoom{listener: s}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, s.Run(ctx, room))
	assert.True(t, room.closed)
	assert.Positive(t, room.updates)

	select {
	case <-a.stop:
	default:
		t.Fatal("adapter was not stopped")
	}
}

func TestRunReturnsFatalError(t *testing.T) {
	s := New(Config{TickInterval: time.Millisecond})
	require.NoError(t, s.AddAdapter(newFakeAdapter("tcp", 0)))

	boom := errors.New("boom")
	room := &fakeRoom{listener: s, failAfter: 3, updateErr: &chat.FatalError{Session: 1, Err: boom}}

	err := s.Run(context.Background(), room)
	require.Error(t, err)

	var fatal *chat.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, room.updates)
	assert.True(t, room.closed)
}

func TestRunStopsOnAdapterFailure(t *testing.T) {
	s := New(Config{TickInterval: time.Millisecond})
	healthy := newFakeAdapter("tcp", 0)
	broken := newFakeAdapter("websocket", 0)
	broken.serveErr = errors.New("address already in use")
	require.NoError(t, s.AddAdapter(healthy))
	require.NoError(t, s.AddAdapter(broken))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Run(ctx, &fakeRoom{listener: s})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket adapter error")
	assert.NoError(t, ctx.Err())
}

func TestReadyOnceAdaptersListen(t *testing.T) {
	s := New(Config{TickInterval: time.Millisecond})
	adp := tcp.New(tcp.Config{Enabled: true, Address: "127.0.0.1"}, nil)
	require.NoError(t, s.AddAdapter(adp))

	select {
	case <-s.Ready():
		t.Fatal("ready before Run")
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, &fakeRoom{listener: s}) }()

	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server never became ready")
	}

	// Ready implies the adapter accepts connections.
	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	addr, err := adp.Addr(waitCtx)
	require.NoError(t, err)
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	_ = conn.Close()

	cancel()
	require.NoError(t, <-done)
}

func TestNotReadyWhenRoomFailsToStart(t *testing.T) {
	s := New(Config{TickInterval: time.Millisecond})
	require.NoError(t, s.AddAdapter(newFakeAdapter("tcp", 0)))

	room := &fakeRoom{listener: s, startErr: errors.New("no room")}
	require.Error(t, s.Run(context.Background(), room))

	select {
	case <-s.Ready():
		t.Fatal("ready although the room never started")
	default:
	}
}

// ============================================================================
// End to end over TCP
// ============================================================================

type client struct {
	t    *testing.T
	conn net.Conn
}

func dial(t *testing.T, addr string) *client {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(p packet.ClientPacket) {
	c.t.Helper()
	data, err := p.Encode()
	require.NoError(c.t, err)
	_, err = c.conn.Write(data)
	require.NoError(c.t, err)
}

// await reads packets until match returns true.
func (c *client) await(match func(packet.ServerPacket) bool) packet.ServerPacket {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		p, err := packet.ReadServerPacket(c.conn)
		require.NoError(c.t, err)
		if match(p) {
			return p
		}
	}
}

func (c *client) handshake(name string) uint8 {
	c.t.Helper()
	id := c.await(func(p packet.ServerPacket) bool {
		_, ok := p.(packet.UserID)
		return ok
	}).(packet.UserID).ID

	c.send(packet.ChangeName{Name: name})
	c.await(func(p packet.ServerPacket) bool {
		info, ok := p.(packet.UserInfo)
		return ok && info.ID == id
	})
	return id
}

func TestRunServesChatOverTCP(t *testing.T) {
	s := New(Config{TickInterval: 5 * time.Millisecond})
	adp := tcp.New(tcp.Config{Enabled: true, Address: "127.0.0.1"}, nil)
	require.NoError(t, s.AddAdapter(adp))

	room, err := chat.New(chat.DefaultConfig(), s)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, room) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	addr, err := adp.Addr(waitCtx)
	require.NoError(t, err)

	alice := dial(t, addr.String())
	aliceID := alice.handshake("alice")

	bob := dial(t, addr.String())
	bobID := bob.handshake("bob")
	assert.NotEqual(t, aliceID, bobID)

	// Alice learns about bob.
	alice.await(func(p packet.ServerPacket) bool {
		info, ok := p.(packet.UserInfo)
		return ok && info.ID == bobID && info.Name == "bob"
	})

	alice.send(packet.SendMessage{Target: packet.PublicTarget, Body: "hello bob"})
	got := bob.await(func(p packet.ServerPacket) bool {
		_, ok := p.(packet.ReceiveMessage)
		return ok
	}).(packet.ReceiveMessage)
	assert.Equal(t, aliceID, got.Author)
	assert.Equal(t, "hello bob", got.Body)
	assert.True(t, got.Public())

	bob.send(packet.Disconnect{})
	alice.await(func(p packet.ServerPacket) bool {
		left, ok := p.(packet.UserLeft)
		return ok && left.ID == bobID
	})

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}

	// The room closed alice's connection on shutdown.
	require.NoError(t, alice.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = alice.conn.Read(make([]byte, 64))
	for err == nil {
		_, err = alice.conn.Read(make([]byte, 64))
	}
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, adp.OpenConnections())
}
