package tcp

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/marmos91/bonfire/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startAdapter(t *testing.T, config Config, inbox *transport.Inbox) (*Adapter, string, context.CancelFunc, <-chan error) {
	t.Helper()

	if config.Address == "" {
		config.Address = "127.0.0.1"
	}
	a := New(config, nil)
	a.SetInbox(inbox)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	addr, err := a.Addr(waitCtx)
	require.NoError(t, err)

	t.Cleanup(cancel)
	return a, addr.String(), cancel, done
}

func acceptOne(t *testing.T, inbox *transport.Inbox) transport.Transport {
	t.Helper()
	var got transport.Transport
	require.Eventually(t, func() bool {
		var ok bool
		got, ok = inbox.Accept()
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestAdapterQueuesConnections(t *testing.T) {
	inbox := transport.NewInbox(4)
	a, addr, _, _ := startAdapter(t, Config{}, inbox)

	client, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	tr := acceptOne(t, inbox)
	defer tr.Close()
	assert.Equal(t, client.LocalAddr().String(), tr.RemoteAddr())
	assert.Equal(t, 1, a.OpenConnections())

	// Client to server.
	_, err = client.Write([]byte{0x01})
	require.NoError(t, err)
	require.Eventually(t, tr.Available, time.Second, time.Millisecond)
	buf := make([]byte, 1)
	_, err = tr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), buf[0])

	// Server to client.
	_, err = tr.Write([]byte{0x09, 0x01})
	require.NoError(t, err)
	reply := make([]byte, 2)
	_, err = io.ReadFull(client, reply)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x09, 0x01}, reply)
}

func TestAdapterRefusesWhenInboxFull(t *testing.T) {
	inbox := transport.NewInbox(1)
	_, addr, _, _ := startAdapter(t, Config{}, inbox)

	first, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return inbox.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	second, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer second.Close()

	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = second.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF, "refused connection is closed without data")
}

func TestGracefulShutdownWaitsForRoom(t *testing.T) {
	inbox := transport.NewInbox(4)
	a, addr, cancel, done := startAdapter(t, Config{ShutdownTimeout: 2 * time.Second}, inbox)

	client, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()
	tr := acceptOne(t, inbox)

	cancel()

	// The room closes its sessions a moment later.
	time.AfterFunc(50*time.Millisecond, func() { _ = tr.Close() })

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Zero(t, a.OpenConnections())
}

func TestShutdownTimeoutForcesClose(t *testing.T) {
	inbox := transport.NewInbox(4)
	a, addr, cancel, done := startAdapter(t, Config{ShutdownTimeout: 100 * time.Millisecond}, inbox)

	client, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()
	acceptOne(t, inbox)

	cancel()

	select {
	case err := <-done:
		assert.Error(t, err, "connections had to be forced")
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return")
	}
	require.Eventually(t, func() bool { return a.OpenConnections() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStopBeforeServe(t *testing.T) {
	a := New(Config{Address: "127.0.0.1"}, nil)
	require.NoError(t, a.Stop(context.Background()))

	err := a.Serve(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "tcp", a.Protocol())
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{Port: 4545}
	cfg.applyDefaults()

	assert.Equal(t, 4545, cfg.Port)
	assert.Equal(t, transport.DefaultReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, transport.DefaultWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, transport.DefaultMaxBufferedBytes, cfg.MaxBufferedBytes)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}
