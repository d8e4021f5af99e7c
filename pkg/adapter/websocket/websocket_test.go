package websocket

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marmos91/bonfire/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startAdapter(t *testing.T, config Config, inbox *transport.Inbox) (*Adapter, string) {
	t.Helper()

	config.Address = "127.0.0.1"
	a := New(config, nil)
	a.SetInbox(inbox)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	addr, err := a.Addr(waitCtx)
	require.NoError(t, err)

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("adapter did not stop")
		}
	})
	return a, "ws://" + addr.String() + a.config.Path
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

func TestBinaryMessagesFlowBothWays(t *testing.T) {
	inbox := transport.NewInbox(4)
	a, url := startAdapter(t, Config{}, inbox)

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	tr := acceptOne(t, inbox)
	defer tr.Close()
	assert.Equal(t, 1, a.OpenConnections())

	// A packet split across two messages reads as one byte stream.
	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte{0x04, 0x03}))
	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte{0x00, 'b', 'o', 'b'}))

	got := make([]byte, 0, 6)
	buf := make([]byte, 6)
	require.Eventually(t, func() bool {
		for tr.Available() {
			n, err := tr.Read(buf[:6-len(got)])
			if err != nil {
				return false
			}
			got = append(got, buf[:n]...)
		}
		return len(got) == 6
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte{0x04, 0x03, 0x00, 'b', 'o', 'b'}, got)

	_, err = tr.Write([]byte{0x09, 0x01})
	require.NoError(t, err)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.Equal(t, []byte{0x09, 0x01}, data)
}

func TestTextMessagesAreRejected(t *testing.T) {
	inbox := transport.NewInbox(4)
	_, url := startAdapter(t, Config{}, inbox)

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	tr := acceptOne(t, inbox)
	defer tr.Close()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("hello")))

	require.Eventually(t, tr.Available, 2*time.Second, 5*time.Millisecond)
	_, err = tr.Read(make([]byte, 8))
	assert.ErrorIs(t, err, transport.ErrUnsupportedFrame)
}

func TestClientCloseEndsStream(t *testing.T) {
	inbox := transport.NewInbox(4)
	a, url := startAdapter(t, Config{}, inbox)

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	tr := acceptOne(t, inbox)
	defer tr.Close()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	require.NoError(t, client.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
	_ = client.Close()

	require.Eventually(t, tr.Available, 2*time.Second, 5*time.Millisecond)
	_, err = tr.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, tr.Close())
	require.Eventually(t, func() bool { return a.OpenConnections() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestOriginPolicy(t *testing.T) {
	request := func(host, origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://"+host+"/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	t.Run("NoOriginHeader", func(t *testing.T) {
		assert.True(t, newOriginPolicy(nil).check(request("chat.example", "")))
	})

	t.Run("SameHostOnlyByDefault", func(t *testing.T) {
		p := newOriginPolicy(nil)
		assert.True(t, p.check(request("chat.example", "https://chat.example")))
		assert.False(t, p.check(request("chat.example", "https://evil.example")))
	})

	t.Run("ExplicitList", func(t *testing.T) {
		p := newOriginPolicy([]string{" HTTPS://App.Example ", "not a url"})
		assert.True(t, p.check(request("chat.example", "https://app.example")))
		assert.False(t, p.check(request("chat.example", "https://chat.example")))
		assert.False(t, p.check(request("chat.example", "null")))
	})

	t.Run("Wildcard", func(t *testing.T) {
		assert.True(t, newOriginPolicy([]string{"*"}).check(request("chat.example", "https://anything.example")))
	})
}

func TestDisallowedOriginIsRefused(t *testing.T) {
	inbox := transport.NewInbox(4)
	_, url := startAdapter(t, Config{AllowedOrigins: []string{"https://app.example"}}, inbox)

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, inbox.Len())
}

func TestPlainHTTPIsNotUpgraded(t *testing.T) {
	inbox := transport.NewInbox(4)
	_, url := startAdapter(t, Config{}, inbox)

	resp, err := http.Get(strings.Replace(url, "ws://", "http://", 1))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, inbox.Len())
}
