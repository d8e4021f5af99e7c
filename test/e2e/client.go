package e2e

import (
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marmos91/bonfire/internal/protocol/packet"
)

const readTimeout = 5 * time.Second

// Client speaks the chat protocol to a running server.
type Client struct {
	t    testing.TB
	rw   io.ReadWriteCloser
	conn net.Conn

	ID   uint8
	Name string
}

func newClient(t testing.TB, rw io.ReadWriteCloser, conn net.Conn) *Client {
	c := &Client{t: t, rw: rw, conn: conn}
	t.Cleanup(func() { _ = c.rw.Close() })
	return c
}

// Send writes one packet.
func (c *Client) Send(p packet.ClientPacket) {
	c.t.Helper()

	data, err := p.Encode()
	if err != nil {
		c.t.Fatalf("Failed to encode %s: %v", p.Type(), err)
	}
	if _, err := c.rw.Write(data); err != nil {
		c.t.Fatalf("Failed to send %s: %v", p.Type(), err)
	}
}

// Next reads the next packet from the server.
func (c *Client) Next() packet.ServerPacket {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	p, err := packet.ReadServerPacket(c.rw)
	if err != nil {
		c.t.Fatalf("Failed to read packet: %v", err)
	}
	return p
}

// Await skips packets until match accepts one.
func (c *Client) Await(what string, match func(packet.ServerPacket) bool) packet.ServerPacket {
	c.t.Helper()

	deadline := time.Now().Add(readTimeout)
	for time.Now().Before(deadline) {
		if p := c.Next(); match(p) {
			return p
		}
	}
	c.t.Fatalf("Timeout waiting for %s", what)
	return nil
}

// AwaitMessage waits for a chat message with the given body.
func (c *Client) AwaitMessage(body string) packet.ReceiveMessage {
	c.t.Helper()
	return c.Await("message "+body, func(p packet.ServerPacket) bool {
		m, ok := p.(packet.ReceiveMessage)
		return ok && m.Body == body
	}).(packet.ReceiveMessage)
}

// NextMessage waits for any chat message.
func (c *Client) NextMessage() packet.ReceiveMessage {
	c.t.Helper()
	return c.Await("any message", func(p packet.ServerPacket) bool {
		_, ok := p.(packet.ReceiveMessage)
		return ok
	}).(packet.ReceiveMessage)
}

// AwaitLog waits for a server log line containing text.
func (c *Client) AwaitLog(text string) packet.LogMessage {
	c.t.Helper()
	return c.Await("log "+text, func(p packet.ServerPacket) bool {
		m, ok := p.(packet.LogMessage)
		return ok && strings.Contains(m.Body, text)
	}).(packet.LogMessage)
}

// AwaitUserInfo waits for the announcement of id.
func (c *Client) AwaitUserInfo(id uint8) packet.UserInfo {
	c.t.Helper()
	return c.Await("user info", func(p packet.ServerPacket) bool {
		info, ok := p.(packet.UserInfo)
		return ok && info.ID == id
	}).(packet.UserInfo)
}

// AwaitUserLeft waits for the departure of id.
func (c *Client) AwaitUserLeft(id uint8) {
	c.t.Helper()
	c.Await("user left", func(p packet.ServerPacket) bool {
		left, ok := p.(packet.UserLeft)
		return ok && left.ID == id
	})
}

// Handshake reads the assigned identity and picks a name. The name the
// server settled on is stored in Name.
func (c *Client) Handshake(name string) {
	c.t.Helper()

	p := c.Next()
	id, ok := p.(packet.UserID)
	if !ok {
		c.t.Fatalf("Expected user id first, got %s", p.Type())
	}
	c.ID = id.ID

	c.Send(packet.ChangeName{Name: name})
	c.Name = c.AwaitUserInfo(c.ID).Name
}

func (c *Client) Say(body string) {
	c.t.Helper()
	c.Send(packet.SendMessage{Target: packet.PublicTarget, Body: body})
}

func (c *Client) Whisper(to uint8, body string) {
	c.t.Helper()
	c.Send(packet.SendMessage{Target: to, Body: body})
}

// Close drops the connection without saying goodbye.
func (c *Client) Close() {
	_ = c.rw.Close()
}

// ExpectClosed reads until the server closes the connection.
func (c *Client) ExpectClosed() {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	buf := make([]byte, 256)
	for {
		_, err := c.rw.Read(buf)
		if err == nil {
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.t.Fatal("Timeout waiting for the server to close the connection")
		}
		return
	}
}

// ============================================================================
// WebSocket stream
// ============================================================================

// wsStream reads and writes binary WebSocket messages as a byte stream.
type wsStream struct {
	ws     *websocket.Conn
	reader io.Reader
}

func newWSStream(ws *websocket.Conn) *wsStream {
	return &wsStream{ws: ws}
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.reader == nil {
			_, r, err := s.ws.NextReader()
			if err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) {
					return 0, io.EOF
				}
				return 0, err
			}
			s.reader = r
		}

		n, err := s.reader.Read(p)
		if errors.Is(err, io.EOF) {
			s.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	if err := s.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) Close() error {
	return s.ws.Close()
}
