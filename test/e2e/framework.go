package e2e

import (
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marmos91/bonfire/internal/logger"
	"github.com/marmos91/bonfire/pkg/chat"
	"github.com/marmos91/bonfire/pkg/config"
	"github.com/marmos91/bonfire/pkg/server"
)

// addresser is implemented by adapters that expose their listening address.
type addresser interface {
	Addr(ctx context.Context) (net.Addr, error)
}

// TestContext provides a running Bonfire server built from configuration,
// the way the bonfire binary builds it.
type TestContext struct {
	T      testing.TB
	Config *TestConfig
	Server *server.Server
	Room   *chat.Room
	Addr   string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan error
}

// NewTestContext starts a server for config and registers its cleanup.
func NewTestContext(t testing.TB, config *TestConfig) *TestContext {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	tc := &TestContext{
		T:      t,
		Config: config,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan error, 1),
	}

	tc.startServer()
	t.Cleanup(tc.Cleanup)
	return tc
}

func (tc *TestContext) startServer() {
	tc.T.Helper()

	// Functional tests, not debugging sessions.
	logger.SetLevel("ERROR")

	cfg := tc.Config.buildConfig()
	if err := config.Validate(cfg); err != nil {
		tc.T.Fatalf("Invalid test configuration: %v", err)
	}

	adapters, err := config.CreateAdapters(cfg, nil)
	if err != nil {
		tc.T.Fatalf("Failed to create adapters: %v", err)
	}

	tc.Server = server.New(cfg.ToServerConfig())
	for _, a := range adapters {
		if err := tc.Server.AddAdapter(a); err != nil {
			tc.T.Fatalf("Failed to add %s adapter: %v", a.Protocol(), err)
		}
	}

	tc.Room, err = chat.New(cfg.ToChatConfig(), tc.Server, chat.WithLogger(logger.New("room")))
	if err != nil {
		tc.T.Fatalf("Failed to create room: %v", err)
	}

	go func() {
		tc.done <- tc.Server.Run(tc.ctx, tc.Room)
	}()

	tc.waitForServer(adapters[0].(addresser))
}

// waitForServer waits until the adapter is listening.
func (tc *TestContext) waitForServer(a addresser) {
	tc.T.Helper()

	ctx, cancel := context.WithTimeout(tc.ctx, 10*time.Second)
	defer cancel()

	addr, err := a.Addr(ctx)
	if err != nil {
		tc.T.Fatalf("Timeout waiting for server to start: %v", err)
	}
	tc.Addr = addr.String()
}

// Cleanup stops the server and waits for Run to return.
func (tc *TestContext) Cleanup() {
	tc.cancel()

	select {
	case err := <-tc.done:
		if err != nil {
			tc.T.Errorf("Server stopped with error: %v", err)
		}
	case <-time.After(10 * time.Second):
		tc.T.Error("Timeout waiting for server to stop")
	}
}

// Dial opens a raw connection through the configured transport.
func (tc *TestContext) Dial() *Client {
	tc.T.Helper()

	switch tc.Config.Transport {
	case TransportTCP:
		conn, err := net.DialTimeout("tcp", tc.Addr, 5*time.Second)
		if err != nil {
			tc.T.Fatalf("Failed to dial %s: %v", tc.Addr, err)
		}
		return newClient(tc.T, conn, conn)

	case TransportWebSocket:
		url := fmt.Sprintf("ws://%s/ws", tc.Addr)
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			tc.T.Fatalf("Failed to dial %s: %v", url, err)
		}
		return newClient(tc.T, newWSStream(ws), ws.UnderlyingConn())

	default:
		tc.T.Fatalf("Unknown transport %q", tc.Config.Transport)
		return nil
	}
}

// Join dials and completes the handshake under name.
func (tc *TestContext) Join(name string) *Client {
	tc.T.Helper()
	c := tc.Dial()
	c.Handshake(name)
	return c
}

// runOnAllConfigs runs testFunc once per transport.
func runOnAllConfigs(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()
	runWith(t, nil, testFunc)
}

// runWith runs testFunc once per transport with adjusted chat settings.
func runWith(t *testing.T, chatCfg func(cfg *config.ChatConfig), testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()

	for _, cfg := range AllConfigurations() {
		cfg.Chat = chatCfg
		t.Run(strings.ToUpper(cfg.Name[:1])+cfg.Name[1:], func(t *testing.T) {
			testFunc(t, NewTestContext(t, cfg))
		})
	}
}
