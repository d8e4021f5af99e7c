// Package adapter defines the network front-ends of the chat server.
//
// An adapter accepts connections on one protocol, wraps each of them in a
// transport.Stream and hands it to the room through a shared transport.Inbox.
// The room owns a connection from then on: it reads, writes and eventually
// closes it. Adapters only track connections so that shutdown can wait for
// them.
package adapter

import (
	"context"

	"github.com/marmos91/bonfire/pkg/transport"
)

// Adapter is a protocol listener feeding the chat room.
//
// Lifecycle:
//  1. Creation: the adapter is built from its configuration
//  2. SetInbox: the server injects the queue read by the room
//  3. Serve: blocks accepting connections until ctx is cancelled or Stop
//  4. Stop: stops accepting and waits for tracked connections to close
//
// Serve is called once per instance. Stop may be called concurrently with
// Serve and more than once.
type Adapter interface {
	// Serve starts accepting connections and blocks until shutdown.
	//
	// Returns nil on graceful shutdown, or an error if the listener cannot be
	// opened or connections had to be force-closed.
	Serve(ctx context.Context) error

	// SetInbox injects the queue new connections are delivered to. Must be
	// called before Serve.
	SetInbox(inbox *transport.Inbox)

	// Stop initiates shutdown and waits for tracked connections to close or
	// ctx to expire.
	Stop(ctx context.Context) error

	// Protocol returns a short name for logs and metrics ("tcp", "websocket").
	Protocol() string

	// Port returns the configured listening port.
	Port() int
}
