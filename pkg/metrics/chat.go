package metrics

import "time"

// Disconnect reasons reported through ChatMetrics.RecordDisconnect.
const (
	ReasonClientLeft       = "client_left"
	ReasonHandshakeTimeout = "handshake_timeout"
	ReasonProtocolError    = "protocol_error"
	ReasonTransportError   = "transport_error"
	ReasonShutdown         = "shutdown"
)

// ChatMetrics provides observability for the chat room.
//
// The room calls it from its single tick goroutine. A nil ChatMetrics passed to
// the room is replaced by the no-op implementation.
type ChatMetrics interface {
	// RecordConnectionAccepted counts a connection that was given an identity.
	RecordConnectionAccepted()

	// RecordConnectionRejected counts a connection turned away before a
	// session was created (for example "room_full").
	RecordConnectionRejected(reason string)

	// SetSessions updates the number of sessions per state.
	SetSessions(connecting, active int)

	// RecordPacket counts a packet received from a client, by tag name.
	RecordPacket(packetType string)

	// RecordMessage counts a routed chat message.
	//
	// Parameters:
	//   - scope: "public" or "private"
	RecordMessage(scope string)

	// RecordMessageThrottled counts a message dropped by flood control.
	RecordMessageThrottled()

	// RecordDisconnect counts a removed session, by one of the Reason* constants.
	RecordDisconnect(reason string)

	// ObserveTick records how long one room update took.
	ObserveTick(duration time.Duration)
}

type noopChatMetrics struct{}

// NewNoopChatMetrics returns a ChatMetrics that discards everything.
func NewNoopChatMetrics() ChatMetrics {
	return noopChatMetrics{}
}

func (noopChatMetrics) RecordConnectionAccepted()       {}
func (noopChatMetrics) RecordConnectionRejected(string) {}
func (noopChatMetrics) SetSessions(int, int)            {}
func (noopChatMetrics) RecordPacket(string)             {}
func (noopChatMetrics) RecordMessage(string)            {}
func (noopChatMetrics) RecordMessageThrottled()         {}
func (noopChatMetrics) RecordDisconnect(string)         {}
func (noopChatMetrics) ObserveTick(time.Duration)       {}
