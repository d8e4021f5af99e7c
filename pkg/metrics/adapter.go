package metrics

// AdapterMetrics provides observability for protocol adapters (TCP, WebSocket).
//
// Adapters call it from their accept loops and connection goroutines, so
// implementations must be safe for concurrent use.
type AdapterMetrics interface {
	// RecordConnectionAccepted counts a connection handed to the room.
	RecordConnectionAccepted(protocol string)

	// RecordConnectionRefused counts a connection the adapter closed itself.
	//
	// Parameters:
	//   - protocol: adapter protocol name ("tcp", "websocket")
	//   - reason: "inbox_full", "shutdown", "origin", "upgrade"
	RecordConnectionRefused(protocol, reason string)

	// SetOpenConnections updates the number of connections an adapter is tracking.
	SetOpenConnections(protocol string, count int)
}

type noopAdapterMetrics struct{}

// NewNoopAdapterMetrics returns an AdapterMetrics that discards everything.
func NewNoopAdapterMetrics() AdapterMetrics {
	return noopAdapterMetrics{}
}

func (noopAdapterMetrics) RecordConnectionAccepted(string)        {}
func (noopAdapterMetrics) RecordConnectionRefused(string, string) {}
func (noopAdapterMetrics) SetOpenConnections(string, int)         {}
