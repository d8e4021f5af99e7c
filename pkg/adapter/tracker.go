package adapter

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/marmos91/bonfire/internal/logger"
	"github.com/marmos91/bonfire/pkg/metrics"
	"github.com/marmos91/bonfire/pkg/transport"
)

// ConnTracker follows the streams an adapter handed over until they close.
//
// All methods are safe for concurrent use.
type ConnTracker struct {
	protocol string
	metrics  metrics.AdapterMetrics

	wg    sync.WaitGroup
	count atomic.Int32

	// streams holds every open stream for forced closure.
	streams sync.Map
}

// NewConnTracker creates a tracker. A nil metrics value disables metrics.
func NewConnTracker(protocol string, m metrics.AdapterMetrics) *ConnTracker {
	if m == nil {
		m = metrics.NewNoopAdapterMetrics()
	}
	return &ConnTracker{protocol: protocol, metrics: m}
}

// Handoff starts tracking s and offers it to inbox. When the inbox refuses it
// (full, closed or missing) the stream is closed and false is returned.
func (t *ConnTracker) Handoff(inbox *transport.Inbox, s *transport.Stream) bool {
	t.wg.Add(1)
	t.streams.Store(s, struct{}{})
	t.metrics.SetOpenConnections(t.protocol, int(t.count.Add(1)))

	go t.watch(s)

	if inbox == nil || !inbox.Offer(s) {
		logger.Warn("%s: inbox full, refusing connection from %s", t.protocol, s.RemoteAddr())
		t.metrics.RecordConnectionRefused(t.protocol, "inbox_full")
		_ = s.Close()
		return false
	}

	t.metrics.RecordConnectionAccepted(t.protocol)
	logger.Debug("%s: connection from %s queued (open: %d)", t.protocol, s.RemoteAddr(), t.count.Load())
	return true
}

func (t *ConnTracker) watch(s *transport.Stream) {
	defer func() {
		t.streams.Delete(s)
		open := t.count.Add(-1)
		t.metrics.SetOpenConnections(t.protocol, int(open))
		t.wg.Done()
		logger.Debug("%s: connection from %s closed (open: %d)", t.protocol, s.RemoteAddr(), open)
	}()
	<-s.Done()
}

// Open returns the number of tracked streams.
func (t *ConnTracker) Open() int {
	return int(t.count.Load())
}

// Wait blocks until every tracked stream closed or ctx is done.
func (t *ConnTracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseAll force-closes every tracked stream and returns how many it closed.
func (t *ConnTracker) CloseAll() int {
	closed := 0
	t.streams.Range(func(key, _ any) bool {
		if err := key.(*transport.Stream).Close(); err == nil {
			closed++
		}
		return true
	})
	return closed
}
