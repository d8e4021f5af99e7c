package transport

import "sync"

// Inbox hands accepted transports from adapter goroutines to the room.
//
// Offer never blocks: when the room is falling behind, new connections are
// turned away instead of piling up.
type Inbox struct {
	mu     sync.Mutex
	ch     chan Transport
	closed bool
}

func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = 1
	}
	return &Inbox{ch: make(chan Transport, size)}
}

// Offer queues t. It returns false if the inbox is full or closed, in which
// case the caller still owns t and must close it.
func (i *Inbox) Offer(t Transport) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return false
	}
	select {
	case i.ch <- t:
		return true
	default:
		return false
	}
}

// Accept returns the next pending transport, or false if none is waiting.
func (i *Inbox) Accept() (Transport, bool) {
	select {
	case t := <-i.ch:
		return t, true
	default:
		return nil, false
	}
}

// Len returns the number of pending transports.
func (i *Inbox) Len() int {
	return len(i.ch)
}

// Close rejects further offers and closes every transport still pending.
func (i *Inbox) Close() {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.closed = true
	i.mu.Unlock()

	for {
		t, ok := i.Accept()
		if !ok {
			return
		}
		_ = t.Close()
	}
}
