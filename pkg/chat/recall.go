package chat

import "github.com/marmos91/bonfire/internal/protocol/packet"

// RecallEntry is one public message kept for replay.
type RecallEntry struct {
	// AuthorName is the author's display name when the message was sent.
	AuthorName string

	Message packet.ReceiveMessage
}

// RecallBuffer holds the most recent public messages, oldest first.
type RecallBuffer struct {
	entries  []RecallEntry
	capacity int
}

// NewRecallBuffer creates a buffer keeping at most capacity entries. A
// capacity of zero disables recall.
func NewRecallBuffer(capacity int) *RecallBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &RecallBuffer{
		entries:  make([]RecallEntry, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a message and evicts the oldest ones past capacity.
func (b *RecallBuffer) Push(author string, msg packet.ReceiveMessage) {
	b.entries = append(b.entries, RecallEntry{AuthorName: author, Message: msg})
	if over := len(b.entries) - b.capacity; over > 0 {
		// Shift in place so the backing array does not grow forever.
		n := copy(b.entries, b.entries[over:])
		clear(b.entries[n:])
		b.entries = b.entries[:n]
	}
}

// Snapshot returns a copy of the entries, oldest first.
func (b *RecallBuffer) Snapshot() []RecallEntry {
	out := make([]RecallEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

func (b *RecallBuffer) Len() int { return len(b.entries) }
func (b *RecallBuffer) Cap() int { return b.capacity }
