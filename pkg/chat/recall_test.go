package chat

import (
	"fmt"
	"testing"

	"github.com/marmos91/bonfire/internal/protocol/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(author uint8, body string) packet.ReceiveMessage {
	return packet.ReceiveMessage{Author: author, Body: body}
}

func TestRecallBufferEvictsOldest(t *testing.T) {
	b := NewRecallBuffer(3)

	for i := 1; i <= 4; i++ {
		b.Push("Alice", msg(1, fmt.Sprint(i)))
		assert.LessOrEqual(t, b.Len(), 3)
	}

	snap := b.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "2", snap[0].Message.Body, "oldest entry evicted")
	assert.Equal(t, "4", snap[2].Message.Body)
}

func TestRecallBufferSnapshotIsACopy(t *testing.T) {
	b := NewRecallBuffer(2)
	b.Push("Alice", msg(1, "a"))

	snap := b.Snapshot()
	snap[0].AuthorName = "Mallory"
	b.Push("Bob", msg(2, "b"))

	again := b.Snapshot()
	assert.Equal(t, "Alice", again[0].AuthorName)
	assert.Len(t, snap, 1)
	assert.Len(t, again, 2)
}

func TestRecallBufferKeepsAuthorNameAtSendTime(t *testing.T) {
	b := NewRecallBuffer(2)
	b.Push("Alice", msg(1, "hi"))
	b.Push("Alicia", msg(1, "renamed"))

	snap := b.Snapshot()
	assert.Equal(t, "Alice", snap[0].AuthorName)
	assert.Equal(t, "Alicia", snap[1].AuthorName)
}

func TestRecallBufferDisabled(t *testing.T) {
	b := NewRecallBuffer(0)
	b.Push("Alice", msg(1, "lost"))

	assert.Zero(t, b.Len())
	assert.Empty(t, b.Snapshot())
	assert.Zero(t, b.Cap())
}
