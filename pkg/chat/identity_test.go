package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityPoolAcquire(t *testing.T) {
	p := NewIdentityPool(3)

	for want := uint8(1); want <= 3; want++ {
		id, ok := p.Acquire()
		require.True(t, ok)
		assert.Equal(t, want, id)
		assert.True(t, p.Held(id))
	}

	_, ok := p.Acquire()
	assert.False(t, ok, "pool exhausted")
	assert.Zero(t, p.Available())
}

func TestIdentityPoolReleaseOrder(t *testing.T) {
	p := NewIdentityPool(3)
	for i := 0; i < 3; i++ {
		p.Acquire()
	}

	assert.True(t, p.Release(2))
	assert.True(t, p.Release(1))

	id, _ := p.Acquire()
	assert.Equal(t, uint8(2), id, "least recently released first")
	id, _ = p.Acquire()
	assert.Equal(t, uint8(1), id)
}

func TestIdentityPoolReleaseIsIdempotent(t *testing.T) {
	p := NewIdentityPool(2)
	id, _ := p.Acquire()

	assert.True(t, p.Release(id))
	assert.False(t, p.Release(id))
	assert.False(t, p.Release(0), "identity 0 is never held")
	assert.False(t, p.Release(200), "outside the pool")
	assert.Equal(t, 2, p.Available())
}

func TestIdentityPoolNeverHandsOutZero(t *testing.T) {
	p := NewIdentityPool(1000)
	assert.Equal(t, MaxIdentities, p.Size())

	seen := map[uint8]bool{}
	for {
		id, ok := p.Acquire()
		if !ok {
			break
		}
		assert.NotZero(t, id)
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Len(t, seen, MaxIdentities)
}
