package chat

// MaxIdentities is the largest pool size. Identity 0 is the public target and
// is never handed out.
const MaxIdentities = 255

// IdentityPool dispenses the identities 1..size.
//
// Free identities are kept in a FIFO: the one released the longest time ago is
// handed out first, so a returning client is unlikely to inherit the identity
// of someone who just left.
type IdentityPool struct {
	free []uint8
	held [MaxIdentities + 1]bool
	size int
}

func NewIdentityPool(size int) *IdentityPool {
	if size > MaxIdentities {
		size = MaxIdentities
	}
	if size < 0 {
		size = 0
	}
	p := &IdentityPool{
		free: make([]uint8, 0, size),
		size: size,
	}
	for id := 1; id <= size; id++ {
		p.free = append(p.free, uint8(id))
	}
	return p
}

// Acquire takes the next free identity. It returns false when the pool is
// exhausted.
func (p *IdentityPool) Acquire() (uint8, bool) {
	if len(p.free) == 0 {
		return 0, false
	}
	id := p.free[0]
	p.free = p.free[1:]
	p.held[id] = true
	return id, true
}

// Release returns id to the pool. Releasing an identity that is not held
// returns false and changes nothing.
func (p *IdentityPool) Release(id uint8) bool {
	if id == 0 || int(id) > p.size || !p.held[id] {
		return false
	}
	p.held[id] = false
	p.free = append(p.free, id)
	return true
}

func (p *IdentityPool) Held(id uint8) bool {
	return p.held[id]
}

// Available returns the number of free identities.
func (p *IdentityPool) Available() int {
	return len(p.free)
}

func (p *IdentityPool) Size() int {
	return p.size
}
