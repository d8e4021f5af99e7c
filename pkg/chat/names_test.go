package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameRegistryRegister(t *testing.T) {
	r := NewNameRegistry(1, 20)

	assert.True(t, r.IsAvailable("Alice"))
	assert.True(t, r.Register("Alice"))
	assert.False(t, r.Register("Alice"), "second registration must fail")
	assert.False(t, r.IsAvailable("Alice"))

	r.Deregister("Alice")
	r.Deregister("Alice")
	assert.True(t, r.IsAvailable("Alice"))
	assert.True(t, r.Register("Alice"))
	assert.Equal(t, 1, r.Len())
}

func TestNameRegistryFix(t *testing.T) {
	tests := []struct {
		name     string
		taken    []string
		proposed string
		want     string
		ok       bool
	}{
		{"Plain", nil, "Alice", "Alice", true},
		{"SpacesBecomeUnderscores", nil, "Mary Ann Lee", "Mary_Ann_Lee", true},
		{"ControlCharactersStripped", nil, "A\x00l\x08i\x0bc\x0ce\x1f", "Alice", true},
		{"ZeroWidthStripped", nil, "Al\u200bice\u200d", "Alice", true},
		{"BidiOverrideStripped", nil, "\u202eAlice", "Alice", true},
		{"NonASCIIKept", nil, "Zoë 🔥", "Zoë_🔥", true},
		{"Truncated", nil, strings.Repeat("x", 30), strings.Repeat("x", 20), true},
		{"TruncatedByRunes", nil, strings.Repeat("é", 30), strings.Repeat("é", 20), true},
		{"Enumerated", []string{"Bob"}, "Bob", "Bob (2)", true},
		{"EnumeratedPastGaps", []string{"Bob", "Bob (2)", "Bob (3)"}, "Bob", "Bob (4)", true},
		{"EnumeratedAfterCleaning", []string{"Bob_B"}, "Bob B", "Bob_B (2)", true},
		{"Empty", nil, "", "", false},
		{"OnlyControl", nil, "\x00\x01", "", false},
		{"EnumerationTooLong", []string{strings.Repeat("x", 20)}, strings.Repeat("x", 25), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewNameRegistry(1, 20)
			for _, name := range tt.taken {
				assert.True(t, r.Register(name))
			}

			got, ok := r.Fix(tt.proposed)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNameRegistryFixDoesNotRegister(t *testing.T) {
	r := NewNameRegistry(1, 20)

	name, ok := r.Fix("Alice")
	assert.True(t, ok)
	assert.True(t, r.IsAvailable(name))
	assert.Zero(t, r.Len())
}

func TestNameRegistryFixIsIdempotent(t *testing.T) {
	r := NewNameRegistry(1, 20)
	r.Register("Carol")

	for _, proposed := range []string{"Alice", "Bob Smith", "x\x00y", "Zoë", strings.Repeat("q", 40)} {
		once, ok := r.Fix(proposed)
		assert.True(t, ok, proposed)

		twice, ok := r.Fix(once)
		assert.True(t, ok, proposed)
		assert.Equal(t, once, twice, proposed)
	}
}

func TestNameRegistryMinimumLength(t *testing.T) {
	r := NewNameRegistry(3, 20)

	_, ok := r.Fix("Al")
	assert.False(t, ok)

	got, ok := r.Fix("Ali")
	assert.True(t, ok)
	assert.Equal(t, "Ali", got)
}
