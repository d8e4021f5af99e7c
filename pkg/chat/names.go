package chat

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/marmos91/bonfire/internal/protocol/packet"
)

// NameRegistry tracks the display names held by active sessions.
//
// It is owned by the room and only touched from the tick goroutine.
type NameRegistry struct {
	names     map[string]struct{}
	minLength int
	maxLength int
}

// NewNameRegistry creates a registry accepting names of minLength to
// maxLength characters.
func NewNameRegistry(minLength, maxLength int) *NameRegistry {
	return &NameRegistry{
		names:     make(map[string]struct{}),
		minLength: minLength,
		maxLength: maxLength,
	}
}

// Register reserves name. It returns false if the name is already held.
func (r *NameRegistry) Register(name string) bool {
	if _, taken := r.names[name]; taken {
		return false
	}
	r.names[name] = struct{}{}
	return true
}

// Deregister releases name. Releasing a name nobody holds is a no-op.
func (r *NameRegistry) Deregister(name string) {
	delete(r.names, name)
}

func (r *NameRegistry) IsAvailable(name string) bool {
	_, taken := r.names[name]
	return !taken
}

func (r *NameRegistry) Len() int {
	return len(r.names)
}

// Fix turns a proposed name into one that can be registered right now.
//
// Spaces become underscores, control and invisible formatting characters are
// dropped and the result is cut to the maximum length. A name already in use
// gets the first free " (2)", " (3)", ... suffix. The result is rejected when
// it ends up outside the length bounds. Fix does not register the name.
func (r *NameRegistry) Fix(proposed string) (string, bool) {
	base := truncateRunes(sanitizeName(proposed), r.maxLength)

	candidate := base
	// At most len(r.names) candidates can be taken, so this always terminates
	// with a free one.
	for n := 2; !r.IsAvailable(candidate); n++ {
		candidate = fmt.Sprintf("%s (%d)", base, n)
	}

	if !r.validLength(candidate) {
		return "", false
	}
	return candidate, true
}

func (r *NameRegistry) validLength(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= r.minLength && n <= r.maxLength && len(name) <= packet.MaxNameBytes
}

func sanitizeName(name string) string {
	return strings.Map(func(c rune) rune {
		switch {
		case c == ' ':
			return '_'
		case c == utf8.RuneError:
			return -1
		case unicode.IsControl(c), unicode.Is(unicode.Cf, c):
			// Cf covers zero-width spaces and joiners, bidi overrides and BOMs.
			return -1
		}
		return c
	}, name)
}

func truncateRunes(s string, max int) string {
	if max < 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == max {
			return s[:pos]
		}
		i++
	}
	return s
}
