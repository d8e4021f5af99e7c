package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/bonfire/internal/protocol/packet"
)

// Config holds the room settings. It is read-only once the room is built.
type Config struct {
	// MaxUsers bounds the number of simultaneous sessions (1..255).
	MaxUsers int

	// IdleTimeout is how long an active session may stay silent before it
	// is pinged.
	IdleTimeout time.Duration

	// HandshakeTimeout is how long a connecting session has to pick a name.
	HandshakeTimeout time.Duration

	// RecallCapacity is the number of public messages replayed to newcomers.
	RecallCapacity int

	MinNameLength int
	MaxNameLength int

	// DefaultName replaces names that cannot be fixed.
	DefaultName string

	// MessageOfTheDay is sent to every client after its handshake. Empty
	// disables it.
	MessageOfTheDay string

	// IgnoreUnknownPackets keeps a session alive when it sends an unknown tag.
	// The stream may be desynchronized afterwards.
	IgnoreUnknownPackets bool

	// MessagesPerSecond enables per-session flood control when positive.
	MessagesPerSecond float64
	MessageBurst      uint
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxUsers:         MaxIdentities,
		IdleTimeout:      10 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		RecallCapacity:   10,
		MinNameLength:    1,
		MaxNameLength:    20,
		DefaultName:      "Guest",
	}
}

// Validate checks the invariants the room relies on.
func (c Config) Validate() error {
	var errs []error

	if c.MaxUsers < 1 || c.MaxUsers > MaxIdentities {
		errs = append(errs, fmt.Errorf("max users must be between 1 and %d, got %d", MaxIdentities, c.MaxUsers))
	}
	if c.IdleTimeout <= 0 {
		errs = append(errs, errors.New("idle timeout must be positive"))
	}
	if c.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("handshake timeout must be positive"))
	}
	if c.RecallCapacity < 0 {
		errs = append(errs, errors.New("recall capacity must not be negative"))
	}
	if c.MinNameLength < 1 || c.MinNameLength > c.MaxNameLength {
		errs = append(errs, fmt.Errorf("name length bounds [%d, %d] are invalid", c.MinNameLength, c.MaxNameLength))
	}

	// Every session must be able to fall back to the default name, even
	// with all other identities holding an enumerated copy of it.
	registry := NewNameRegistry(c.MinNameLength, c.MaxNameLength)
	base := sanitizeName(c.DefaultName)
	suffix := fmt.Sprintf(" (%d)", c.MaxUsers)
	if fixed, ok := registry.Fix(c.DefaultName); !ok || fixed != base {
		errs = append(errs, fmt.Errorf("default name %q is not a valid name", c.DefaultName))
	} else if c.MaxUsers > 1 && !registry.validLength(base+suffix) {
		errs = append(errs, fmt.Errorf("default name %q leaves no room for the %q suffix within %d characters",
			c.DefaultName, suffix, c.MaxNameLength))
	}

	if len(c.MessageOfTheDay) > packet.MaxBodyBytes {
		errs = append(errs, fmt.Errorf("message of the day is %d bytes, at most %d fit in a packet",
			len(c.MessageOfTheDay), packet.MaxBodyBytes))
	}
	if c.MessagesPerSecond < 0 {
		errs = append(errs, errors.New("messages per second must not be negative"))
	}

	return errors.Join(errs...)
}
