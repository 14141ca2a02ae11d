// Package chat implements the realtime side of the admin console: the
// connection manager, the trackers fed by channel events and the relay
// that correlates optimistic sends with server acknowledgements.
package chat

import "time"

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultTypingTTL   = 3 * time.Second
)

// Config controls connection recovery and indicator expiry.
type Config struct {
	// Optional marks chat as an auxiliary capability: connection errors are
	// logged but never surfaced, including the terminal one. State still
	// moves through Retrying and Failed.
	Optional    bool
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	TypingTTL   time.Duration
	// StopOnAuthRejected moves straight to Failed when the server refuses
	// the credentials instead of retrying them.
	StopOnAuthRejected bool
}

// DefaultConfig returns the production recovery policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		TypingTTL:   DefaultTypingTTL,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.TypingTTL <= 0 {
		c.TypingTTL = DefaultTypingTTL
	}
	return c
}
