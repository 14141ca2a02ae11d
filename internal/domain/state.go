package domain

import (
	"strings"
	"time"
)

// ConnectionState is the lifecycle state of the chat channel.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateRetrying
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRetrying:
		return "retrying"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RetryState tracks reconnect attempts since the last successful handshake.
type RetryState struct {
	Attempt     int           `json:"attempt"`
	MaxAttempts int           `json:"max_attempts"`
	LastDelay   time.Duration `json:"last_delay"`
}

// Exhausted reports whether no further reconnect may be scheduled.
func (r RetryState) Exhausted() bool {
	return r.Attempt >= r.MaxAttempts
}

// UserTypeAdmin is presented in every handshake from this console.
const UserTypeAdmin = "admin"

// Session is the authenticated identity supplied by the auth layer.
// It is treated as immutable for one connection attempt.
type Session struct {
	UserID string
	Token  string
	Role   string
}

// Validate reports ErrAuthMissing when the session cannot authenticate a channel.
func (s Session) Validate() error {
	if strings.TrimSpace(s.Token) == "" {
		return ErrAuthMissing
	}
	return nil
}
