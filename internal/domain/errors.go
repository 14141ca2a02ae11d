package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuthMissing    = errors.New("no valid session token")
	ErrAuthRejected   = errors.New("chat server rejected credentials")
	ErrTransport      = errors.New("chat transport failure")
	ErrNotConnected   = errors.New("chat channel not connected")
	ErrRetryExhausted = errors.New("chat reconnect attempts exhausted")
	ErrSendAborted    = errors.New("channel lost before send was confirmed")
	ErrInvalidRequest = errors.New("invalid request")
)

// SendError reports a failed optimistic send. Callers may resubmit.
type SendError struct {
	TempID         string
	ConversationID string
	Reason         string
	Err            error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("send %s to %s failed: %v", e.TempID, e.ConversationID, e.Err)
	}
	return fmt.Sprintf("send %s to %s failed: %s", e.TempID, e.ConversationID, e.Reason)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// JoinError reports a rejected join. The channel stays up.
type JoinError struct {
	ConversationID string
	Reason         string
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("join %s failed: %s", e.ConversationID, e.Reason)
}
