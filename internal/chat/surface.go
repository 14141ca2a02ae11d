package chat

import (
	"errors"
	"time"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
)

// Banner keeps the connection error the operator should currently see.
type Banner struct {
	err      error
	terminal bool
	at       time.Time
	now      func() time.Time
}

// BannerState is a snapshot of Banner.
type BannerState struct {
	Message  string    `json:"message,omitempty"`
	Terminal bool      `json:"terminal"`
	At       time.Time `json:"at,omitempty"`
}

func NewBanner(now func() time.Time) *Banner {
	if now == nil {
		now = time.Now
	}
	return &Banner{now: now}
}

func (b *Banner) ConnectionError(err error, terminal bool) {
	b.err = err
	b.terminal = terminal
	b.at = b.now()
}

// OnStateChange dismisses the banner once a channel is up or the operator
// disconnected.
func (b *Banner) OnStateChange(_, next domain.ConnectionState) {
	if next == domain.StateConnected || next == domain.StateDisconnected {
		b.err = nil
		b.terminal = false
	}
}

func (b *Banner) State() BannerState {
	if b.err == nil {
		return BannerState{}
	}
	return BannerState{Message: bannerMessage(b.err), Terminal: b.terminal, At: b.at}
}

func bannerMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuthRejected):
		return "Chat sign-in was rejected. Please sign in again."
	case errors.Is(err, domain.ErrRetryExhausted):
		return "Chat is unavailable. Reconnect to try again."
	default:
		return "Chat connection lost. Reconnecting..."
	}
}

// OutcomeKind classifies an Outcome.
type OutcomeKind string

const (
	OutcomeSent       OutcomeKind = "sent"
	OutcomeSendFailed OutcomeKind = "send_failed"
	OutcomeJoinFailed OutcomeKind = "join_failed"
)

// Outcome is a resolved optimistic action.
type Outcome struct {
	Kind           OutcomeKind `json:"kind"`
	TempID         string      `json:"temp_id,omitempty"`
	MessageID      string      `json:"message_id,omitempty"`
	ConversationID string      `json:"conversation_id"`
	Error          string      `json:"error,omitempty"`
	Retryable      bool        `json:"retryable"`
	At             time.Time   `json:"at"`
}

// Outcomes is a bounded log of recent relay outcomes, newest last.
type Outcomes struct {
	buf  []Outcome
	next int
	full bool
	now  func() time.Time
}

func NewOutcomes(size int, now func() time.Time) *Outcomes {
	if size <= 0 {
		size = 100
	}
	if now == nil {
		now = time.Now
	}
	return &Outcomes{buf: make([]Outcome, size), now: now}
}

func (o *Outcomes) add(out Outcome) {
	o.buf[o.next] = out
	o.next = (o.next + 1) % len(o.buf)
	if o.next == 0 {
		o.full = true
	}
}

func (o *Outcomes) MessageSent(send domain.PendingSend, messageID string, at time.Time) {
	o.add(Outcome{
		Kind:           OutcomeSent,
		TempID:         send.TempID,
		MessageID:      messageID,
		ConversationID: send.ConversationID,
		At:             at,
	})
}

func (o *Outcomes) MessageFailed(err *domain.SendError) {
	msg := err.Reason
	if err.Err != nil {
		msg = err.Err.Error()
	}
	o.add(Outcome{
		Kind:           OutcomeSendFailed,
		TempID:         err.TempID,
		ConversationID: err.ConversationID,
		Error:          msg,
		Retryable:      true,
		At:             o.now(),
	})
}

func (o *Outcomes) JoinFailed(err *domain.JoinError) {
	o.add(Outcome{
		Kind:           OutcomeJoinFailed,
		ConversationID: err.ConversationID,
		Error:          err.Reason,
		At:             o.now(),
	})
}

// Recent returns the buffered outcomes, oldest first.
func (o *Outcomes) Recent() []Outcome {
	if !o.full {
		return append([]Outcome(nil), o.buf[:o.next]...)
	}
	out := make([]Outcome, 0, len(o.buf))
	out = append(out, o.buf[o.next:]...)
	return append(out, o.buf[:o.next]...)
}
