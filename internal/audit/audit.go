package audit

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
	"github.com/weiawesome/marketplace-admin-chat/pkg/log"
)

// Audit actions for the chat console.
const (
	ActionConnected      = "chat.connected"
	ActionDisconnect     = "chat.disconnect"
	ActionRetryExhausted = "chat.retry_exhausted"
	ActionSendMessage    = "chat.send_message"
	ActionSendFailed     = "chat.send_failed"
	ActionJoin           = "chat.join_conversation"
	ActionJoinFailed     = "chat.join_failed"
	ActionLeave          = "chat.leave_conversation"
	ActionSessionRefresh = "chat.session_refresh"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Auditor writes audit entries for the operator behind the session.
type Auditor struct {
	log  zerolog.Logger
	user func() string
}

// New creates an Auditor. user returns the acting operator.
func New(logger zerolog.Logger, user func() string) *Auditor {
	return &Auditor{log: logger, user: user}
}

// Log emits a structured audit log entry.
func (a *Auditor) Log(action, targetID, msg string) {
	a.entry(action, targetID).Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func (a *Auditor) LogWithDetail(action, targetID, detail, msg string) {
	a.entry(action, targetID).Str(FieldDetail, detail).Msg(msg)
}

func (a *Auditor) entry(action, targetID string) *zerolog.Event {
	ev := a.log.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action)
	if a.user != nil {
		ev = ev.Str(log.FieldUserID, a.user())
	}
	if targetID != "" {
		ev = ev.Str(FieldTargetID, targetID)
	}
	return ev
}

// OnStateChange records the transitions an operator cares about.
func (a *Auditor) OnStateChange(prev, next domain.ConnectionState) {
	switch next {
	case domain.StateConnected:
		a.Log(ActionConnected, "", "chat connected")
	case domain.StateDisconnected:
		a.LogWithDetail(ActionDisconnect, "", prev.String(), "chat disconnected")
	case domain.StateFailed:
		a.Log(ActionRetryExhausted, "", "chat connection gave up")
	}
}

func (a *Auditor) MessageSent(send domain.PendingSend, messageID string, at time.Time) {
	a.LogWithDetail(ActionSendMessage, send.ConversationID, messageID, "message delivered")
}

func (a *Auditor) MessageFailed(err *domain.SendError) {
	a.LogWithDetail(ActionSendFailed, err.ConversationID, err.Error(), "message not delivered")
}

func (a *Auditor) JoinFailed(err *domain.JoinError) {
	a.LogWithDetail(ActionJoinFailed, err.ConversationID, err.Reason, "join refused")
}
