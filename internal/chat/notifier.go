package chat

import (
	"github.com/rs/zerolog"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
	"github.com/weiawesome/marketplace-admin-chat/pkg/log"
)

// Alerter raises a user-visible alert. It must not block the loop.
type Alerter interface {
	Alert(a domain.Alert)
}

// Notifier decides whether an incoming message deserves an alert.
type Notifier struct {
	alerter Alerter
	active  *ActiveConversation
	self    func() string
	log     zerolog.Logger
}

func NewNotifier(alerter Alerter, active *ActiveConversation, self func() string, logger zerolog.Logger) *Notifier {
	return &Notifier{alerter: alerter, active: active, self: self, log: logger}
}

// HandleNewMessage alerts once for a message from someone else in a
// conversation that is not open. It reports whether an alert was raised.
func (n *Notifier) HandleNewMessage(ev domain.NewMessagePayload) bool {
	conversationID := messageConversation(ev)
	if n.self != nil && ev.Message.SenderID == n.self() {
		return false
	}
	if n.active.Is(conversationID) {
		n.log.Debug().Str(log.FieldConversationID, conversationID).Msg("conversation open, alert suppressed")
		return false
	}

	n.alerter.Alert(domain.Alert{
		ConversationID: conversationID,
		MessageID:      ev.Message.ID,
		SenderID:       ev.Message.SenderID,
		SenderName:     ev.Message.SenderName,
		Content:        ev.Message.Content,
	})
	return true
}

func messageConversation(ev domain.NewMessagePayload) string {
	if ev.ConversationID != "" {
		return ev.ConversationID
	}
	return ev.Message.ConversationID
}
