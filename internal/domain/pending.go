package domain

import "time"

// PendingSend is an optimistic send awaiting server confirmation.
type PendingSend struct {
	TempID         string      `json:"temp_id"`
	ConversationID string      `json:"conversation_id"`
	Content        string      `json:"content"`
	Type           string      `json:"type"`
	Attachment     *Attachment `json:"attachment,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Alert is a user-visible notification for an incoming message.
type Alert struct {
	ConversationID string
	MessageID      string
	SenderID       string
	SenderName     string
	Content        string
}
