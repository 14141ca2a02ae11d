package handler

import (
	"time"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
)

type SendMessageRequest struct {
	Content    string             `json:"content"`
	Type       string             `json:"type" binding:"omitempty,oneof=text image file"`
	Attachment *domain.Attachment `json:"attachment"`
}

type SendMessageResponse struct {
	TempID         string `json:"temp_id"`
	ConversationID string `json:"conversation_id"`
}

type TypingRequest struct {
	IsTyping bool `json:"is_typing"`
}

type MarkAsReadRequest struct {
	MessageID string `json:"message_id"`
}

type ActiveConversationRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
}

type PresenceResponse struct {
	UserID   string     `json:"user_id"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}
