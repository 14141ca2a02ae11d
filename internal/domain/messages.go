package domain

import (
	"encoding/json"
	"time"
)

// Client -> server commands.
const (
	CmdHandshake         = "handshake"
	CmdSendMessage       = "send_message"
	CmdJoinConversation  = "join_conversation"
	CmdLeaveConversation = "leave_conversation"
	CmdTypingIndicator   = "typing_indicator"
	CmdMarkAsRead        = "mark_as_read"
)

// Server -> client events.
const (
	EventConnect              = "connect"
	EventDisconnect           = "disconnect"
	EventConnectError         = "connect_error"
	EventNewMessage           = "new_message"
	EventMessageSent          = "message_sent"
	EventMessageError         = "message_error"
	EventUserTyping           = "user_typing"
	EventUserStatusChanged    = "user_status_changed"
	EventMessagesRead         = "messages_read"
	EventJoinedConversation   = "joined_conversation"
	EventLeftConversation     = "left_conversation"
	EventJoinError            = "join_error"
	EventConversationAssigned = "conversation_assigned"
	EventPriorityChanged      = "priority_changed"
)

// Message content types.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// Error codes carried by connect_error.
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
)

// Envelope is the frame exchanged on the channel in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into a frame of the given type.
func NewEnvelope(eventType string, payload interface{}) (*Envelope, error) {
	env := &Envelope{Type: eventType}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	env.Data = data
	return env, nil
}

// Decode unmarshals the frame payload into v.
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// Client -> Server payloads

type HandshakePayload struct {
	Token    string `json:"token"`
	UserType string `json:"userType"`
}

// Attachment describes an uploaded file referenced by a message.
type Attachment struct {
	FileURL  string `json:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

type SendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	Type           string `json:"type"`
	TempID         string `json:"tempId"`
	Attachment
}

type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type TypingIndicatorPayload struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type MarkAsReadPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId,omitempty"`
}

// Server -> Client payloads

type ConnectErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	SenderName     string    `json:"senderName,omitempty"`
	SenderType     string    `json:"senderType,omitempty"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"createdAt"`
}

type NewMessagePayload struct {
	Message        ChatMessage `json:"message"`
	ConversationID string      `json:"conversationId"`
}

type MessageSentPayload struct {
	TempID    string    `json:"tempId"`
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
}

type MessageErrorPayload struct {
	Error  string `json:"error"`
	TempID string `json:"tempId,omitempty"`
}

type UserTypingPayload struct {
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type UserStatusPayload struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type MessagesReadPayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId,omitempty"`
}

type JoinErrorPayload struct {
	Error          string `json:"error"`
	ConversationID string `json:"conversationId"`
}

type ConversationAssignedPayload struct {
	ConversationID string `json:"conversationId"`
	AdminID        string `json:"adminId"`
}

type PriorityChangedPayload struct {
	ConversationID string `json:"conversationId"`
	Priority       string `json:"priority"`
}
