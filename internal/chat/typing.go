package chat

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
	"github.com/weiawesome/marketplace-admin-chat/internal/timer"
	"github.com/weiawesome/marketplace-admin-chat/pkg/log"
)

const typingScope = "typing"

// Typist is a user currently composing in a conversation.
type Typist struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// Typing tracks per-conversation typists. Every membership is backed by
// exactly one expiry timer in the registry.
type Typing struct {
	timers *timer.Registry
	ttl    time.Duration
	self   func() string
	convs  map[string]map[string]string
	log    zerolog.Logger
}

// NewTyping creates a tracker. self returns the session user, whose own
// echoes are ignored.
func NewTyping(timers *timer.Registry, ttl time.Duration, self func() string, logger zerolog.Logger) *Typing {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &Typing{
		timers: timers,
		ttl:    ttl,
		self:   self,
		convs:  make(map[string]map[string]string),
		log:    logger,
	}
}

func typingKey(conversationID, userID string) timer.Key {
	return timer.Key{Scope: typingScope, ID: conversationID, Sub: userID}
}

// OnTypingEvent applies a user_typing event. A repeated isTyping restarts
// the expiry window.
func (t *Typing) OnTypingEvent(ev domain.UserTypingPayload) {
	if ev.ConversationID == "" || ev.UserID == "" {
		return
	}
	if t.self != nil && ev.UserID == t.self() {
		return
	}

	if !ev.IsTyping {
		t.remove(ev.ConversationID, ev.UserID)
		return
	}

	users, ok := t.convs[ev.ConversationID]
	if !ok {
		users = make(map[string]string)
		t.convs[ev.ConversationID] = users
	}
	users[ev.UserID] = ev.UserName

	conv, user := ev.ConversationID, ev.UserID
	t.timers.Schedule(typingKey(conv, user), t.ttl, func() {
		t.log.Debug().
			Str(log.FieldConversationID, conv).
			Str(log.FieldUserID, user).
			Msg("typing indicator expired")
		t.drop(conv, user)
	})
}

func (t *Typing) remove(conversationID, userID string) {
	t.timers.Cancel(typingKey(conversationID, userID))
	t.drop(conversationID, userID)
}

func (t *Typing) drop(conversationID, userID string) {
	users, ok := t.convs[conversationID]
	if !ok {
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.convs, conversationID)
	}
}

// TypingUsers returns a sorted copy of the user ids typing in conversationID.
func (t *Typing) TypingUsers(conversationID string) []string {
	users := t.convs[conversationID]
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Typists is TypingUsers with display names.
func (t *Typing) Typists(conversationID string) []Typist {
	ids := t.TypingUsers(conversationID)
	out := make([]Typist, 0, len(ids))
	for _, id := range ids {
		out = append(out, Typist{UserID: id, UserName: t.convs[conversationID][id]})
	}
	return out
}

// Conversations returns the ids of conversations with at least one typist.
func (t *Typing) Conversations() []string {
	ids := make([]string, 0, len(t.convs))
	for id := range t.convs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear drops every typist and cancels their timers.
func (t *Typing) Clear() {
	t.timers.CancelScope(typingScope)
	t.convs = make(map[string]map[string]string)
}

func (t *Typing) OnStateChange(prev, next domain.ConnectionState) {
	if prev == domain.StateConnected || next == domain.StateConnected {
		t.Clear()
	}
}
