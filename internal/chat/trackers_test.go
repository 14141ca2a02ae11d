package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
)

func TestPresenceSignalsListOnEveryStatusEvent(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)

	seen := epoch.Add(-time.Minute)
	ch.push(t, domain.EventUserStatusChanged, domain.UserStatusPayload{UserID: "u1", IsOnline: true, LastSeen: &seen})
	ch.push(t, domain.EventUserStatusChanged, domain.UserStatusPayload{UserID: "u1", IsOnline: true})
	ch.push(t, domain.EventUserStatusChanged, domain.UserStatusPayload{UserID: "u2", IsOnline: true})

	assert.True(t, h.console.Presence.IsOnline("u1"))
	assert.Equal(t, []string{"u1", "u2"}, h.console.Presence.Online())
	last, ok := h.console.Presence.LastSeen("u1")
	require.True(t, ok)
	assert.Equal(t, seen, last)
	assert.Equal(t, []string{"conversations:list", "conversations:list", "conversations:list"}, h.cache.strings())

	ch.push(t, domain.EventUserStatusChanged, domain.UserStatusPayload{UserID: "u1", IsOnline: false})
	assert.False(t, h.console.Presence.IsOnline("u1"))
	assert.Len(t, h.cache.keys, 4)
}

func TestPresenceOfflineForUntrackedUserInvalidatesList(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)

	seen := epoch
	ch.push(t, domain.EventUserStatusChanged, domain.UserStatusPayload{UserID: "u9", IsOnline: false, LastSeen: &seen})

	assert.Empty(t, h.console.Presence.Online())
	last, ok := h.console.Presence.LastSeen("u9")
	require.True(t, ok)
	assert.Equal(t, seen, last)
	assert.Equal(t, []string{"conversations:list"}, h.cache.strings())
}

func TestPresenceAndTypingEmptyOnReconnect(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)

	ch.push(t, domain.EventUserStatusChanged, domain.UserStatusPayload{UserID: "u1", IsOnline: true})
	ch.push(t, domain.EventUserTyping, domain.UserTypingPayload{UserID: "u1", ConversationID: "c1", IsTyping: true})
	require.NotEmpty(t, h.console.Presence.Online())
	require.NotEmpty(t, h.console.Typing.TypingUsers("c1"))

	ch.drop(domain.ErrTransport)
	assert.Empty(t, h.console.Presence.Online())
	assert.Empty(t, h.console.Typing.TypingUsers("c1"))
	assert.Equal(t, 0, h.console.Timers.ScopeLen(typingScope))

	h.clock.Advance(time.Second)
	require.Equal(t, domain.StateConnected, h.console.Manager.State())
	assert.Empty(t, h.console.Presence.Online())
	assert.Empty(t, h.console.Typing.Conversations())
}

func TestTypingExpiresAfterTTL(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)

	ch.push(t, domain.EventUserTyping, domain.UserTypingPayload{UserID: "u1", UserName: "Ana", ConversationID: "c1", IsTyping: true})
	assert.Equal(t, []Typist{{UserID: "u1", UserName: "Ana"}}, h.console.Typing.Typists("c1"))

	h.clock.Advance(3500 * time.Millisecond)
	assert.Empty(t, h.console.Typing.TypingUsers("c1"))
	assert.Empty(t, h.console.Typing.Conversations())
	assert.Equal(t, 0, h.console.Timers.ScopeLen(typingScope))
}

func TestTypingRenewalRestartsWindow(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)
	typing := domain.UserTypingPayload{UserID: "u1", ConversationID: "c1", IsTyping: true}

	ch.push(t, domain.EventUserTyping, typing)
	h.clock.Advance(2 * time.Second)
	ch.push(t, domain.EventUserTyping, typing)
	assert.Equal(t, 1, h.console.Timers.ScopeLen(typingScope))

	h.clock.Advance(2 * time.Second)
	assert.Equal(t, []string{"u1"}, h.console.Typing.TypingUsers("c1"))

	h.clock.Advance(1500 * time.Millisecond)
	assert.Empty(t, h.console.Typing.TypingUsers("c1"))
}

func TestTypingStopRemovesImmediately(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)

	ch.push(t, domain.EventUserTyping, domain.UserTypingPayload{UserID: "u1", ConversationID: "c1", IsTyping: true})
	ch.push(t, domain.EventUserTyping, domain.UserTypingPayload{UserID: "u2", ConversationID: "c1", IsTyping: true})
	ch.push(t, domain.EventUserTyping, domain.UserTypingPayload{UserID: "u1", ConversationID: "c1", IsTyping: false})

	assert.Equal(t, []string{"u2"}, h.console.Typing.TypingUsers("c1"))
	assert.Equal(t, 1, h.console.Timers.ScopeLen(typingScope))
}

func TestTypingIgnoresOwnEcho(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)

	ch.push(t, domain.EventUserTyping, domain.UserTypingPayload{UserID: adminSession.UserID, ConversationID: "c1", IsTyping: true})
	assert.Empty(t, h.console.Typing.TypingUsers("c1"))
}

func TestTypingUsersIsACopy(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)
	ch.push(t, domain.EventUserTyping, domain.UserTypingPayload{UserID: "u1", ConversationID: "c1", IsTyping: true})

	users := h.console.Typing.TypingUsers("c1")
	users[0] = "mallory"
	assert.Equal(t, []string{"u1"}, h.console.Typing.TypingUsers("c1"))
}
