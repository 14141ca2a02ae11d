package chat

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
)

func TestSendWhileDisconnected(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)

	tempID, err := h.console.Relay.SendMessage("c1", "hi", domain.MessageTypeText, nil)
	assert.ErrorIs(t, err, domain.ErrNotConnected)
	assert.Empty(t, tempID)
	assert.Empty(t, h.console.Relay.Pending())
}

func TestSendAndConfirm(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)

	tempID, err := h.console.Relay.SendMessage("c1", "hi", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "t1", tempID)

	require.Len(t, ch.emitted, 1)
	var sent domain.SendMessagePayload
	require.NoError(t, json.Unmarshal(ch.emitted[0].Data, &sent))
	assert.Equal(t, domain.CmdSendMessage, ch.emitted[0].Type)
	assert.Equal(t, "t1", sent.TempID)
	assert.Equal(t, domain.MessageTypeText, sent.Type)

	pending := h.console.Relay.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, epoch, pending[0].CreatedAt)

	ch.push(t, domain.EventMessageSent, domain.MessageSentPayload{TempID: "t1", MessageID: "m9", Timestamp: epoch})
	assert.Empty(t, h.console.Relay.Pending())
	assert.Equal(t, []string{"t1->m9"}, h.observer.sent)

	recent := h.console.Outcomes.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, OutcomeSent, recent[0].Kind)

	// duplicate confirmations are ignored
	ch.push(t, domain.EventMessageSent, domain.MessageSentPayload{TempID: "t1", MessageID: "m9"})
	assert.Len(t, h.observer.sent, 1)
}

func TestSendWithAttachment(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)

	att := &domain.Attachment{FileURL: "https://cdn/x.png", FileName: "x.png", MimeType: "image/png", FileSize: 10}
	_, err := h.console.Relay.SendMessage("c1", "", domain.MessageTypeImage, att)
	require.NoError(t, err)

	var sent domain.SendMessagePayload
	require.NoError(t, json.Unmarshal(ch.emitted[0].Data, &sent))
	assert.Equal(t, *att, sent.Attachment)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.connect(t)

	_, err := h.console.Relay.SendMessage("c1", "   ", domain.MessageTypeText, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	_, err = h.console.Relay.SendMessage("", "hi", domain.MessageTypeText, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Empty(t, h.console.Relay.Pending())
}

func TestMessageErrorRejectsMatchingSend(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)

	_, err := h.console.Relay.SendMessage("c1", "one", domain.MessageTypeText, nil)
	require.NoError(t, err)
	_, err = h.console.Relay.SendMessage("c2", "two", domain.MessageTypeText, nil)
	require.NoError(t, err)

	ch.push(t, domain.EventMessageError, domain.MessageErrorPayload{Error: "too long", TempID: "t2"})
	require.Len(t, h.observer.failed, 1)
	assert.Equal(t, "t2", h.observer.failed[0].TempID)
	assert.Equal(t, "c2", h.observer.failed[0].ConversationID)
	assert.Equal(t, "too long", h.observer.failed[0].Reason)

	ch.push(t, domain.EventMessageError, domain.MessageErrorPayload{Error: "rate limited"})
	require.Len(t, h.observer.failed, 2)
	assert.Equal(t, "t1", h.observer.failed[1].TempID)
	assert.Empty(t, h.console.Relay.Pending())
}

func TestPendingSendsAbortedOnDrop(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)

	_, err := h.console.Relay.SendMessage("c1", "hi", domain.MessageTypeText, nil)
	require.NoError(t, err)

	ch.drop(domain.ErrTransport)
	assert.Empty(t, h.console.Relay.Pending())
	require.Len(t, h.observer.failed, 1)
	assert.ErrorIs(t, h.observer.failed[0], domain.ErrSendAborted)
	assert.True(t, h.console.Outcomes.Recent()[0].Retryable)
}

func TestJoinMovesActivePointer(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)

	require.NoError(t, h.console.Relay.Join("c1"))
	require.NoError(t, h.console.Relay.Join("c2"))
	assert.Equal(t, "c2", h.console.Active.Get())
	assert.Equal(t, []string{
		domain.CmdJoinConversation,
		domain.CmdLeaveConversation,
		domain.CmdJoinConversation,
	}, ch.types())

	ch.push(t, domain.EventJoinedConversation, domain.ConversationPayload{ConversationID: "c2"})
	assert.Equal(t, []string{"c2"}, h.console.Relay.Joined())

	require.NoError(t, h.console.Relay.Leave("c2"))
	assert.Empty(t, h.console.Active.Get())
	ch.push(t, domain.EventLeftConversation, domain.ConversationPayload{ConversationID: "c2"})
	assert.Empty(t, h.console.Relay.Joined())
}

func TestFailedJoinAfterLeaveClearsPointer(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)

	require.NoError(t, h.console.Relay.Join("c1"))
	ch.push(t, domain.EventJoinedConversation, domain.ConversationPayload{ConversationID: "c1"})

	ch.failOn = map[string]error{domain.CmdJoinConversation: errors.New("buffer full")}
	err := h.console.Relay.Join("c2")
	require.Error(t, err)

	assert.Empty(t, h.console.Active.Get())
	assert.Empty(t, h.console.Relay.Joined())
	assert.Equal(t, []string{domain.CmdJoinConversation, domain.CmdLeaveConversation}, ch.types())

	// c1 was left, so its messages alert again
	ch.push(t, domain.EventNewMessage, newMessage("c1", "buyer-7"))
	assert.Len(t, h.alerter.alerts, 1)
}

func TestFailedFirstJoinLeavesPointerUnset(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)
	ch.failOn = map[string]error{domain.CmdJoinConversation: errors.New("buffer full")}

	require.Error(t, h.console.Relay.Join("c1"))
	assert.Empty(t, h.console.Active.Get())
	assert.Empty(t, ch.types())
}

func TestJoinErrorClearsPointer(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)

	require.NoError(t, h.console.Relay.Join("c1"))
	ch.push(t, domain.EventJoinError, domain.JoinErrorPayload{ConversationID: "c1", Error: "not assigned"})

	assert.Empty(t, h.console.Active.Get())
	require.Len(t, h.observer.joinFailed, 1)
	assert.Equal(t, "not assigned", h.observer.joinFailed[0].Reason)
	assert.Equal(t, domain.StateConnected, h.console.Manager.State())
}

func TestActiveConversationRejoinedAfterReconnect(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)
	require.NoError(t, h.console.Relay.Join("c1"))

	ch.drop(domain.ErrTransport)
	h.clock.Advance(time.Second)

	next := h.dialer.last()
	require.NotSame(t, ch, next)
	require.Len(t, next.emitted, 1)
	assert.Equal(t, domain.CmdJoinConversation, next.emitted[0].Type)
	assert.JSONEq(t, `{"conversationId":"c1"}`, string(next.emitted[0].Data))
}

func TestCommandsRequireConnected(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	r := h.console.Relay

	assert.ErrorIs(t, r.Join("c1"), domain.ErrNotConnected)
	assert.ErrorIs(t, r.Leave("c1"), domain.ErrNotConnected)
	assert.ErrorIs(t, r.MarkAsRead("c1", ""), domain.ErrNotConnected)
	assert.ErrorIs(t, r.SendTyping("c1", true), domain.ErrNotConnected)
	assert.Empty(t, h.console.Active.Get())
}

func TestMarkAsReadAndTypingCommands(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	ch := h.connect(t)

	require.NoError(t, h.console.Relay.MarkAsRead("c1", "m1"))
	require.NoError(t, h.console.Relay.SendTyping("c1", true))

	assert.JSONEq(t, `{"conversationId":"c1","messageId":"m1"}`, string(ch.emitted[0].Data))
	assert.JSONEq(t, `{"conversationId":"c1","isTyping":true}`, string(ch.emitted[1].Data))
}
