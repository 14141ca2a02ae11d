package chat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
	"github.com/weiawesome/marketplace-admin-chat/pkg/log"
)

// Conn is the part of Manager the relay talks to.
type Conn interface {
	State() domain.ConnectionState
	Emit(eventType string, payload interface{}) error
}

// TempIDSource produces correlation ids for optimistic sends.
type TempIDSource interface {
	Generate() (string, error)
}

// RelayObserver receives the outcome of relayed actions.
type RelayObserver interface {
	MessageSent(send domain.PendingSend, messageID string, at time.Time)
	MessageFailed(err *domain.SendError)
	JoinFailed(err *domain.JoinError)
}

// Relay emits commands and reconciles server acknowledgements with the
// PendingSends it created.
type Relay struct {
	conn      Conn
	ids       TempIDSource
	active    *ActiveConversation
	observers []RelayObserver
	now       func() time.Time
	log       zerolog.Logger

	pending map[string]*domain.PendingSend
	order   []string
	joined  map[string]struct{}
}

func NewRelay(conn Conn, ids TempIDSource, active *ActiveConversation, now func() time.Time, logger zerolog.Logger) *Relay {
	if now == nil {
		now = time.Now
	}
	return &Relay{
		conn:    conn,
		ids:     ids,
		active:  active,
		now:     now,
		log:     logger,
		pending: make(map[string]*domain.PendingSend),
		joined:  make(map[string]struct{}),
	}
}

// AddObserver subscribes o to send and join outcomes.
func (r *Relay) AddObserver(o RelayObserver) {
	r.observers = append(r.observers, o)
}

func (r *Relay) connected() bool {
	return r.conn.State() == domain.StateConnected
}

// SendMessage emits send_message and returns the tempId the server will
// echo back. It fails with ErrNotConnected unless the channel is up.
func (r *Relay) SendMessage(conversationID, content, msgType string, att *domain.Attachment) (string, error) {
	if !r.connected() {
		r.log.Warn().
			Str(log.FieldConversationID, conversationID).
			Str(log.FieldState, r.conn.State().String()).
			Msg("send while not connected")
		return "", domain.ErrNotConnected
	}
	if conversationID == "" {
		return "", fmt.Errorf("%w: conversation id is required", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(content) == "" && att == nil {
		return "", fmt.Errorf("%w: message has no content", domain.ErrInvalidRequest)
	}
	if msgType == "" {
		msgType = domain.MessageTypeText
	}

	tempID, err := r.ids.Generate()
	if err != nil {
		return "", fmt.Errorf("generate temp id: %w", err)
	}
	if _, dup := r.pending[tempID]; dup {
		return "", fmt.Errorf("temp id %s already pending", tempID)
	}

	send := &domain.PendingSend{
		TempID:         tempID,
		ConversationID: conversationID,
		Content:        content,
		Type:           msgType,
		Attachment:     att,
		CreatedAt:      r.now(),
	}
	payload := domain.SendMessagePayload{
		ConversationID: conversationID,
		Content:        content,
		Type:           msgType,
		TempID:         tempID,
	}
	if att != nil {
		payload.Attachment = *att
	}

	r.pending[tempID] = send
	r.order = append(r.order, tempID)
	if err := r.conn.Emit(domain.CmdSendMessage, payload); err != nil {
		r.forget(tempID)
		return "", err
	}

	r.log.Debug().
		Str(log.FieldConversationID, conversationID).
		Str(log.FieldTempID, tempID).
		Msg("message sent, awaiting confirmation")
	return tempID, nil
}

// HandleMessageSent resolves the PendingSend named by ev.TempID.
func (r *Relay) HandleMessageSent(ev domain.MessageSentPayload) {
	send, ok := r.pending[ev.TempID]
	if !ok {
		r.log.Debug().Str(log.FieldTempID, ev.TempID).Msg("confirmation for unknown temp id")
		return
	}
	r.forget(ev.TempID)

	at := ev.Timestamp
	if at.IsZero() {
		at = r.now()
	}
	for _, o := range r.observers {
		o.MessageSent(*send, ev.MessageID, at)
	}
}

// HandleMessageError rejects the PendingSend named by ev.TempID, or the
// oldest one when the server did not echo a tempId.
func (r *Relay) HandleMessageError(ev domain.MessageErrorPayload) {
	tempID := ev.TempID
	if tempID == "" && len(r.order) > 0 {
		tempID = r.order[0]
	}
	send, ok := r.pending[tempID]
	if !ok {
		r.log.Warn().Str(log.FieldTempID, ev.TempID).Str("error", ev.Error).Msg("send error for unknown temp id")
		return
	}
	r.forget(tempID)

	r.notifyFailed(&domain.SendError{
		TempID:         send.TempID,
		ConversationID: send.ConversationID,
		Reason:         ev.Error,
	})
}

// AbortPending rejects every outstanding send with ErrSendAborted.
func (r *Relay) AbortPending() {
	order := r.order
	r.order = nil
	for _, id := range order {
		send, ok := r.pending[id]
		if !ok {
			continue
		}
		delete(r.pending, id)
		r.notifyFailed(&domain.SendError{
			TempID:         send.TempID,
			ConversationID: send.ConversationID,
			Err:            domain.ErrSendAborted,
		})
	}
}

func (r *Relay) notifyFailed(err *domain.SendError) {
	r.log.Warn().
		Str(log.FieldTempID, err.TempID).
		Str(log.FieldConversationID, err.ConversationID).
		Msg(err.Error())
	for _, o := range r.observers {
		o.MessageFailed(err)
	}
}

func (r *Relay) forget(tempID string) {
	delete(r.pending, tempID)
	for i, id := range r.order {
		if id == tempID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Pending returns outstanding sends, oldest first.
func (r *Relay) Pending() []domain.PendingSend {
	out := make([]domain.PendingSend, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.pending[id])
	}
	return out
}

// Join makes conversationID the active conversation, leaving the previous
// one first.
func (r *Relay) Join(conversationID string) error {
	if !r.connected() {
		return domain.ErrNotConnected
	}
	if conversationID == "" {
		return fmt.Errorf("%w: conversation id is required", domain.ErrInvalidRequest)
	}
	left := false
	if prev := r.active.Get(); prev != "" && prev != conversationID {
		if err := r.conn.Emit(domain.CmdLeaveConversation, domain.ConversationPayload{ConversationID: prev}); err != nil {
			return err
		}
		delete(r.joined, prev)
		left = true
	}
	if err := r.conn.Emit(domain.CmdJoinConversation, domain.ConversationPayload{ConversationID: conversationID}); err != nil {
		// The previous conversation is already left; it must not stay active.
		if left {
			r.active.Clear()
		}
		return err
	}
	r.active.Set(conversationID)
	return nil
}

// Leave leaves conversationID and clears the pointer if it was active.
func (r *Relay) Leave(conversationID string) error {
	if !r.connected() {
		return domain.ErrNotConnected
	}
	if err := r.conn.Emit(domain.CmdLeaveConversation, domain.ConversationPayload{ConversationID: conversationID}); err != nil {
		return err
	}
	if r.active.Is(conversationID) {
		r.active.Clear()
	}
	return nil
}

func (r *Relay) MarkAsRead(conversationID, messageID string) error {
	if !r.connected() {
		return domain.ErrNotConnected
	}
	return r.conn.Emit(domain.CmdMarkAsRead, domain.MarkAsReadPayload{
		ConversationID: conversationID,
		MessageID:      messageID,
	})
}

func (r *Relay) SendTyping(conversationID string, isTyping bool) error {
	if !r.connected() {
		return domain.ErrNotConnected
	}
	return r.conn.Emit(domain.CmdTypingIndicator, domain.TypingIndicatorPayload{
		ConversationID: conversationID,
		IsTyping:       isTyping,
	})
}

func (r *Relay) HandleJoined(ev domain.ConversationPayload) {
	r.joined[ev.ConversationID] = struct{}{}
	r.log.Debug().Str(log.FieldConversationID, ev.ConversationID).Msg("joined conversation")
}

func (r *Relay) HandleLeft(ev domain.ConversationPayload) {
	delete(r.joined, ev.ConversationID)
	r.log.Debug().Str(log.FieldConversationID, ev.ConversationID).Msg("left conversation")
}

// HandleJoinError reports a refused join. The channel stays up.
func (r *Relay) HandleJoinError(ev domain.JoinErrorPayload) {
	delete(r.joined, ev.ConversationID)
	if r.active.Is(ev.ConversationID) {
		r.active.Clear()
	}
	err := &domain.JoinError{ConversationID: ev.ConversationID, Reason: ev.Error}
	r.log.Warn().Str(log.FieldConversationID, ev.ConversationID).Msg(err.Error())
	for _, o := range r.observers {
		o.JoinFailed(err)
	}
}

// Joined returns the conversations the server confirmed, sorted.
func (r *Relay) Joined() []string {
	ids := make([]string, 0, len(r.joined))
	for id := range r.joined {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OnStateChange aborts pending sends when the channel goes away and
// re-joins the active conversation when a new one comes up.
func (r *Relay) OnStateChange(prev, next domain.ConnectionState) {
	if prev == domain.StateConnected {
		r.AbortPending()
		r.joined = make(map[string]struct{})
	}
	if next != domain.StateConnected {
		return
	}
	if id := r.active.Get(); id != "" {
		if err := r.conn.Emit(domain.CmdJoinConversation, domain.ConversationPayload{ConversationID: id}); err != nil {
			r.log.Warn().Err(err).Str(log.FieldConversationID, id).Msg("failed to rejoin active conversation")
		}
	}
}
