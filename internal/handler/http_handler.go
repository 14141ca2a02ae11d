package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/marketplace-admin-chat/internal/audit"
	"github.com/weiawesome/marketplace-admin-chat/internal/chat"
	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
	"github.com/weiawesome/marketplace-admin-chat/internal/loop"
	"github.com/weiawesome/marketplace-admin-chat/pkg/log"
	"github.com/weiawesome/marketplace-admin-chat/pkg/response"
)

// SessionProvider returns the session to connect with.
type SessionProvider interface {
	Session() (domain.Session, error)
}

// Handler exposes the chat console over HTTP. Every console access runs on
// the event loop through runner.
type Handler struct {
	console  *chat.Console
	runner   loop.Runner
	sessions SessionProvider
	auditor  *audit.Auditor
}

// NewHandler creates a new HTTP handler. auditor may be nil.
func NewHandler(console *chat.Console, runner loop.Runner, sessions SessionProvider, auditor *audit.Auditor) *Handler {
	return &Handler{
		console:  console,
		runner:   runner,
		sessions: sessions,
		auditor:  auditor,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r gin.IRouter, mw ...gin.HandlerFunc) {
	api := r.Group("/api/v1/chat", mw...)
	{
		api.GET("/status", h.GetStatus)
		api.POST("/connect", h.Connect)
		api.POST("/disconnect", h.Disconnect)

		api.GET("/presence", h.ListOnline)
		api.GET("/presence/:userId", h.GetPresence)

		api.PUT("/active-conversation", h.SetActiveConversation)
		api.DELETE("/active-conversation", h.ClearActiveConversation)

		api.GET("/pending", h.ListPending)
		api.GET("/outcomes", h.ListOutcomes)

		conv := api.Group("/conversations/:id")
		{
			conv.GET("/typing", h.GetTyping)
			conv.POST("/typing", h.SendTyping)
			conv.POST("/messages", h.SendMessage)
			conv.POST("/join", h.Join)
			conv.POST("/leave", h.Leave)
			conv.POST("/read", h.MarkAsRead)
		}
	}
}

func (h *Handler) do(ctx context.Context, fn func() error) error {
	return h.runner.Do(ctx, fn)
}

// audit must run on the loop; the auditor reads the session user.
func (h *Handler) audit(action, target, msg string) {
	if h.auditor != nil {
		h.auditor.Log(action, target, msg)
	}
}

// writeError maps console errors to API responses.
func writeError(c *gin.Context, err error) {
	var sendErr *domain.SendError
	switch {
	case errors.Is(err, domain.ErrNotConnected):
		response.Conflict(c, "NOT_CONNECTED", "chat is not connected")
	case errors.Is(err, domain.ErrAuthMissing):
		response.Unauthorized(c, "AUTH_MISSING", err.Error())
	case errors.Is(err, domain.ErrInvalidRequest):
		response.BadRequest(c, err.Error())
	case errors.As(err, &sendErr):
		response.Error(c, http.StatusBadGateway, "SEND_FAILED", sendErr.Error())
	case errors.Is(err, loop.ErrStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.ServiceUnavailable(c, "console is shutting down")
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("chat console request failed")
		response.InternalError(c, "internal error")
	}
}

// GetStatus returns the connection snapshot.
func (h *Handler) GetStatus(c *gin.Context) {
	var status chat.Status
	if err := h.do(c.Request.Context(), func() error {
		status = h.console.Status()
		return nil
	}); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, status)
}

// Connect starts the session channel. The outcome arrives asynchronously;
// poll status.
func (h *Handler) Connect(c *gin.Context) {
	session, err := h.sessions.Session()
	if err != nil {
		writeError(c, err)
		return
	}
	var status chat.Status
	if err := h.do(c.Request.Context(), func() error {
		if err := h.console.Start(session); err != nil {
			return err
		}
		status = h.console.Status()
		return nil
	}); err != nil {
		writeError(c, err)
		return
	}
	response.Accepted(c, status)
}

func (h *Handler) Disconnect(c *gin.Context) {
	var status chat.Status
	if err := h.do(c.Request.Context(), func() error {
		h.console.Close()
		status = h.console.Status()
		return nil
	}); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, status)
}

func (h *Handler) ListOnline(c *gin.Context) {
	var online []string
	if err := h.do(c.Request.Context(), func() error {
		online = h.console.Presence.Online()
		return nil
	}); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"online": online})
}

func (h *Handler) GetPresence(c *gin.Context) {
	userID := c.Param("userId")
	resp := PresenceResponse{UserID: userID}
	if err := h.do(c.Request.Context(), func() error {
		resp.Online = h.console.Presence.IsOnline(userID)
		if seen, ok := h.console.Presence.LastSeen(userID); ok {
			resp.LastSeen = &seen
		}
		return nil
	}); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}

// SetActiveConversation moves the notification suppression pointer without
// joining the conversation.
func (h *Handler) SetActiveConversation(c *gin.Context) {
	var req ActiveConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.do(c.Request.Context(), func() error {
		h.console.Active.Set(req.ConversationID)
		return nil
	}); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"active_conversation": req.ConversationID})
}

func (h *Handler) ClearActiveConversation(c *gin.Context) {
	if err := h.do(c.Request.Context(), func() error {
		h.console.Active.Clear()
		return nil
	}); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"active_conversation": nil})
}

func (h *Handler) ListPending(c *gin.Context) {
	var pending []domain.PendingSend
	if err := h.do(c.Request.Context(), func() error {
		pending = h.console.Relay.Pending()
		return nil
	}); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"pending": pending})
}

func (h *Handler) ListOutcomes(c *gin.Context) {
	var outcomes []chat.Outcome
	if err := h.do(c.Request.Context(), func() error {
		outcomes = h.console.Outcomes.Recent()
		return nil
	}); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"outcomes": outcomes})
}

func (h *Handler) GetTyping(c *gin.Context) {
	conversationID := c.Param("id")
	var typists []chat.Typist
	if err := h.do(c.Request.Context(), func() error {
		typists = h.console.Typing.Typists(conversationID)
		return nil
	}); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"conversation_id": conversationID, "typing": typists})
}

func (h *Handler) SendTyping(c *gin.Context) {
	var req TypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	conversationID := c.Param("id")
	if err := h.do(c.Request.Context(), func() error {
		return h.console.Relay.SendTyping(conversationID, req.IsTyping)
	}); err != nil {
		writeError(c, err)
		return
	}
	response.Accepted(c, gin.H{"conversation_id": conversationID, "is_typing": req.IsTyping})
}

// SendMessage emits an optimistic send and returns its tempId. The server
// confirmation shows up in outcomes.
func (h *Handler) SendMessage(c *gin.Context) {
	conversationID := c.Param("id")
	ctx := log.WithConversation(c.Request.Context(), conversationID)
	l := log.Ctx(ctx)

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind send message request")
		response.BadRequest(c, err.Error())
		return
	}

	var tempID string
	if err := h.do(ctx, func() error {
		var err error
		tempID, err = h.console.Relay.SendMessage(conversationID, req.Content, req.Type, req.Attachment)
		return err
	}); err != nil {
		writeError(c, err)
		return
	}

	l.Debug().Str(log.FieldTempID, tempID).Msg("message queued")
	response.Accepted(c, SendMessageResponse{TempID: tempID, ConversationID: conversationID})
}

func (h *Handler) Join(c *gin.Context) {
	conversationID := c.Param("id")
	if err := h.do(c.Request.Context(), func() error {
		if err := h.console.Relay.Join(conversationID); err != nil {
			return err
		}
		h.audit(audit.ActionJoin, conversationID, "joined conversation")
		return nil
	}); err != nil {
		writeError(c, err)
		return
	}
	response.Accepted(c, gin.H{"conversation_id": conversationID})
}

func (h *Handler) Leave(c *gin.Context) {
	conversationID := c.Param("id")
	if err := h.do(c.Request.Context(), func() error {
		if err := h.console.Relay.Leave(conversationID); err != nil {
			return err
		}
		h.audit(audit.ActionLeave, conversationID, "left conversation")
		return nil
	}); err != nil {
		writeError(c, err)
		return
	}
	response.Accepted(c, gin.H{"conversation_id": conversationID})
}

func (h *Handler) MarkAsRead(c *gin.Context) {
	var req MarkAsReadRequest
	// body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	conversationID := c.Param("id")
	if err := h.do(c.Request.Context(), func() error {
		return h.console.Relay.MarkAsRead(conversationID, req.MessageID)
	}); err != nil {
		writeError(c, err)
		return
	}
	response.Accepted(c, gin.H{"conversation_id": conversationID})
}
