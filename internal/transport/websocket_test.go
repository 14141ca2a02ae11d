package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
)

type recordingHandler struct {
	events chan *domain.Envelope
	closed chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		events: make(chan *domain.Envelope, 16),
		closed: make(chan error, 1),
	}
}

func (h *recordingHandler) HandleEvent(env *domain.Envelope) { h.events <- env }
func (h *recordingHandler) HandleClose(err error)            { h.closed <- err }

// chatServer accepts one connection, checks the handshake and hands the
// socket to script.
func chatServer(t *testing.T, reply *domain.Envelope, script func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var hello domain.Envelope
		if err := conn.ReadJSON(&hello); err != nil {
			return
		}
		var hs domain.HandshakePayload
		if hello.Type != domain.CmdHandshake || hello.Decode(&hs) != nil || hs.UserType != domain.UserTypeAdmin {
			conn.WriteJSON(&domain.Envelope{Type: domain.EventConnectError})
			return
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
		if script != nil {
			script(conn)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testDialer(url string) *WSDialer {
	return NewWSDialer(Config{URL: url, HandshakeTimeout: 2 * time.Second}, zerolog.Nop())
}

func mustEnvelope(t *testing.T, eventType string, payload interface{}) *domain.Envelope {
	t.Helper()
	env, err := domain.NewEnvelope(eventType, payload)
	require.NoError(t, err)
	return env
}

func TestDialDeliversEventsAndCommands(t *testing.T) {
	commands := make(chan domain.Envelope, 1)
	url := chatServer(t, &domain.Envelope{Type: domain.EventConnect}, func(conn *websocket.Conn) {
		conn.WriteJSON(mustEnvelope(t, domain.EventUserStatusChanged, domain.UserStatusPayload{UserID: "u1", IsOnline: true}))
		var cmd domain.Envelope
		if err := conn.ReadJSON(&cmd); err == nil {
			commands <- cmd
		}
		// Keep the socket open until the client hangs up.
		conn.ReadMessage()
	})

	ch, err := testDialer(url).Dial(context.Background(), domain.HandshakePayload{Token: "tok", UserType: domain.UserTypeAdmin})
	require.NoError(t, err)

	h := newRecordingHandler()
	ch.Start(h)

	select {
	case env := <-h.events:
		assert.Equal(t, domain.EventUserStatusChanged, env.Type)
		var p domain.UserStatusPayload
		require.NoError(t, env.Decode(&p))
		assert.Equal(t, "u1", p.UserID)
		assert.True(t, p.IsOnline)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}

	require.NoError(t, ch.Emit(domain.CmdJoinConversation, domain.ConversationPayload{ConversationID: "c1"}))
	select {
	case cmd := <-commands:
		assert.Equal(t, domain.CmdJoinConversation, cmd.Type)
		assert.JSONEq(t, `{"conversationId":"c1"}`, string(cmd.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("command not received by server")
	}

	require.NoError(t, ch.Close())
	select {
	case err := <-h.closed:
		assert.NoError(t, err, "local close must not report an error")
	case <-time.After(2 * time.Second):
		t.Fatal("close not reported")
	}
	assert.ErrorIs(t, ch.Emit(domain.CmdMarkAsRead, nil), domain.ErrNotConnected)
}

func TestDialAuthRejected(t *testing.T) {
	url := chatServer(t, mustEnvelope(t, domain.EventConnectError, domain.ConnectErrorPayload{
		Message: "invalid token",
		Code:    domain.ErrCodeUnauthorized,
	}), nil)

	_, err := testDialer(url).Dial(context.Background(), domain.HandshakePayload{Token: "bad", UserType: domain.UserTypeAdmin})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuthRejected)
	assert.NotErrorIs(t, err, domain.ErrTransport)
}

func TestDialConnectErrorIsTransportFailure(t *testing.T) {
	url := chatServer(t, mustEnvelope(t, domain.EventConnectError, domain.ConnectErrorPayload{Message: "overloaded"}), nil)

	_, err := testDialer(url).Dial(context.Background(), domain.HandshakePayload{Token: "tok", UserType: domain.UserTypeAdmin})
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestDialUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	_, err := testDialer(url).Dial(context.Background(), domain.HandshakePayload{Token: "tok", UserType: domain.UserTypeAdmin})
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestServerDropReportsTransportFailure(t *testing.T) {
	url := chatServer(t, &domain.Envelope{Type: domain.EventConnect}, func(conn *websocket.Conn) {
		conn.WriteJSON(&domain.Envelope{Type: domain.EventDisconnect})
	})

	ch, err := testDialer(url).Dial(context.Background(), domain.HandshakePayload{Token: "tok", UserType: domain.UserTypeAdmin})
	require.NoError(t, err)

	h := newRecordingHandler()
	ch.Start(h)

	select {
	case err := <-h.closed:
		assert.ErrorIs(t, err, domain.ErrTransport)
	case <-time.After(2 * time.Second):
		t.Fatal("drop not reported")
	}
}
