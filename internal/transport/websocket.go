package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
)

// Config tunes the websocket channel.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
	MaxMessageSize   int64
	SendBuffer       int
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 64 * 1024
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	return c
}

// WSDialer dials the messaging backend over a websocket.
type WSDialer struct {
	cfg    Config
	dialer *websocket.Dialer
	log    zerolog.Logger
}

// NewWSDialer creates a dialer for cfg.URL.
func NewWSDialer(cfg Config, logger zerolog.Logger) *WSDialer {
	cfg = cfg.withDefaults()
	return &WSDialer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		log: logger,
	}
}

// Dial connects, presents the handshake and waits for connect or connect_error.
func (d *WSDialer) Dial(ctx context.Context, hs domain.HandshakePayload) (Channel, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.HandshakeTimeout)
	defer cancel()

	conn, resp, err := d.dialer.DialContext(ctx, d.cfg.URL, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: upgrade refused with %s", domain.ErrAuthRejected, resp.Status)
		}
		return nil, fmt.Errorf("%w: dial: %v", domain.ErrTransport, err)
	}

	if err := d.handshake(ctx, conn, hs); err != nil {
		conn.Close()
		return nil, err
	}

	return newWSChannel(conn, d.cfg, d.log), nil
}

func (d *WSDialer) handshake(ctx context.Context, conn *websocket.Conn, hs domain.HandshakePayload) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(d.cfg.HandshakeTimeout)
	}

	env, err := domain.NewEnvelope(domain.CmdHandshake, hs)
	if err != nil {
		return fmt.Errorf("encode handshake: %w", err)
	}
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("%w: send handshake: %v", domain.ErrTransport, err)
	}

	// Unblock the read if the caller gives up before the deadline.
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	conn.SetReadDeadline(deadline)
	var reply domain.Envelope
	if err := conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("%w: await handshake reply: %v", domain.ErrTransport, err)
	}
	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	switch reply.Type {
	case domain.EventConnect:
		return nil
	case domain.EventConnectError:
		var p domain.ConnectErrorPayload
		if err := reply.Decode(&p); err != nil {
			return fmt.Errorf("%w: malformed connect_error: %v", domain.ErrTransport, err)
		}
		if p.Code == domain.ErrCodeUnauthorized {
			return fmt.Errorf("%w: %s", domain.ErrAuthRejected, p.Message)
		}
		return fmt.Errorf("%w: connect_error: %s", domain.ErrTransport, p.Message)
	default:
		return fmt.Errorf("%w: unexpected handshake reply %q", domain.ErrTransport, reply.Type)
	}
}

// wsChannel pumps frames between a websocket and a Handler.
type wsChannel struct {
	conn *websocket.Conn
	cfg  Config
	log  zerolog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	startOnce sync.Once

	mu          sync.Mutex
	localClose  bool
	handler     Handler
	notifyClose sync.Once
}

func newWSChannel(conn *websocket.Conn, cfg Config, logger zerolog.Logger) *wsChannel {
	return &wsChannel{
		conn: conn,
		cfg:  cfg,
		log:  logger,
		send: make(chan []byte, cfg.SendBuffer),
		done: make(chan struct{}),
	}
}

func (c *wsChannel) Start(h Handler) {
	c.startOnce.Do(func() {
		c.mu.Lock()
		c.handler = h
		c.mu.Unlock()
		go c.writePump()
		go c.readPump()
	})
}

func (c *wsChannel) Emit(eventType string, payload interface{}) error {
	env, err := domain.NewEnvelope(eventType, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}

	select {
	case <-c.done:
		return domain.ErrNotConnected
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return domain.ErrNotConnected
	default:
		return fmt.Errorf("%w: send buffer full", domain.ErrTransport)
	}
}

func (c *wsChannel) Close() error {
	c.mu.Lock()
	c.localClose = true
	c.mu.Unlock()
	c.shutdown()
	return nil
}

func (c *wsChannel) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.cfg.WriteWait),
		)
		c.conn.Close()
	})
}

func (c *wsChannel) finish(err error) {
	c.shutdown()

	c.mu.Lock()
	h := c.handler
	if c.localClose {
		err = nil
	}
	c.mu.Unlock()

	if h == nil {
		return
	}
	c.notifyClose.Do(func() { h.HandleClose(err) })
}

func (c *wsChannel) readPump() {
	var closeErr error
	defer func() { c.finish(closeErr) }()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			closeErr = classifyReadError(err)
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))

		var env domain.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Type == "" {
			c.log.Warn().Err(err).Int("bytes", len(message)).Msg("dropping malformed frame")
			continue
		}

		if env.Type == domain.EventDisconnect {
			closeErr = fmt.Errorf("%w: server closed the session", domain.ErrTransport)
			return
		}

		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()
		h.HandleEvent(&env)
	}
}

func (c *wsChannel) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func classifyReadError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Code == websocket.ClosePolicyViolation && ce.Text == domain.ErrCodeUnauthorized {
			return fmt.Errorf("%w: %s", domain.ErrAuthRejected, ce.Text)
		}
		return fmt.Errorf("%w: closed with code %d", domain.ErrTransport, ce.Code)
	}
	return fmt.Errorf("%w: %v", domain.ErrTransport, err)
}
