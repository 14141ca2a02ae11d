package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
	"github.com/weiawesome/marketplace-admin-chat/internal/loop"
	"github.com/weiawesome/marketplace-admin-chat/internal/timer"
	"github.com/weiawesome/marketplace-admin-chat/internal/transport"
	"github.com/weiawesome/marketplace-admin-chat/pkg/log"
)

const connectionScope = "connection"

var reconnectKey = timer.Key{Scope: connectionScope, ID: "reconnect"}

// StateListener observes connection state transitions. It is called on the
// event loop after the new state is in effect.
type StateListener interface {
	OnStateChange(prev, next domain.ConnectionState)
}

// StateListenerFunc adapts a function to StateListener.
type StateListenerFunc func(prev, next domain.ConnectionState)

func (f StateListenerFunc) OnStateChange(prev, next domain.ConnectionState) {
	f(prev, next)
}

// Surface shows connection errors to the operator.
type Surface interface {
	ConnectionError(err error, terminal bool)
}

// Backoff returns min(base * 2^attempt, max).
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Manager owns the lifecycle of one channel for one session. All methods
// must be called on the event loop.
type Manager struct {
	cfg        Config
	dialer     transport.Dialer
	exec       loop.Executor
	timers     *timer.Registry
	router     *Router
	surface    Surface
	tokenCheck func(token string) error
	log        zerolog.Logger

	state      domain.ConnectionState
	retry      domain.RetryState
	session    domain.Session
	channel    transport.Channel
	gen        uint64
	dialCancel context.CancelFunc
	lastErr    error
	listeners  []StateListener
}

// NewManager creates a disconnected manager. Inbound frames of every channel
// it opens are handed to router.
func NewManager(
	cfg Config,
	dialer transport.Dialer,
	exec loop.Executor,
	timers *timer.Registry,
	router *Router,
	logger zerolog.Logger,
) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:    cfg,
		dialer: dialer,
		exec:   exec,
		timers: timers,
		router: router,
		log:    logger,
		state:  domain.StateDisconnected,
		retry:  domain.RetryState{MaxAttempts: cfg.MaxAttempts},
	}
}

// SetSurface sets where user-visible connection errors go.
func (m *Manager) SetSurface(s Surface) {
	m.surface = s
}

// SetTokenCheck installs an extra token validation run by Connect.
func (m *Manager) SetTokenCheck(fn func(token string) error) {
	m.tokenCheck = fn
}

// AddStateListener subscribes l to state transitions.
func (m *Manager) AddStateListener(l StateListener) {
	m.listeners = append(m.listeners, l)
}

func (m *Manager) State() domain.ConnectionState {
	return m.state
}

func (m *Manager) Retry() domain.RetryState {
	return m.retry
}

// LastError returns the most recent connection failure, or nil.
func (m *Manager) LastError() error {
	return m.lastErr
}

// SessionUserID returns the user the current session belongs to.
func (m *Manager) SessionUserID() string {
	return m.session.UserID
}

// Connect opens a channel for session. It is a no-op while a channel is up
// or being dialed. From Retrying it dials immediately, from Failed it starts
// a fresh retry cycle.
func (m *Manager) Connect(session domain.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	if m.tokenCheck != nil {
		if err := m.tokenCheck(session.Token); err != nil {
			return err
		}
	}

	switch m.state {
	case domain.StateConnected, domain.StateConnecting:
		return nil
	case domain.StateRetrying:
		m.timers.Cancel(reconnectKey)
	case domain.StateFailed, domain.StateDisconnected:
		m.resetRetry()
	}

	m.session = session
	m.lastErr = nil
	m.dial()
	return nil
}

// Disconnect tears the channel down without entering the retry path.
func (m *Manager) Disconnect() {
	m.gen++
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	m.timers.CancelAll()

	if m.channel != nil {
		if err := m.channel.Close(); err != nil {
			m.log.Debug().Err(err).Msg("channel close returned error")
		}
		m.channel = nil
	}
	m.resetRetry()
	m.setState(domain.StateDisconnected)
}

// Emit sends a command on the live channel.
func (m *Manager) Emit(eventType string, payload interface{}) error {
	if m.state != domain.StateConnected || m.channel == nil {
		return domain.ErrNotConnected
	}
	return m.channel.Emit(eventType, payload)
}

func (m *Manager) dial() {
	m.gen++
	gen := m.gen
	ctx, cancel := context.WithCancel(context.Background())
	m.dialCancel = cancel
	m.setState(domain.StateConnecting)

	hs := domain.HandshakePayload{Token: m.session.Token, UserType: domain.UserTypeAdmin}
	m.exec.Go(func() {
		ch, err := m.dialer.Dial(ctx, hs)
		m.exec.Post(func() { m.onDialResult(gen, ch, err) })
	})
}

func (m *Manager) onDialResult(gen uint64, ch transport.Channel, err error) {
	if gen != m.gen {
		if ch != nil {
			_ = ch.Close()
		}
		return
	}
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	if err != nil {
		m.handleFailure(err)
		return
	}

	m.channel = ch
	m.lastErr = nil
	m.resetRetry()
	m.timers.CancelScope(connectionScope)
	m.setState(domain.StateConnected)

	// Start after listeners ran so nothing is delivered to a tracker that
	// has not reset for the new connection.
	ch.Start(&channelHandler{m: m, gen: gen})
}

func (m *Manager) onChannelClosed(gen uint64, err error) {
	if gen != m.gen {
		return
	}
	m.channel = nil
	if err == nil {
		err = domain.ErrTransport
	}
	m.log.Warn().Err(err).Msg("chat channel dropped")
	m.handleFailure(err)
}

func (m *Manager) handleFailure(err error) {
	m.lastErr = err
	m.log.Debug().Err(err).Int(log.FieldAttempt, m.retry.Attempt).Msg("chat connection attempt failed")

	if errors.Is(err, domain.ErrAuthRejected) && m.cfg.StopOnAuthRejected {
		m.fail(err)
		return
	}
	if m.retry.Exhausted() {
		m.fail(fmt.Errorf("%w: %v", domain.ErrRetryExhausted, err))
		return
	}
	m.surfaceError(err, false)
	m.retryConnection()
}

// retryConnection arms the next reconnect, or fails once attempts are used up.
func (m *Manager) retryConnection() {
	if m.retry.Exhausted() {
		m.fail(domain.ErrRetryExhausted)
		return
	}

	delay := Backoff(m.retry.Attempt, m.cfg.BaseDelay, m.cfg.MaxDelay)
	m.retry.Attempt++
	m.retry.LastDelay = delay
	m.setState(domain.StateRetrying)

	m.log.Info().
		Int(log.FieldAttempt, m.retry.Attempt).
		Int64(log.FieldDelay, delay.Milliseconds()).
		Msg("scheduling chat reconnect")
	m.timers.Schedule(reconnectKey, delay, m.reconnect)
}

func (m *Manager) reconnect() {
	if m.state != domain.StateRetrying {
		return
	}
	m.dial()
}

func (m *Manager) fail(err error) {
	m.lastErr = err
	m.timers.CancelScope(connectionScope)
	m.setState(domain.StateFailed)
	m.log.Error().Err(err).Int(log.FieldAttempt, m.retry.Attempt).Msg("chat connection failed")
	m.surfaceError(err, true)
}

func (m *Manager) surfaceError(err error, terminal bool) {
	if m.cfg.Optional {
		m.log.Debug().Err(err).Bool("terminal", terminal).Msg("chat is optional, not surfacing error")
		return
	}
	if m.surface != nil {
		m.surface.ConnectionError(err, terminal)
	}
}

func (m *Manager) resetRetry() {
	m.retry = domain.RetryState{MaxAttempts: m.cfg.MaxAttempts}
}

func (m *Manager) setState(next domain.ConnectionState) {
	prev := m.state
	if prev == next {
		return
	}
	m.state = next
	m.log.Info().
		Str(log.FieldPrevState, prev.String()).
		Str(log.FieldState, next.String()).
		Msg("chat connection state changed")
	for _, l := range m.listeners {
		l.OnStateChange(prev, next)
	}
}

// channelHandler moves channel callbacks onto the loop and drops those from
// a channel that has since been replaced.
type channelHandler struct {
	m   *Manager
	gen uint64
}

func (h *channelHandler) HandleEvent(env *domain.Envelope) {
	h.m.exec.Post(func() {
		if h.gen != h.m.gen {
			return
		}
		h.m.router.Dispatch(env)
	})
}

func (h *channelHandler) HandleClose(err error) {
	h.m.exec.Post(func() { h.m.onChannelClosed(h.gen, err) })
}
