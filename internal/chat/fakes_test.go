package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
	"github.com/weiawesome/marketplace-admin-chat/internal/loop"
	"github.com/weiawesome/marketplace-admin-chat/internal/timer"
	"github.com/weiawesome/marketplace-admin-chat/internal/transport"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeChannel struct {
	handler transport.Handler
	emitted []*domain.Envelope
	closed  bool
	failOn  map[string]error
}

func (c *fakeChannel) Start(h transport.Handler) {
	c.handler = h
}

func (c *fakeChannel) Emit(eventType string, payload interface{}) error {
	if c.closed {
		return domain.ErrNotConnected
	}
	if err := c.failOn[eventType]; err != nil {
		return err
	}
	env, err := domain.NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	c.emitted = append(c.emitted, env)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func (c *fakeChannel) push(t *testing.T, eventType string, payload interface{}) {
	t.Helper()
	env, err := domain.NewEnvelope(eventType, payload)
	require.NoError(t, err)
	c.handler.HandleEvent(env)
}

func (c *fakeChannel) drop(err error) {
	c.handler.HandleClose(err)
}

func (c *fakeChannel) types() []string {
	out := make([]string, 0, len(c.emitted))
	for _, env := range c.emitted {
		out = append(out, env.Type)
	}
	return out
}

// fakeDialer fails with the queued errors in order, then succeeds.
type fakeDialer struct {
	failures   []error
	handshakes []domain.HandshakePayload
	channels   []*fakeChannel
}

func (d *fakeDialer) Dial(_ context.Context, hs domain.HandshakePayload) (transport.Channel, error) {
	d.handshakes = append(d.handshakes, hs)
	if len(d.failures) > 0 {
		err := d.failures[0]
		d.failures = d.failures[1:]
		if err != nil {
			return nil, err
		}
	}
	ch := &fakeChannel{}
	d.channels = append(d.channels, ch)
	return ch, nil
}

func (d *fakeDialer) last() *fakeChannel {
	return d.channels[len(d.channels)-1]
}

func failures(n int, err error) []error {
	out := make([]error, n)
	for i := range out {
		out[i] = err
	}
	return out
}

type recordingSurface struct {
	errs     []error
	terminal []bool
}

func (s *recordingSurface) ConnectionError(err error, terminal bool) {
	s.errs = append(s.errs, err)
	s.terminal = append(s.terminal, terminal)
}

type recordingCache struct {
	keys []domain.CacheKey
}

func (c *recordingCache) Invalidate(key domain.CacheKey) {
	c.keys = append(c.keys, key)
}

func (c *recordingCache) strings() []string {
	out := make([]string, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, k.String())
	}
	return out
}

type recordingAlerter struct {
	alerts []domain.Alert
}

func (a *recordingAlerter) Alert(al domain.Alert) {
	a.alerts = append(a.alerts, al)
}

type recordingObserver struct {
	sent       []string
	failed     []*domain.SendError
	joinFailed []*domain.JoinError
}

func (o *recordingObserver) MessageSent(send domain.PendingSend, messageID string, _ time.Time) {
	o.sent = append(o.sent, send.TempID+"->"+messageID)
}

func (o *recordingObserver) MessageFailed(err *domain.SendError) {
	o.failed = append(o.failed, err)
}

func (o *recordingObserver) JoinFailed(err *domain.JoinError) {
	o.joinFailed = append(o.joinFailed, err)
}

type seqIDs struct {
	n int
}

func (s *seqIDs) Generate() (string, error) {
	s.n++
	return fmt.Sprintf("t%d", s.n), nil
}

type harness struct {
	console  *Console
	clock    *timer.FakeClock
	dialer   *fakeDialer
	cache    *recordingCache
	alerter  *recordingAlerter
	observer *recordingObserver
}

var adminSession = domain.Session{UserID: "admin-1", Token: "tok", Role: "support"}

func newHarness(t *testing.T, cfg Config, dialer *fakeDialer) *harness {
	t.Helper()
	if dialer == nil {
		dialer = &fakeDialer{}
	}
	h := &harness{
		clock:    timer.NewFakeClock(epoch),
		dialer:   dialer,
		cache:    &recordingCache{},
		alerter:  &recordingAlerter{},
		observer: &recordingObserver{},
	}
	c, err := NewConsole(cfg, Deps{
		Dialer:    dialer,
		Exec:      loop.Inline{},
		Clock:     h.clock,
		IDs:       &seqIDs{},
		Cache:     h.cache,
		Alerter:   h.alerter,
		Logger:    zerolog.Nop(),
		Observers: []RelayObserver{h.observer},
	})
	require.NoError(t, err)
	h.console = c
	return h
}

func (h *harness) connect(t *testing.T) *fakeChannel {
	t.Helper()
	require.NoError(t, h.console.Start(adminSession))
	require.Equal(t, domain.StateConnected, h.console.Manager.State())
	return h.dialer.last()
}
