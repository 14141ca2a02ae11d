package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
)

type nopSink struct {
	keys   int
	alerts int
}

func (n *nopSink) Invalidate(domain.CacheKey) { n.keys++ }
func (n *nopSink) Alert(domain.Alert)         { n.alerts++ }

func TestStateGauge(t *testing.T) {
	m := New("chat")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("disconnected")))

	m.OnStateChange(domain.StateDisconnected, domain.StateConnecting)
	m.OnStateChange(domain.StateConnecting, domain.StateRetrying)
	m.OnStateChange(domain.StateRetrying, domain.StateConnecting)
	m.OnStateChange(domain.StateConnecting, domain.StateConnected)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("retrying")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconnects))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("connecting")))
}

func TestRelayCounters(t *testing.T) {
	m := New("chat")
	m.MessageSent(domain.PendingSend{}, "m1", testTime)
	m.MessageFailed(&domain.SendError{Reason: "too long"})
	m.MessageFailed(&domain.SendError{Err: domain.ErrSendAborted})
	m.JoinFailed(&domain.JoinError{})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sends.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sends.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sends.WithLabelValues("aborted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.joinFailures))
}

func TestWrappersCountAndForward(t *testing.T) {
	m := New("chat")
	sink := &nopSink{}

	m.Invalidations(sink).Invalidate(domain.ConversationListKey())
	m.Alerts(sink).Alert(domain.Alert{})

	assert.Equal(t, 1, sink.keys)
	assert.Equal(t, 1, sink.alerts)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invalidations.WithLabelValues("conversations:list")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alerts))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New("chat")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `chat_connection_state{state="disconnected"} 1`)
}

var testTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
