package chat

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
	"github.com/weiawesome/marketplace-admin-chat/pkg/log"
)

// Presence tracks which counterparties are connected to the backend.
// The set is disposable: it is rebuilt from events after every reconnect.
type Presence struct {
	online   map[string]struct{}
	lastSeen map[string]time.Time
	log      zerolog.Logger
}

// NewPresence creates an empty tracker.
func NewPresence(logger zerolog.Logger) *Presence {
	return &Presence{
		online:   make(map[string]struct{}),
		lastSeen: make(map[string]time.Time),
		log:      logger,
	}
}

// OnStatusChange applies a user_status_changed event.
func (p *Presence) OnStatusChange(ev domain.UserStatusPayload) {
	if ev.UserID == "" {
		return
	}
	if ev.LastSeen != nil {
		p.lastSeen[ev.UserID] = *ev.LastSeen
	}

	_, was := p.online[ev.UserID]
	switch {
	case ev.IsOnline && !was:
		p.online[ev.UserID] = struct{}{}
	case !ev.IsOnline && was:
		delete(p.online, ev.UserID)
	default:
		return
	}

	p.log.Debug().Str(log.FieldUserID, ev.UserID).Bool("online", ev.IsOnline).Msg("presence changed")
}

func (p *Presence) IsOnline(userID string) bool {
	_, ok := p.online[userID]
	return ok
}

// Online returns the online user ids in sorted order.
func (p *Presence) Online() []string {
	ids := make([]string, 0, len(p.online))
	for id := range p.online {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LastSeen returns the last-seen time reported for userID, if any.
func (p *Presence) LastSeen(userID string) (time.Time, bool) {
	t, ok := p.lastSeen[userID]
	return t, ok
}

// Clear forgets everything.
func (p *Presence) Clear() {
	p.online = make(map[string]struct{})
	p.lastSeen = make(map[string]time.Time)
}

// OnStateChange clears the set when entering or leaving Connected.
func (p *Presence) OnStateChange(prev, next domain.ConnectionState) {
	if prev == domain.StateConnected || next == domain.StateConnected {
		p.Clear()
	}
}
