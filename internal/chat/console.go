package chat

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
	"github.com/weiawesome/marketplace-admin-chat/internal/idgen"
	"github.com/weiawesome/marketplace-admin-chat/internal/loop"
	"github.com/weiawesome/marketplace-admin-chat/internal/timer"
	"github.com/weiawesome/marketplace-admin-chat/internal/transport"
	"github.com/weiawesome/marketplace-admin-chat/pkg/log"
)

// Deps are the collaborators a Console is built from.
type Deps struct {
	Dialer      transport.Dialer
	Exec        loop.Executor
	Clock       timer.Clock
	IDs         TempIDSource
	Cache       Invalidator
	Alerter     Alerter
	Logger      zerolog.Logger
	TokenCheck  func(token string) error
	Listeners   []StateListener
	Observers   []RelayObserver
	OutcomeSize int
}

// Console is the chat state of one authenticated session. Everything in it
// belongs to the event loop.
type Console struct {
	Timers   *timer.Registry
	Router   *Router
	Manager  *Manager
	Active   *ActiveConversation
	Presence *Presence
	Typing   *Typing
	Relay    *Relay
	Bridge   *Bridge
	Notifier *Notifier
	Banner   *Banner
	Outcomes *Outcomes
}

// NewConsole wires the components and registers one handler per event kind.
func NewConsole(cfg Config, deps Deps) (*Console, error) {
	cfg = cfg.withDefaults()
	clock := deps.Clock
	if clock == nil {
		clock = timer.RealClock()
	}
	logger := deps.Logger
	if deps.Cache == nil {
		deps.Cache = nopInvalidator{}
	}
	if deps.IDs == nil {
		deps.IDs = idgen.NewUUIDGenerator()
	}
	if deps.Alerter == nil {
		deps.Alerter = nopAlerter{}
	}

	c := &Console{
		Timers: timer.NewRegistry(clock, deps.Exec.Post),
		Router: NewRouter(component(logger, "router")),
		Active: &ActiveConversation{},
	}
	c.Manager = NewManager(cfg, deps.Dialer, deps.Exec, c.Timers, c.Router,
		component(logger, "connection"))
	c.Manager.SetTokenCheck(deps.TokenCheck)

	self := c.Manager.SessionUserID
	c.Bridge = NewBridge(deps.Cache, component(logger, "cache_bridge"))
	c.Presence = NewPresence(component(logger, "presence"))
	c.Typing = NewTyping(c.Timers, cfg.TypingTTL, self, component(logger, "typing"))
	c.Relay = NewRelay(c.Manager, deps.IDs, c.Active, clock.Now, component(logger, "relay"))
	c.Notifier = NewNotifier(deps.Alerter, c.Active, self, component(logger, "notifier"))
	c.Banner = NewBanner(clock.Now)
	c.Outcomes = NewOutcomes(deps.OutcomeSize, clock.Now)

	c.Manager.SetSurface(c.Banner)
	c.Manager.AddStateListener(c.Presence)
	c.Manager.AddStateListener(c.Typing)
	c.Manager.AddStateListener(c.Relay)
	c.Manager.AddStateListener(c.Banner)
	for _, l := range deps.Listeners {
		c.Manager.AddStateListener(l)
	}

	c.Relay.AddObserver(c.Outcomes)
	for _, o := range deps.Observers {
		c.Relay.AddObserver(o)
	}

	if err := c.routes(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Console) routes() error {
	routes := map[string]EventHandler{
		domain.EventNewMessage: On(func(ev domain.NewMessagePayload) {
			c.Bridge.Apply(domain.EventNewMessage, messageConversation(ev))
			c.Notifier.HandleNewMessage(ev)
		}),
		domain.EventMessageSent:       On(c.Relay.HandleMessageSent),
		domain.EventMessageError:      On(c.Relay.HandleMessageError),
		domain.EventUserTyping:        On(c.Typing.OnTypingEvent),
		domain.EventUserStatusChanged: On(func(ev domain.UserStatusPayload) {
			c.Presence.OnStatusChange(ev)
			c.Bridge.Apply(domain.EventUserStatusChanged, "")
		}),
		domain.EventMessagesRead: On(func(ev domain.MessagesReadPayload) {
			c.Bridge.Apply(domain.EventMessagesRead, ev.ConversationID)
		}),
		domain.EventJoinedConversation: On(c.Relay.HandleJoined),
		domain.EventLeftConversation:   On(c.Relay.HandleLeft),
		domain.EventJoinError:          On(c.Relay.HandleJoinError),
		domain.EventConversationAssigned: On(func(ev domain.ConversationAssignedPayload) {
			c.Bridge.Apply(domain.EventConversationAssigned, ev.ConversationID)
		}),
		domain.EventPriorityChanged: On(func(ev domain.PriorityChangedPayload) {
			c.Bridge.Apply(domain.EventPriorityChanged, ev.ConversationID)
		}),
	}
	for eventType, h := range routes {
		if err := c.Router.Handle(eventType, h); err != nil {
			return err
		}
	}
	return nil
}

// Start connects the session.
func (c *Console) Start(session domain.Session) error {
	return c.Manager.Connect(session)
}

// Close ends the session: channel closed, timers canceled, trackers empty.
func (c *Console) Close() {
	c.Manager.Disconnect()
	c.Presence.Clear()
	c.Typing.Clear()
	c.Active.Clear()
}

// Restart reconnects with a refreshed session, keeping the active
// conversation so it is re-joined.
func (c *Console) Restart(session domain.Session) error {
	active := c.Active.Get()
	c.Manager.Disconnect()
	c.Active.Set(active)
	return c.Manager.Connect(session)
}

// Status is a point-in-time view of the console.
type Status struct {
	State     string            `json:"state"`
	UserID    string            `json:"user_id,omitempty"`
	Retry     domain.RetryState `json:"retry"`
	Active    string            `json:"active_conversation,omitempty"`
	Online    int               `json:"online"`
	Pending   int               `json:"pending"`
	Banner    BannerState       `json:"banner"`
	Timers    int               `json:"timers"`
	CheckedAt time.Time         `json:"checked_at"`
}

func (c *Console) Status() Status {
	return Status{
		State:     c.Manager.State().String(),
		UserID:    c.Manager.SessionUserID(),
		Retry:     c.Manager.Retry(),
		Active:    c.Active.Get(),
		Online:    len(c.Presence.Online()),
		Pending:   len(c.Relay.Pending()),
		Banner:    c.Banner.State(),
		Timers:    c.Timers.Len(),
		CheckedAt: c.Timers.Now(),
	}
}

func component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str(log.FieldComponent, name).Logger()
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(domain.CacheKey) {}

type nopAlerter struct{}

func (nopAlerter) Alert(domain.Alert) {}
