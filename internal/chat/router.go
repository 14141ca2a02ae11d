package chat

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
	"github.com/weiawesome/marketplace-admin-chat/pkg/log"
)

// EventHandler consumes one inbound frame.
type EventHandler func(env *domain.Envelope) error

// On adapts a typed payload callback into an EventHandler.
func On[T any](fn func(T)) EventHandler {
	return func(env *domain.Envelope) error {
		var payload T
		if err := env.Decode(&payload); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		fn(payload)
		return nil
	}
}

// Router dispatches inbound frames by event type. Each type has at most
// one handler; components that share an event are composed by the caller.
type Router struct {
	handlers map[string]EventHandler
	log      zerolog.Logger
}

func NewRouter(logger zerolog.Logger) *Router {
	return &Router{
		handlers: make(map[string]EventHandler),
		log:      logger,
	}
}

// Handle registers h for eventType.
func (r *Router) Handle(eventType string, h EventHandler) error {
	if h == nil {
		return fmt.Errorf("nil handler for %s", eventType)
	}
	if _, exists := r.handlers[eventType]; exists {
		return fmt.Errorf("handler for %s already registered", eventType)
	}
	r.handlers[eventType] = h
	return nil
}

// Dispatch runs the handler registered for env.Type. Unknown types are
// dropped.
func (r *Router) Dispatch(env *domain.Envelope) {
	h, ok := r.handlers[env.Type]
	if !ok {
		r.log.Debug().Str(log.FieldEvent, env.Type).Msg("no handler for event")
		return
	}
	if err := h(env); err != nil {
		r.log.Warn().Err(err).Str(log.FieldEvent, env.Type).Msg("failed to handle event")
	}
}

// Registered reports whether eventType has a handler.
func (r *Router) Registered(eventType string) bool {
	_, ok := r.handlers[eventType]
	return ok
}
