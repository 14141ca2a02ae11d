// Package transport owns the duplex channel between the console and the
// messaging backend.
package transport

import (
	"context"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
)

// Handler receives inbound traffic once a channel is started.
type Handler interface {
	// HandleEvent is called for every inbound frame, in arrival order.
	HandleEvent(env *domain.Envelope)
	// HandleClose is called exactly once when the channel ends. err is nil
	// when the close was requested locally.
	HandleClose(err error)
}

// Channel is an authenticated duplex connection.
type Channel interface {
	// Start attaches h and begins delivering inbound frames.
	Start(h Handler)
	// Emit queues a command frame.
	Emit(eventType string, payload interface{}) error
	// Close shuts the channel down without reporting an error to the handler.
	Close() error
}

// Dialer opens a channel and completes the handshake. It blocks until the
// server accepts or refuses the credentials.
type Dialer interface {
	Dial(ctx context.Context, hs domain.HandshakePayload) (Channel, error)
}
