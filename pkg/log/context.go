package log

import (
	"context"

	"github.com/rs/zerolog"
)

type loggerKey struct{}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Ctx returns the request-scoped logger, falling back to the global one.
func Ctx(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}

// WithConversation tags the context logger with a conversation id.
func WithConversation(ctx context.Context, conversationID string) context.Context {
	if conversationID == "" {
		return ctx
	}
	l := Ctx(ctx).With().Str(FieldConversationID, conversationID).Logger()
	return WithLogger(ctx, l)
}
