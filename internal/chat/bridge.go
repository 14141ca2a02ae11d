package chat

import (
	"github.com/rs/zerolog"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
	"github.com/weiawesome/marketplace-admin-chat/pkg/log"
)

// Invalidator marks cached read models stale. Implementations must not
// block and must tolerate repeated keys.
type Invalidator interface {
	Invalidate(key domain.CacheKey)
}

// KeysFor maps an event kind to the cache keys it makes stale. Kinds that
// change no read model map to nil.
func KeysFor(eventType, conversationID string) []domain.CacheKey {
	var keys []domain.CacheKey
	switch eventType {
	case domain.EventNewMessage, domain.EventMessagesRead:
		if conversationID != "" {
			keys = append(keys, domain.ConversationMessagesKey(conversationID))
		}
		keys = append(keys, domain.ConversationListKey())
	case domain.EventConversationAssigned, domain.EventPriorityChanged:
		if conversationID != "" {
			keys = append(keys, domain.ConversationKey(conversationID))
		}
		keys = append(keys, domain.ConversationListKey())
	case domain.EventUserStatusChanged:
		keys = append(keys, domain.ConversationListKey())
	}
	return keys
}

// Bridge forwards invalidations derived from channel events to the cache.
type Bridge struct {
	sink Invalidator
	log  zerolog.Logger
}

func NewBridge(sink Invalidator, logger zerolog.Logger) *Bridge {
	return &Bridge{sink: sink, log: logger}
}

// Apply invalidates every key KeysFor returns.
func (b *Bridge) Apply(eventType, conversationID string) {
	for _, key := range KeysFor(eventType, conversationID) {
		b.log.Debug().Str(log.FieldEvent, eventType).Str(log.FieldCacheKey, key.String()).Msg("invalidating cache key")
		b.sink.Invalidate(key)
	}
}
