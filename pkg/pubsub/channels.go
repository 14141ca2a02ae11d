package pubsub

// Channel names shared with the query layer.
const (
	// ChannelCacheInvalidation carries one Event per stale cache key.
	ChannelCacheInvalidation = "chat:cache:invalidate"
)

// Event types published on ChannelCacheInvalidation.
const (
	EventInvalidate = "invalidate"
)

// InvalidatePayload names the stale key.
type InvalidatePayload struct {
	Key            string `json:"key"`
	Scope          string `json:"scope"`
	ConversationID string `json:"conversation_id,omitempty"`
}
