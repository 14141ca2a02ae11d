package domain

// CacheScope names a family of cached read models.
type CacheScope string

const (
	ScopeConversationList     CacheScope = "conversations:list"
	ScopeConversation         CacheScope = "conversations:detail"
	ScopeConversationMessages CacheScope = "conversations:messages"
)

// CacheKey identifies one stale entry in the external query cache.
type CacheKey struct {
	Scope          CacheScope
	ConversationID string
}

func ConversationListKey() CacheKey {
	return CacheKey{Scope: ScopeConversationList}
}

func ConversationKey(conversationID string) CacheKey {
	return CacheKey{Scope: ScopeConversation, ConversationID: conversationID}
}

func ConversationMessagesKey(conversationID string) CacheKey {
	return CacheKey{Scope: ScopeConversationMessages, ConversationID: conversationID}
}

// String renders the key the way the query layer stores it:
// conversations:list, conversations:<id>, conversations:<id>:messages.
func (k CacheKey) String() string {
	switch k.Scope {
	case ScopeConversation:
		return "conversations:" + k.ConversationID
	case ScopeConversationMessages:
		return "conversations:" + k.ConversationID + ":messages"
	default:
		return string(k.Scope)
	}
}
