package chat

// ActiveConversation points at the conversation open in the UI. An empty
// id means none.
type ActiveConversation struct {
	id string
}

func (a *ActiveConversation) Set(conversationID string) {
	a.id = conversationID
}

func (a *ActiveConversation) Clear() {
	a.id = ""
}

func (a *ActiveConversation) Get() string {
	return a.id
}

// Is reports whether conversationID is the active one.
func (a *ActiveConversation) Is(conversationID string) bool {
	return a.id != "" && a.id == conversationID
}
