package bus

import "time"

// Event kinds published during loads. Batch payloads carry the entity slice
// for that batch; begin payloads carry the total count.
const (
	KindConversationsBegin = "load.conversations.begin"
	KindConversationsBatch = "load.conversations.batch"
	KindConversationsEnd   = "load.conversations.end"
	KindMessagesBegin      = "load.messages.begin"
	KindMessagesBatch      = "load.messages.batch"
	KindMessagesEnd        = "load.messages.end"
)

// Event represents a load-progress event published on the bus.
type Event struct {
	Kind      string
	LoadID    string
	Timestamp time.Time
	Payload   any
}
