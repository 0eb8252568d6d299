package pipeline

import (
	"time"

	"github.com/rcoelho/imarchive/internal/bus"
)

// BatchPayload is the bus payload for one delivered batch.
type BatchPayload[T any] struct {
	Batch  []T
	Loaded int
}

// BusConsumer publishes a load's progress on the event bus, stamped with
// the load id, so any subscriber can render partial progress.
type BusConsumer[T any] struct {
	bus    *bus.Bus
	loadID string
	begin  string
	batch  string
	end    string
}

// NewConversationBusConsumer returns a consumer publishing conversation
// load events.
func NewConversationBusConsumer(b *bus.Bus, loadID string) *BusConsumer[Conversation] {
	return &BusConsumer[Conversation]{
		bus:    b,
		loadID: loadID,
		begin:  bus.KindConversationsBegin,
		batch:  bus.KindConversationsBatch,
		end:    bus.KindConversationsEnd,
	}
}

// NewMessageBusConsumer returns a consumer publishing message load events.
func NewMessageBusConsumer(b *bus.Bus, loadID string) *BusConsumer[Message] {
	return &BusConsumer[Message]{
		bus:    b,
		loadID: loadID,
		begin:  bus.KindMessagesBegin,
		batch:  bus.KindMessagesBatch,
		end:    bus.KindMessagesEnd,
	}
}

func (c *BusConsumer[T]) Begin(total int) {
	c.publish(c.begin, total)
}

func (c *BusConsumer[T]) Deliver(batch []T, loaded int) {
	c.publish(c.batch, BatchPayload[T]{Batch: batch, Loaded: loaded})
}

func (c *BusConsumer[T]) End(outcome Outcome) {
	c.publish(c.end, outcome)
}

func (c *BusConsumer[T]) publish(kind string, payload any) {
	c.bus.Publish(bus.Event{
		Kind:      kind,
		LoadID:    c.loadID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
