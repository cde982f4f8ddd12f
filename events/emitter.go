package events

import (
	"log"
	"sync"
)

// EventType labels what happened.
type EventType string

const (
	// Host events
	EventBlockCommit EventType = "block_commit"
	EventTxExecuted  EventType = "tx_executed"
	EventTxFailed    EventType = "tx_failed"

	// Ledger events
	EventTransfer EventType = "transfer"
	EventApproval EventType = "approval"

	// Game events
	EventPlayerRegistered  EventType = "player_registered"
	EventPlayerSuspended   EventType = "player_suspended"
	EventPlayerReinstated  EventType = "player_reinstated"
	EventPlayerP2PTransfer EventType = "player_p2p_transfer"
	EventTokenBurnt        EventType = "token_burnt"
	EventRewardDistributed EventType = "reward_distributed"
	EventPropCreated       EventType = "prop_created"
	EventPropBought        EventType = "prop_bought"
)

// AllTypes lists every event type, for subscribers that record everything.
var AllTypes = []EventType{
	EventBlockCommit, EventTxExecuted, EventTxFailed,
	EventTransfer, EventApproval,
	EventPlayerRegistered, EventPlayerSuspended, EventPlayerReinstated,
	EventPlayerP2PTransfer, EventTokenBurnt, EventRewardDistributed,
	EventPropCreated, EventPropBought,
}

// Event carries a typed payload emitted after a state change.
// Addresses and ids in Data are hex strings; amounts are decimal strings.
type Event struct {
	Type        EventType      `json:"type"`
	TxID        string         `json:"tx_id"`
	BlockHeight int64          `json:"block_height"`
	Data        map[string]any `json:"data"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// SubscribeAll registers h for every known event type.
func (e *Emitter) SubscribeAll(h Handler) {
	for _, typ := range AllTypes {
		e.Subscribe(typ, h)
	}
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot halt block production.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[events] handler panicked for %s: %v", ev.Type, r)
				}
			}()
			h(ev)
		}()
	}
}
