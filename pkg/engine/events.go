package engine

import (
	"sync"
)

// EventName identifies one event type on the engine's stream.
type EventName string

const (
	EventBatchStarted         EventName = "batchStarted"
	EventBatchCompleted       EventName = "batchCompleted"
	EventBatchFailed          EventName = "batchFailed"
	EventChainStarted         EventName = "chainStarted"
	EventChainCompleted       EventName = "chainCompleted"
	EventChainFailed          EventName = "chainFailed"
	EventStepStarted          EventName = "stepStarted"
	EventStepCompleted        EventName = "stepCompleted"
	EventTransactionSubmitted EventName = "transactionSubmitted"
	EventTransactionConfirmed EventName = "transactionConfirmed"
	EventProgressUpdated      EventName = "progressUpdated"
)

// Event payloads. These records are ephemeral: they are delivered to the
// listeners registered at emission time and never persisted.

type BatchStartedEvent struct {
	BatchID    string
	ChainCount int
	TotalSteps int
}

type BatchCompletedEvent struct {
	BatchID string
	Results []ChainResult
}

type BatchFailedEvent struct {
	BatchID string
	Err     *OpError
	Results []ChainResult
}

type ChainStartedEvent struct {
	ChainID uint64
	// Index is the chain's zero-based position in the batch.
	Index int
}

type ChainCompletedEvent struct {
	ChainID uint64
	Result  ChainResult
}

type ChainFailedEvent struct {
	ChainID uint64
	Result  ChainResult
}

type StepStartedEvent struct {
	ChainID uint64
	Step    Step
	// StepIndex is one-based and relative to the chain; StepTotal is 2
	// when the approval is skipped and 3 otherwise, counting the chain
	// switch.
	StepIndex int
	StepTotal int
}

type StepCompletedEvent struct {
	ChainID   uint64
	Step      Step
	StepIndex int
	StepTotal int
}

type TransactionSubmittedEvent struct {
	ChainID uint64
	Type    TxType
	TxHash  string
}

type TransactionConfirmedEvent struct {
	ChainID uint64
	Type    TxType
	TxHash  string
}

type ProgressUpdatedEvent struct {
	Completed int
	Total     int
	// Percentage is round(100*Completed/Total), clamped to 100.
	Percentage int
}

// Handler receives one event payload. Handlers run synchronously on the
// orchestrating goroutine; slow handlers stall the batch.
type Handler func(payload any)

// Subscription identifies one registered handler so it can be removed.
type Subscription int

// Emitter is a typed publish/subscribe fan-out scoped to one engine
// instance. There is no global listener state.
type Emitter struct {
	mu       sync.RWMutex
	nextID   Subscription
	handlers map[EventName]map[Subscription]Handler
}

// NewEmitter returns an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{
		handlers: make(map[EventName]map[Subscription]Handler),
	}
}

// On registers handler for the named event and returns its subscription id.
func (e *Emitter) On(name EventName, handler Handler) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	if e.handlers[name] == nil {
		e.handlers[name] = make(map[Subscription]Handler)
	}
	e.handlers[name][id] = handler
	return id
}

// Off removes a previously registered handler. Removing an unknown
// subscription is a no-op.
func (e *Emitter) Off(name EventName, id Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers[name], id)
}

// Emit delivers payload to every handler registered for name. Delivery
// order across handlers is unspecified.
func (e *Emitter) Emit(name EventName, payload any) {
	e.mu.RLock()
	registered := make([]Handler, 0, len(e.handlers[name]))
	for _, h := range e.handlers[name] {
		registered = append(registered, h)
	}
	e.mu.RUnlock()

	for _, h := range registered {
		h(payload)
	}
}
