package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitter_DeliversToAllSubscribers(t *testing.T) {
	em := NewEmitter()

	var first, second []any
	em.On(EventChainStarted, func(payload any) { first = append(first, payload) })
	em.On(EventChainStarted, func(payload any) { second = append(second, payload) })
	em.On(EventChainCompleted, func(payload any) { t.Fatal("wrong event delivered") })

	em.Emit(EventChainStarted, ChainStartedEvent{ChainID: 1})
	em.Emit(EventChainStarted, ChainStartedEvent{ChainID: 137})

	assert.Len(t, first, 2)
	assert.Len(t, second, 2)
	assert.Equal(t, uint64(137), first[1].(ChainStartedEvent).ChainID)
}

func TestEmitter_OffStopsDelivery(t *testing.T) {
	em := NewEmitter()

	calls := 0
	id := em.On(EventProgressUpdated, func(any) { calls++ })

	em.Emit(EventProgressUpdated, ProgressUpdatedEvent{Percentage: 50})
	em.Off(EventProgressUpdated, id)
	em.Emit(EventProgressUpdated, ProgressUpdatedEvent{Percentage: 100})

	assert.Equal(t, 1, calls)
}

func TestEmitter_EmitWithoutSubscribers(t *testing.T) {
	em := NewEmitter()
	assert.NotPanics(t, func() {
		em.Emit(EventBatchStarted, BatchStartedEvent{BatchID: "b"})
	})
}
