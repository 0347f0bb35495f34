package api

import (
	"sync"

	"cvrpplan/internal/model"
)

// EventBroker fans plan progress events out to stream subscribers.
type EventBroker interface {
	Subscribe(planID string) chan model.PlanEvent
	Unsubscribe(planID string, ch chan model.PlanEvent)
	Publish(planID string, evt model.PlanEvent)
}

// Broker is the in-process EventBroker. Slow subscribers miss events rather
// than blocking the planner.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan model.PlanEvent]struct{} // planId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan model.PlanEvent]struct{}{}}
}

func (b *Broker) Subscribe(planID string) chan model.PlanEvent {
	ch := make(chan model.PlanEvent, 32)
	b.mu.Lock()
	if b.subs[planID] == nil {
		b.subs[planID] = map[chan model.PlanEvent]struct{}{}
	}
	b.subs[planID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(planID string, ch chan model.PlanEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[planID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, planID)
	}
	close(ch)
}

func (b *Broker) Publish(planID string, evt model.PlanEvent) {
	b.mu.Lock()
	for ch := range b.subs[planID] {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
