package api

import (
	"testing"
	"time"

	"cvrpplan/internal/model"
	"cvrpplan/internal/opt"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	pid := "p1"
	ch := b.Subscribe(pid)

	evt := model.PlanEvent{Type: model.EventPlanStarted, Data: map[string]any{"x": 1}}
	b.Publish(pid, evt)
	b.Publish("other", model.PlanEvent{Type: "ignored"})

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["x"].(int) != 1 {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(pid, ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	// a second unsubscribe must not panic on the closed channel
	b.Unsubscribe(pid, ch)
	b.Publish(pid, evt)
}

func TestBrokerDropsWhenSubscriberIsSlow(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("p")
	defer b.Unsubscribe("p", ch)
	for i := 0; i < cap(ch)+10; i++ {
		b.Publish("p", model.PlanEvent{Type: model.EventAttemptFinished})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("buffer holds %d events, want %d", len(ch), cap(ch))
	}
}

func TestEventObserverReportsZeroBest(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("p")
	defer b.Unsubscribe("p", ch)
	o := eventObserver{broker: b, planID: "p"}

	o.RestartFinished(opt.RestartEvent{Restart: 0})
	o.RestartFinished(opt.RestartEvent{Restart: 1, Found: true, Improved: true, HasBest: true})
	o.RestartFinished(opt.RestartEvent{Restart: 2, Best: 0, HasBest: true})

	want := []bool{false, true, true}
	for i, hasBest := range want {
		select {
		case got := <-ch:
			if got.Type != model.EventRestartFinished {
				t.Fatalf("event %d: type %s", i, got.Type)
			}
			best, ok := got.Data["best"]
			if ok != hasBest {
				t.Fatalf("event %d: best present=%v, want %v (%+v)", i, ok, hasBest, got.Data)
			}
			if ok && best.(float64) != 0 {
				t.Fatalf("event %d: best=%v, want 0", i, best)
			}
		case <-time.After(200 * time.Millisecond):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
}
