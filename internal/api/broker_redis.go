package api

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"cvrpplan/internal/model"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so that several API
// replicas can stream events of plans running on any of them.
type RedisBroker struct {
	rdb *redis.Client

	mu   sync.Mutex
	subs map[chan model.PlanEvent]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &RedisBroker{rdb: rdb, subs: map[chan model.PlanEvent]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(planID string) chan model.PlanEvent {
	ch := make(chan model.PlanEvent, 32)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(planID))
	// wait for the subscription confirmation so no event published after
	// Subscribe returns is lost
	if _, err := ps.Receive(ctx); err != nil {
		log.Printf("redis subscribe %s: %v", planID, err)
	}
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt model.PlanEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
				select {
				case ch <- evt:
				default:
				}
			}
		}
	}()
	return ch
}

// Unsubscribe closes the Pub/Sub connection; the forwarding goroutine then
// closes ch.
func (b *RedisBroker) Unsubscribe(planID string, ch chan model.PlanEvent) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(planID string, evt model.PlanEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, b.chanName(planID), data).Err(); err != nil {
		log.Printf("redis publish %s: %v", planID, err)
	}
}

func (b *RedisBroker) Close() error { return b.rdb.Close() }

func (b *RedisBroker) chanName(planID string) string { return "plan:" + planID }
