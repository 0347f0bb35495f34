// Package webhooks posts signed plan lifecycle events to a subscriber URL.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"cvrpplan/internal/metrics"
)

// Event is the JSON body delivered to the subscriber.
type Event struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	TenantID string `json:"tenantId"`
	TS       string `json:"ts"`
	Data     any    `json:"data"`
}

type delivery struct {
	evt     Event
	body    []byte
	attempt int
}

// Notifier queues events and delivers them from a background goroutine,
// retrying failures with exponential backoff up to MaxAttempts.
type Notifier struct {
	URL         string
	Secret      string
	HTTP        *http.Client
	MaxAttempts int
	Backoff     func(attempt int) time.Duration

	queue chan delivery
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func NewNotifier(url, secret string, maxAttempts int) *Notifier {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Notifier{
		URL:         url,
		Secret:      secret,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: maxAttempts,
		Backoff:     nextBackoff,
		queue:       make(chan delivery, 256),
		stop:        make(chan struct{}),
	}
}

// Emit queues an event; it drops the event when the queue is full.
func (n *Notifier) Emit(tenantID, eventType string, data any) {
	evt := Event{
		ID:       "evt_" + uuid.NewString(),
		Type:     eventType,
		TenantID: tenantID,
		TS:       time.Now().UTC().Format(time.RFC3339),
		Data:     data,
	}
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("webhook %s: encode: %v", eventType, err)
		return
	}
	select {
	case n.queue <- delivery{evt: evt, body: body}:
	default:
		log.Printf("webhook %s: queue full, dropped %s", eventType, evt.ID)
		metrics.WebhookDeliveries.WithLabelValues(eventType, "dropped").Inc()
	}
}

func (n *Notifier) Start() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-n.stop:
				return
			case d := <-n.queue:
				n.run(d)
			}
		}
	}()
}

// Stop ends delivery; queued events are abandoned.
func (n *Notifier) Stop() {
	n.once.Do(func() { close(n.stop) })
	n.wg.Wait()
}

func (n *Notifier) run(d delivery) {
	for d.attempt < n.MaxAttempts {
		d.attempt++
		err := n.send(d)
		if err == nil {
			metrics.WebhookDeliveries.WithLabelValues(d.evt.Type, "delivered").Inc()
			return
		}
		if d.attempt >= n.MaxAttempts {
			log.Printf("webhook %s %s: giving up after %d attempts: %v", d.evt.Type, d.evt.ID, d.attempt, err)
			metrics.WebhookDeliveries.WithLabelValues(d.evt.Type, "failed").Inc()
			return
		}
		metrics.WebhookDeliveries.WithLabelValues(d.evt.Type, "retry").Inc()
		select {
		case <-n.stop:
			return
		case <-time.After(n.Backoff(d.attempt)):
		}
	}
}

func (n *Notifier) send(d delivery) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(d.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.evt.Type)
	req.Header.Set("X-Event-Id", d.evt.ID)
	if n.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(n.Secret, d.body))
	}
	start := time.Now()
	resp, err := n.HTTP.Do(req)
	metrics.WebhookLatency.WithLabelValues(d.evt.Type).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
