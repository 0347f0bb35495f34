package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"cvrpplan/internal/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 5 * time.Second
)

// planEventsWS streams a plan's events over a websocket: a plan.snapshot
// first, then progress events until plan.completed or plan.failed.
func (s *Server) planEventsWS(w http.ResponseWriter, r *http.Request, p Principal, id string) {
	plan, err := s.Store.GetPlan(r.Context(), p.Tenant, id)
	if err != nil {
		s.planLookupProblem(w, r, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	// Re-read after subscribing so a plan that finished in between is seen.
	if cur, err := s.Store.GetPlan(r.Context(), p.Tenant, id); err == nil {
		plan = cur
	}
	write := func(evt model.PlanEvent) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(evt)
	}
	closeNormal := func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "plan finished")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
	}

	snap := model.PlanEvent{Type: model.EventPlanSnapshot, Data: map[string]any{
		"planId":        plan.ID,
		"status":        plan.Status,
		"totalDistance": plan.TotalDistance,
	}}
	if err := write(snap); err != nil {
		return
	}
	if plan.Done() {
		closeNormal()
		return
	}

	// Drain client frames so pongs and close frames are processed.
	gone := make(chan struct{})
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-s.ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := write(evt); err != nil {
				return
			}
			if evt.Type == model.EventPlanCompleted || evt.Type == model.EventPlanFailed {
				closeNormal()
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
