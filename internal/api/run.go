package api

import (
	"context"
	"errors"
	"log"
	"time"

	"cvrpplan/internal/metrics"
	"cvrpplan/internal/model"
	"cvrpplan/internal/opt"
)

// planOptions overlays request overrides on the service defaults.
func (s *Server) planOptions(o *model.PlanOptions) (opt.Options, error) {
	out := s.Options
	out.Strategies = append([]opt.Strategy(nil), s.Options.Strategies...)
	if o == nil {
		return out, out.Validate()
	}
	if o.Restarts > 0 {
		out.Restarts = o.Restarts
	}
	if o.StepTimeLimitMs > 0 {
		out.StepTimeLimit = time.Duration(o.StepTimeLimitMs) * time.Millisecond
	}
	if o.MaxTimeMs > 0 {
		out.MaxTime = time.Duration(o.MaxTimeMs) * time.Millisecond
	}
	if o.NoImproveLimit > 0 {
		out.NoImproveLimit = o.NoImproveLimit
	}
	if o.MinImprovement != nil {
		out.MinImprovement = *o.MinImprovement
	}
	if o.ApplyThresholdAtRestart != nil {
		out.ApplyThresholdAtRestart = *o.ApplyThresholdAtRestart
	}
	if o.NoiseSigma != nil {
		out.NoiseSigma = *o.NoiseSigma
	}
	if len(o.Strategies) > 0 {
		out.Strategies = out.Strategies[:0]
		for _, name := range o.Strategies {
			st, err := opt.ParseStrategy(name)
			if err != nil {
				return out, err
			}
			out.Strategies = append(out.Strategies, st)
		}
	}
	if o.Workers > 0 {
		out.Workers = o.Workers
	}
	if o.Seed != 0 {
		out.Seed = o.Seed
	}
	if o.ExtraVehicles > 0 {
		out.ExtraVehicles = o.ExtraVehicles
	}
	return out, out.Validate()
}

// eventObserver publishes planner progress on the plan's event stream.
type eventObserver struct {
	broker EventBroker
	planID string
}

func (o eventObserver) AttemptFinished(e opt.AttemptEvent) {
	data := map[string]any{
		"restart":  e.Restart,
		"step":     e.Step,
		"strategy": e.Strategy.String(),
		"ok":       e.OK,
		"improved": e.Improved,
		"ms":       e.Duration.Milliseconds(),
	}
	if e.OK {
		data["cost"] = e.Cost
	}
	o.broker.Publish(o.planID, model.PlanEvent{Type: model.EventAttemptFinished, Data: data})
}

func (o eventObserver) RestartFinished(e opt.RestartEvent) {
	data := map[string]any{
		"restart":  e.Restart,
		"found":    e.Found,
		"improved": e.Improved,
		"attempts": e.Attempts,
		"ms":       e.Elapsed.Milliseconds(),
	}
	if e.Found {
		data["cost"] = e.Cost
	}
	if e.HasBest {
		data["best"] = e.Best
	}
	o.broker.Publish(o.planID, model.PlanEvent{Type: model.EventRestartFinished, Data: data})
}

// execute runs the planner for a created plan and records the outcome in the
// store, the event stream, the metrics and the webhook notifier. Store writes
// outlive ctx so a cancelled run still reaches a final status.
func (s *Server) execute(ctx context.Context, p model.Plan, inst *opt.Instance, opts opt.Options) model.Plan {
	wctx := context.WithoutCancel(ctx)
	p.Status = model.PlanRunning
	if up, err := s.Store.UpdatePlan(wctx, p); err == nil {
		p = up
	} else {
		log.Printf("plan %s: mark running: %v", p.ID, err)
	}
	s.publish(p, model.EventPlanStarted, map[string]any{"vehicles": p.Vehicles, "points": len(p.Points)})

	planner := opt.NewPlanner(s.Engine, opts)
	planner.Observer = opt.Observers{metrics.PlannerObserver{}, eventObserver{broker: s.Broker, planID: p.ID}}
	metrics.PlansInFlight.Inc()
	start := time.Now()
	res, err := planner.Plan(ctx, inst)
	metrics.PlansInFlight.Dec()
	metrics.PlanDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		p.Status = model.PlanFailed
		p.Error = err.Error()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.Error = "planning cancelled before a feasible solution was found"
		}
	} else {
		p.Status = model.PlanSucceeded
		p.Routes = res.Solution.Routes
		p.TotalDistance = res.Cost
		p.BestRestart = res.Restart
		p.Vehicles = res.Vehicles
		if err := s.Store.SavePlanMetrics(wctx, p.TenantID, p.ID, res.Metrics); err != nil {
			log.Printf("plan %s: save metrics: %v", p.ID, err)
		}
		opt.RecordMetrics(p.TenantID, p.ID, res.Metrics)
	}
	metrics.Plans.WithLabelValues(p.Status).Inc()
	if up, err := s.Store.UpdatePlan(wctx, p); err == nil {
		p = up
	} else {
		log.Printf("plan %s: record outcome: %v", p.ID, err)
	}

	if p.Status == model.PlanSucceeded {
		s.publish(p, model.EventPlanCompleted, map[string]any{
			"totalDistance": p.TotalDistance,
			"routes":        len(p.Routes),
			"bestRestart":   p.BestRestart,
		})
	} else {
		s.publish(p, model.EventPlanFailed, map[string]any{"error": p.Error})
	}
	log.Printf("plan %s tenant=%s status=%s distance=%.2f in %v", p.ID, p.TenantID, p.Status, p.TotalDistance, time.Since(start).Round(time.Millisecond))
	return p
}

// publish sends a lifecycle event to stream subscribers and the webhook.
func (s *Server) publish(p model.Plan, typ string, data map[string]any) {
	data["planId"] = p.ID
	data["status"] = p.Status
	s.Broker.Publish(p.ID, model.PlanEvent{Type: typ, Data: data})
	if s.Notifier != nil {
		s.Notifier.Emit(p.TenantID, typ, data)
	}
}
