package model

import (
	"time"

	"cvrpplan/internal/opt"
)

// Plan lifecycle.
const (
	PlanQueued    = "queued"
	PlanRunning   = "running"
	PlanSucceeded = "succeeded"
	PlanFailed    = "failed"
)

type PointIn struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Demand int     `json:"demand"`
}

// PlanOptions overrides the service planner defaults. Zero fields keep the default.
type PlanOptions struct {
	Restarts                int      `json:"restarts,omitempty"`
	StepTimeLimitMs         int64    `json:"stepTimeLimitMs,omitempty"`
	MaxTimeMs               int64    `json:"maxTimeMs,omitempty"`
	NoImproveLimit          int      `json:"noImproveLimit,omitempty"`
	MinImprovement          *float64 `json:"minImprovement,omitempty"`
	ApplyThresholdAtRestart *bool    `json:"applyThresholdAtRestart,omitempty"`
	NoiseSigma              *float64 `json:"noiseSigma,omitempty"`
	Strategies              []string `json:"strategies,omitempty"`
	Workers                 int      `json:"workers,omitempty"`
	Seed                    int64    `json:"seed,omitempty"`
	ExtraVehicles           int      `json:"extraVehicles,omitempty"`
}

// OptimizeRequest is the body of POST /v1/optimize. Points[0] is the depot.
type OptimizeRequest struct {
	TenantID string       `json:"tenantId,omitempty"`
	Name     string       `json:"name,omitempty"`
	Capacity int          `json:"capacity"`
	Points   []PointIn    `json:"points"`
	Options  *PlanOptions `json:"options,omitempty"`
	// Async returns 202 with the queued plan instead of waiting for the result.
	Async bool `json:"async,omitempty"`
}

// OptPoints converts the request points to planner points.
func (r OptimizeRequest) OptPoints() []opt.Point {
	out := make([]opt.Point, len(r.Points))
	for i, p := range r.Points {
		out[i] = opt.Point{X: p.X, Y: p.Y, Demand: p.Demand}
	}
	return out
}

// Plan is a stored planning run.
type Plan struct {
	ID            string      `json:"id"`
	TenantID      string      `json:"tenantId"`
	Name          string      `json:"name,omitempty"`
	Status        string      `json:"status"`
	Capacity      int         `json:"capacity"`
	Vehicles      int         `json:"vehicles"`
	Points        []opt.Point `json:"points"`
	Routes        []opt.Route `json:"routes"`
	TotalDistance float64     `json:"totalDistance"`
	BestRestart   int         `json:"bestRestart"`
	Error         string      `json:"error,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Done reports whether p reached a final status.
func (p Plan) Done() bool { return p.Status == PlanSucceeded || p.Status == PlanFailed }

// PlanEvent is published on a plan's event stream.
type PlanEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Plan event types.
const (
	EventPlanSnapshot    = "plan.snapshot"
	EventPlanStarted     = "plan.started"
	EventAttemptFinished = "plan.attempt"
	EventRestartFinished = "plan.restart"
	EventPlanCompleted   = "plan.completed"
	EventPlanFailed      = "plan.failed"
)
