package store

import (
	"context"
	"errors"

	"cvrpplan/internal/model"
	"cvrpplan/internal/opt"
)

// Store is the plan archive used by the API server and the batch driver.
type Store interface {
	// CreatePlan assigns an ID and timestamps when they are unset.
	CreatePlan(ctx context.Context, p model.Plan) (model.Plan, error)
	UpdatePlan(ctx context.Context, p model.Plan) (model.Plan, error)
	GetPlan(ctx context.Context, tenantID, id string) (model.Plan, error)
	ListPlans(ctx context.Context, tenantID, cursor string, limit int) ([]model.Plan, string, error)

	SavePlanMetrics(ctx context.Context, tenantID, planID string, m opt.Metrics) error
	GetPlanMetrics(ctx context.Context, tenantID, planID string) (opt.Metrics, error)
}

var ErrNotFound = errors.New("not found")

const (
	defaultLimit = 100
	maxLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}
