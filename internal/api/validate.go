package api

import (
	"fmt"
	"math"

	"cvrpplan/internal/model"
	"cvrpplan/internal/opt"
)

func validateOptimizeRequest(req *model.OptimizeRequest, maxPoints int) error {
	if req.Capacity <= 0 {
		return fmt.Errorf("capacity must be > 0")
	}
	if len(req.Points) == 0 {
		return fmt.Errorf("points must contain at least the depot")
	}
	if maxPoints > 0 && len(req.Points) > maxPoints {
		return fmt.Errorf("too many points: %d (max %d)", len(req.Points), maxPoints)
	}
	if req.Points[0].Demand != 0 {
		return fmt.Errorf("points[0] is the depot and must have demand 0")
	}
	for i, p := range req.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("points[%d] has non-finite coordinates", i)
		}
		if p.Demand < 0 {
			return fmt.Errorf("points[%d].demand must be >= 0", i)
		}
		if p.Demand > req.Capacity {
			return fmt.Errorf("points[%d].demand %d exceeds capacity %d", i, p.Demand, req.Capacity)
		}
	}
	if o := req.Options; o != nil {
		if o.Restarts < 0 || o.NoImproveLimit < 0 || o.Workers < 0 || o.ExtraVehicles < 0 {
			return fmt.Errorf("options: counts must be >= 0")
		}
		if o.StepTimeLimitMs < 0 || o.MaxTimeMs < 0 {
			return fmt.Errorf("options: time limits must be >= 0")
		}
		for _, name := range o.Strategies {
			if _, err := opt.ParseStrategy(name); err != nil {
				return fmt.Errorf("options: %w", err)
			}
		}
	}
	return nil
}
