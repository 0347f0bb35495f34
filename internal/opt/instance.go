package opt

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInstance is returned for empty or malformed instances.
var ErrInvalidInstance = errors.New("opt: invalid instance")

// Instance is an immutable CVRP instance: depot first, uniform vehicle capacity.
type Instance struct {
	Points   []Point
	Capacity int
	// Vehicles is ceil(total demand / capacity), at least one when customers exist.
	Vehicles int

	dist DistanceMatrix
}

// NewInstance validates points and derives the vehicle count and distance matrix.
func NewInstance(points []Point, capacity int) (*Instance, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no points", ErrInvalidInstance)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be > 0, got %d", ErrInvalidInstance, capacity)
	}
	total := 0
	for i, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, fmt.Errorf("%w: point %d has non-finite coordinates", ErrInvalidInstance, i)
		}
		if p.Demand < 0 {
			return nil, fmt.Errorf("%w: point %d has negative demand %d", ErrInvalidInstance, i, p.Demand)
		}
		if i == 0 && p.Demand != 0 {
			return nil, fmt.Errorf("%w: depot demand must be 0, got %d", ErrInvalidInstance, p.Demand)
		}
		total += p.Demand
	}
	vehicles := (total + capacity - 1) / capacity
	if vehicles == 0 && len(points) > 1 {
		vehicles = 1
	}
	pts := append([]Point(nil), points...)
	return &Instance{
		Points:   pts,
		Capacity: capacity,
		Vehicles: vehicles,
		dist:     EuclideanMatrix(pts),
	}, nil
}

// Distances returns the unperturbed distance matrix in original point order.
func (in *Instance) Distances() DistanceMatrix { return in.dist }

// Customers is the number of non-depot points.
func (in *Instance) Customers() int { return len(in.Points) - 1 }

func (in *Instance) TotalDemand() int {
	total := 0
	for _, p := range in.Points {
		total += p.Demand
	}
	return total
}
