package opt

import (
	"errors"
	"fmt"
)

// ErrInvalidSolution marks a solution that breaks coverage or capacity.
var ErrInvalidSolution = errors.New("opt: invalid solution")

// Route is one vehicle trip in original point indices, depot at both ends.
// Distance is measured on the unperturbed matrix.
type Route struct {
	Stops    []int   `json:"stops"`
	Distance float64 `json:"distance"`
	Demand   int     `json:"demand"`
}

type Solution struct {
	Routes        []Route `json:"routes"`
	TotalDistance float64 `json:"totalDistance"`
}

// ExtractRoutes translates an assignment solved under relabel back to original
// indices, dropping vehicles that visit no customer.
func ExtractRoutes(inst *Instance, relabel Relabeling, a *Assignment) Solution {
	base := inst.Distances()
	sol := Solution{Routes: []Route{}}
	for _, seq := range a.Routes {
		if len(seq) == 0 {
			continue
		}
		rt := Route{Stops: make([]int, 0, len(seq)+2)}
		rt.Stops = append(rt.Stops, 0)
		prev := 0
		for _, node := range seq {
			orig := relabel[node]
			rt.Distance += base[prev][orig]
			rt.Demand += inst.Points[orig].Demand
			rt.Stops = append(rt.Stops, orig)
			prev = orig
		}
		rt.Distance += base[prev][0]
		rt.Stops = append(rt.Stops, 0)
		sol.Routes = append(sol.Routes, rt)
		sol.TotalDistance += rt.Distance
	}
	return sol
}

// TrueCost is the unperturbed total distance of a.
func TrueCost(inst *Instance, relabel Relabeling, a *Assignment) float64 {
	base := inst.Distances()
	total := 0.0
	for _, seq := range a.Routes {
		if len(seq) == 0 {
			continue
		}
		prev := 0
		for _, node := range seq {
			orig := relabel[node]
			total += base[prev][orig]
			prev = orig
		}
		total += base[prev][0]
	}
	return total
}

// Validate checks that s visits every customer of inst exactly once and that
// no route exceeds the capacity.
func (s Solution) Validate(inst *Instance) error {
	seen := make([]bool, len(inst.Points))
	visited := 0
	for i, rt := range s.Routes {
		if len(rt.Stops) < 3 || rt.Stops[0] != 0 || rt.Stops[len(rt.Stops)-1] != 0 {
			return fmt.Errorf("%w: route %d is not a closed depot walk", ErrInvalidSolution, i)
		}
		load := 0
		for _, p := range rt.Stops[1 : len(rt.Stops)-1] {
			if p <= 0 || p >= len(inst.Points) {
				return fmt.Errorf("%w: route %d visits unknown point %d", ErrInvalidSolution, i, p)
			}
			if seen[p] {
				return fmt.Errorf("%w: point %d visited twice", ErrInvalidSolution, p)
			}
			seen[p] = true
			visited++
			load += inst.Points[p].Demand
		}
		if load > inst.Capacity {
			return fmt.Errorf("%w: route %d carries %d over capacity %d", ErrInvalidSolution, i, load, inst.Capacity)
		}
	}
	if visited != inst.Customers() {
		return fmt.Errorf("%w: %d of %d customers visited", ErrInvalidSolution, visited, inst.Customers())
	}
	return nil
}
