package opt

import (
	"math"
	"math/rand"
)

// DefaultNoiseSigma is the standard deviation of the arc noise, in distance units.
const DefaultNoiseSigma = 0.5

// Relabeling maps engine indices to original point indices. Relabeling[0] is always 0.
type Relabeling []int

// Perturbation is one randomized reformulation of an instance.
type Perturbation struct {
	Relabel Relabeling
	// Matrix is the noisy distance matrix in relabeled order.
	Matrix  DistanceMatrix
	Demands []int
}

// Perturb shuffles the non-depot points and adds N(0, sigma) noise to every
// off-diagonal arc. The result depends only on inst and the state of rng.
func Perturb(inst *Instance, rng *rand.Rand, sigma float64) *Perturbation {
	n := len(inst.Points)
	relabel := make(Relabeling, n)
	for i := range relabel {
		relabel[i] = i
	}
	if n > 1 {
		rng.Shuffle(n-1, func(i, j int) {
			relabel[i+1], relabel[j+1] = relabel[j+1], relabel[i+1]
		})
	}
	base := inst.Distances()
	matrix := make(DistanceMatrix, n)
	demands := make([]int, n)
	for i := 0; i < n; i++ {
		demands[i] = inst.Points[relabel[i]].Demand
		row := make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			row[j] = noisy(base[relabel[i]][relabel[j]], rng, sigma)
		}
		matrix[i] = row
	}
	return &Perturbation{Relabel: relabel, Matrix: matrix, Demands: demands}
}

func noisy(d float64, rng *rand.Rand, sigma float64) float64 {
	if sigma <= 0 {
		return d
	}
	v := d + rng.NormFloat64()*sigma
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return d
	case v < 0:
		return 0
	}
	return v
}
