package opt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// randomInstance builds n customers on a 1000x1000 square with demands in [1,30].
func randomInstance(t *testing.T, seed int64, n, capacity int) *Instance {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	points := []Point{{X: 500, Y: 500}}
	for i := 0; i < n; i++ {
		points = append(points, Point{X: rng.Float64() * 1000, Y: rng.Float64() * 1000, Demand: 1 + rng.Intn(30)})
	}
	inst, err := NewInstance(points, capacity)
	require.NoError(t, err)
	return inst
}

func scenario50_60_70(t *testing.T) *Instance {
	t.Helper()
	inst, err := NewInstance([]Point{
		{X: 0, Y: 0},
		{X: 10, Y: 0, Demand: 50},
		{X: 0, Y: 10, Demand: 60},
		{X: -10, Y: 0, Demand: 70},
	}, 100)
	require.NoError(t, err)
	return inst
}

func identityModel(inst *Instance, vehicles int) *Model {
	demands := make([]int, len(inst.Points))
	for i, p := range inst.Points {
		demands[i] = p.Demand
	}
	return &Model{Matrix: inst.Distances(), Demands: demands, Vehicles: vehicles, Capacity: inst.Capacity}
}

func identity(n int) Relabeling {
	r := make(Relabeling, n)
	for i := range r {
		r[i] = i
	}
	return r
}
