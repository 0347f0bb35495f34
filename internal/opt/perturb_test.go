package opt

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerturbRelabeling(t *testing.T) {
	inst := randomInstance(t, 1, 20, 100)
	p := Perturb(inst, rand.New(rand.NewSource(7)), DefaultNoiseSigma)

	require.Len(t, p.Relabel, len(inst.Points))
	assert.Equal(t, 0, p.Relabel[0])
	sorted := append([]int(nil), p.Relabel...)
	sort.Ints(sorted)
	assert.Equal(t, []int(identity(len(inst.Points))), sorted)
	for i, orig := range p.Relabel {
		assert.Equal(t, inst.Points[orig].Demand, p.Demands[i])
	}
}

func TestPerturbMatrix(t *testing.T) {
	inst := randomInstance(t, 2, 15, 100)
	p := Perturb(inst, rand.New(rand.NewSource(3)), DefaultNoiseSigma)
	base := inst.Distances()
	for i := range p.Matrix {
		assert.Zero(t, p.Matrix[i][i])
		for j := range p.Matrix {
			v := p.Matrix[i][j]
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			assert.GreaterOrEqual(t, v, 0.0)
			if i != j {
				assert.InDelta(t, base[p.Relabel[i]][p.Relabel[j]], v, 10*DefaultNoiseSigma)
			}
		}
	}
}

func TestPerturbWithoutNoiseMatchesBase(t *testing.T) {
	inst := randomInstance(t, 4, 10, 100)
	p := Perturb(inst, rand.New(rand.NewSource(5)), 0)
	base := inst.Distances()
	for i := range p.Matrix {
		for j := range p.Matrix {
			assert.Equal(t, base[p.Relabel[i]][p.Relabel[j]], p.Matrix[i][j])
		}
	}
}

func TestPerturbReproducible(t *testing.T) {
	inst := randomInstance(t, 6, 12, 100)
	a := Perturb(inst, rand.New(rand.NewSource(11)), DefaultNoiseSigma)
	b := Perturb(inst, rand.New(rand.NewSource(11)), DefaultNoiseSigma)
	assert.Equal(t, a, b)
}

func TestPerturbClampsNegative(t *testing.T) {
	inst, err := NewInstance([]Point{{}, {Demand: 1}, {Demand: 1}, {X: 0.1, Demand: 1}}, 10)
	require.NoError(t, err)
	p := Perturb(inst, rand.New(rand.NewSource(1)), 1e6)
	for i := range p.Matrix {
		for j := range p.Matrix {
			assert.GreaterOrEqual(t, p.Matrix[i][j], 0.0)
		}
	}
}

func TestPerturbLeavesInstanceUntouched(t *testing.T) {
	inst := randomInstance(t, 8, 10, 100)
	before := append([]Point(nil), inst.Points...)
	Perturb(inst, rand.New(rand.NewSource(9)), DefaultNoiseSigma)
	assert.Equal(t, before, inst.Points)
}
