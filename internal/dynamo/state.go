package dynamo

import (
	"math"
	"slices"
)

// State is the flat vector an integrator advances.
type State []float64

func (s State) Clone() State { return slices.Clone(s) }

// IsValid reports whether every entry is finite.
func (s State) IsValid() bool {
	return !slices.ContainsFunc(s, func(v float64) bool {
		return math.IsNaN(v) || math.IsInf(v, 0)
	})
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// MaxAbs is the infinity norm.
func (s State) MaxAbs() float64 {
	m := 0.0
	for _, v := range s {
		m = max(m, math.Abs(v))
	}
	return m
}

func (s State) Add(other State) State { return s.plus(1, other) }
func (s State) Sub(other State) State { return s.plus(-1, other) }

// plus returns s + k*other. Entries of s past the end of other are copied
// unchanged.
func (s State) plus(k float64, other State) State {
	out := s.Clone()
	for i := range min(len(s), len(other)) {
		out[i] += k * other[i]
	}
	return out
}

func (s State) Scale(factor float64) State {
	out := make(State, len(s))
	for i, v := range s {
		out[i] = v * factor
	}
	return out
}
