package metrics

import (
	"math"

	"github.com/san-kum/simtree/internal/dynamo"
)

// DefaultThreshold is the magnitude past which a state component counts as
// diverged.
const DefaultThreshold = 1e6

// Stability is the fraction of observed steps whose state was finite and
// within threshold in every component.
type Stability struct {
	threshold  float64
	violations int
	samples    int
	first      float64
}

func NewStability(threshold float64) *Stability {
	s := &Stability{threshold: threshold}
	s.Reset()
	return s
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(x dynamo.State, t float64) {
	s.samples++
	if x.IsValid() && x.MaxAbs() <= s.threshold {
		return
	}
	if s.violations == 0 {
		s.first = t
	}
	s.violations++
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1
	}
	return 1 - float64(s.violations)/float64(s.samples)
}

// FirstViolation is the time of the first out-of-bounds state, or NaN.
func (s *Stability) FirstViolation() float64 { return s.first }

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
	s.first = math.NaN()
}
