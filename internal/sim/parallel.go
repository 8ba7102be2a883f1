package sim

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/simtree/internal/dynamo"
)

// Member is one independent run of an ensemble. Systems and integrators must
// not be shared between members.
type Member struct {
	System     dynamo.System
	Integrator dynamo.Integrator
	X0         dynamo.State
	Metrics    []dynamo.Metric
}

type Ensemble struct {
	members []Member
	limit   int
}

// NewEnsemble runs at most limit members at once; limit <= 0 means no limit.
func NewEnsemble(limit int) *Ensemble {
	return &Ensemble{limit: limit}
}

func (e *Ensemble) Add(m Member) { e.members = append(e.members, m) }
func (e *Ensemble) Len() int { return len(e.members) }

// Run integrates every member and returns results in member order. The first
// failure cancels the runs still in flight.
func (e *Ensemble) Run(ctx context.Context, cfg dynamo.Config) ([]*dynamo.Result, error) {
	results := make([]*dynamo.Result, len(e.members))

	g, gctx := errgroup.WithContext(ctx)
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}
	for i, m := range e.members {
		g.Go(func() error {
			cfgCopy := cfg
			cfgCopy.Seed = cfg.Seed + int64(i)

			s := New(m.System, m.Integrator)
			for _, metric := range m.Metrics {
				s.AddMetric(metric)
			}

			res, err := s.Run(gctx, m.X0, cfgCopy)
			results[i] = res
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
