// Package optim searches parameter grids for the setting that minimizes a
// run metric.
package optim

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// RunFunc evaluates one grid point and returns its metrics.
type RunFunc func(ctx context.Context, params map[string]float64) (map[string]float64, error)

// Trial is the outcome of one grid point. A failed trial keeps its error and
// never wins.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	limit      int
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("%d params for %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("param %s has no values", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// SetLimit bounds the number of concurrent trials; n <= 0 means no limit.
func (g *GridSearch) SetLimit(n int) { g.limit = n }

// Points enumerates the grid with the last parameter varying fastest.
func (g *GridSearch) Points() []map[string]float64 {
	var out []map[string]float64
	g.enumerate(0, map[string]float64{}, &out)
	return out
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, maps.Clone(current))
		return
	}
	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[name] = val
		g.enumerate(depth+1, current, out)
	}
	delete(current, name)
}

// Search runs every grid point and returns the trial with the smallest
// metric value alongside all trials in grid order.
func (g *GridSearch) Search(ctx context.Context, run RunFunc, metricName string) (Trial, []Trial, error) {
	points := g.Points()
	trials := make([]Trial, len(points))

	eg, ctx := errgroup.WithContext(ctx)
	if g.limit > 0 {
		eg.SetLimit(g.limit)
	}
	for i, p := range points {
		eg.Go(func() error {
			trials[i] = Trial{Params: p, Value: math.NaN()}
			metrics, err := run(ctx, p)
			if err != nil {
				trials[i].Err = err
				return ctx.Err()
			}
			v, ok := metrics[metricName]
			if !ok {
				trials[i].Err = fmt.Errorf("metric %q not reported", metricName)
				return nil
			}
			trials[i].Value = v
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Trial{}, trials, err
	}

	best := -1
	for i, t := range trials {
		if t.Err == nil && !math.IsNaN(t.Value) && (best < 0 || t.Value < trials[best].Value) {
			best = i
		}
	}
	if best < 0 {
		return Trial{}, trials, errors.Join(errors.New("every trial failed"), trials[0].Err)
	}
	return trials[best], trials, nil
}

// ParseValues reads either a comma-separated list ("0,0.5,1") or an
// inclusive linear range "start:stop:count".
func ParseValues(s string) ([]float64, error) {
	if parts := strings.Split(s, ":"); len(parts) == 3 {
		start, err1 := strconv.ParseFloat(parts[0], 64)
		stop, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err := errors.Join(err1, err2, err3); err != nil {
			return nil, fmt.Errorf("range %q: %w", s, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("range %q: count must be positive", s)
		}
		if n == 1 {
			return []float64{start}, nil
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = start + (stop-start)*float64(i)/float64(n-1)
		}
		return out, nil
	}

	var out []float64
	for _, f := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("values %q: %w", s, err)
		}
		out = append(out, v)
	}
	return out, nil
}
