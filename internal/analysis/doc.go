// Package analysis characterizes trajectories, either recorded columns of a
// stored run or fresh integrations of a system.
//
//   - [DominantFrequency] and [Period]: oscillation frequency of a series
//   - [Portrait]: 2D phase portrait of two series, drawn as text
//   - [LyapunovExponent]: largest exponent by trajectory separation
//
// A positive largest Lyapunov exponent indicates chaotic dynamics:
//
//	lambda, err := analysis.LyapunovExponent(sys, integ, x0, dt, duration, 1e-8)
//	if err == nil && lambda > 0 {
//	    // chaotic
//	}
package analysis
