// Package analysis inspects the sequence of step-halving attempts.
//
//   - [ObservedOrder]: empirical convergence order from successive deltas
//   - [Extrapolate]: Richardson estimate of the step-free deceased total
//
// With a method of order p, halving the step divides the error by 2^p, so
// successive deltas shrink by the same factor:
//
//	orders := analysis.ObservedOrder(result.Attempts)
//	limit, ok := analysis.Extrapolate(result.Attempts)
package analysis
