// Package analysis measures the tree force model against direct summation.
//
//   - [CompareForces]: per-body relative error of one theta against the exact sum
//   - [ThetaSweep]: the same comparison over a list of opening angles
//   - [Scaling]: wall time and interaction count as N grows
//   - [Exponent]: least-squares slope on a log-log scale
//
// # Accuracy
//
// Errors are relative to the exact acceleration of each body:
//
//	acc, _ := analysis.CompareForces(ctx, bodies, 0.5, opts)
//	fmt.Println(acc.RMS, acc.Max)
package analysis
