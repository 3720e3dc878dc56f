// Package ode solves coupled, linear, time-invariant second-order equations
// of motion (M x'' + C x' + K x = f) exactly on a uniform time grid.
//
// The solve decouples the system into modal equations, builds a closed-form
// discrete transition pair (A, B) per mode and damping regime, and applies
// the recurrence
//
//	state[k+1] = A*state[k] + B*force[k : k+window]
//
// independently per mode before recombining into physical coordinates:
//
//   - [Decompose]: mode separation, proportional or state-space fallback
//   - [Pair]: per-mode transition matrices for a damping [Regime]
//   - [Solver]: session bound to one (M, C, K, dt, order) tuple
//   - [Response]: displacement/velocity/acceleration histories
//
// # Example
//
//	s, _ := ode.NewSolver(m, c, k, 0.001)
//	resp, _ := s.Solve(ctx, force, nil, nil)
//
// # Accuracy
//
// A and B are exact, not numerically integrated, so the recurrence is
// unconditionally stable for any step size; the only approximation is the
// interpolation of the forcing between samples.
//
// # Thread Safety
//
// A Solver is safe for concurrent Solve calls; per-mode recurrences inside
// one solve already run on a worker pool over disjoint index ranges.
package ode
