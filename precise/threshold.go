// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package precise

import (
	"cogentcore.org/core/math32"

	"github.com/espike/espike/sim"
)

// vAt evaluates the membrane potential t msec into a ministep, from the
// state at the ministep start, using the exact propagator at exactly t.
// This is what makes the root finder resolution-independent: it never
// reuses the cached whole-step coefficients.
func (nrn *Neuron) vAt(t float32, pre *State, iConst float32) float32 {
	coE := nrn.Cache.AlphaE.Coeffs(t)
	coI := nrn.Cache.AlphaI.Coeffs(t)
	return coE.PM*pre.V + coE.P30*iConst + coE.P31*pre.Y1E + coE.P32*pre.Y2E +
		coI.P31*pre.Y1I + coI.P32*pre.Y2I
}

// findCrossing localizes the threshold crossing within a ministep of
// duration du msec, given the (sub-threshold) state at its start and the
// constant current over it.  The caller must already have detected that
// the potential is super-threshold at the ministep end.  Returns the
// crossing offset measured backward from the ministep end, in [0, du].
// Uses regula falsi with a bisection fallback; non-convergence within
// Params.Root.MaxIter is a SolverError, fatal for the run.
func (nrn *Neuron) findCrossing(du float32, pre *State, iConst float32) (float32, error) {
	pr := &nrn.Params
	tL, fL := float32(0), pre.V-pr.Theta
	if fL >= 0 { // started at or above threshold: crossing is immediate
		return du, nil
	}
	tR := du
	fR := nrn.vAt(du, pre, iConst) - pr.Theta
	if fR < 0 {
		return 0, &sim.SolverError{Model: "precise.Neuron " + nrn.Nm,
			Status: "findCrossing called without a bracketing sign change"}
	}
	for it := 0; it < pr.Root.MaxIter; it++ {
		t := tL - fL*(tR-tL)/(fR-fL)
		if !(t > tL && t < tR) { // interpolation left the bracket
			t = 0.5 * (tL + tR)
		}
		f := nrn.vAt(t, pre, iConst) - pr.Theta
		if math32.IsNaN(f) {
			return 0, &sim.SolverError{Model: "precise.Neuron " + nrn.Nm,
				Status: "potential is not finite during threshold localization"}
		}
		if math32.Abs(f) < pr.Root.Tol || tR-tL < 1e-6*du {
			return du - t, nil
		}
		if f > 0 {
			tR, fR = t, f
		} else {
			tL, fL = t, f
		}
	}
	return 0, &sim.SolverError{Model: "precise.Neuron " + nrn.Nm,
		Status: "threshold localization did not converge"}
}
