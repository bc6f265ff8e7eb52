// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package precise

import (
	"cogentcore.org/core/math32"

	"github.com/espike/espike/propagator"
	"github.com/espike/espike/sim"
)

// advanceWith applies one exact propagator interval to the full state,
// with iConst the constant current over the interval.  The potential is
// pinned to VReset while refractory and clamped to VMin always; synaptic
// state keeps evolving regardless.
func (nrn *Neuron) advanceWith(coE, coI *propagator.AlphaCoeffs, iConst float32) {
	st := &nrn.State
	v := coE.PM*st.V + coE.P30*iConst + coE.P31*st.Y1E + coE.P32*st.Y2E + coI.P31*st.Y1I + coI.P32*st.Y2I
	st.Y1E, st.Y2E = coE.AdvanceSyn(st.Y1E, st.Y2E)
	st.Y1I, st.Y2I = coI.AdvanceSyn(st.Y1I, st.Y2I)
	if st.Refractory {
		v = nrn.Params.VReset
	}
	st.V = math32.Max(v, nrn.Params.VMin)
}

// advance moves the state forward by du msec, reusing the cached
// whole-step coefficients when du is exactly one step (the dominant
// no-event case).
func (nrn *Neuron) advance(du, iConst float32) {
	if du == 0 {
		return
	}
	if du == nrn.Cache.StepMS {
		nrn.advanceWith(&nrn.Cache.StepE, &nrn.Cache.StepI, iConst)
		return
	}
	coE := nrn.Cache.AlphaE.Coeffs(du)
	coI := nrn.Cache.AlphaI.Coeffs(du)
	nrn.advanceWith(&coE, &coI, iConst)
}

// applySpike adds an incoming weighted spike to the appropriate synaptic
// rise variable; weight sign selects the excitatory vs. inhibitory
// channel (each with its own time constant).
func (nrn *Neuron) applySpike(w float32, mult int) {
	w *= float32(mult)
	if w >= 0 {
		nrn.State.Y1E += w * nrn.Cache.PSCInitE
	} else {
		nrn.State.Y1I += w * nrn.Cache.PSCInitI
	}
}

// emitSpike resets the state at a threshold crossing uSpike msec after
// the start of the current step, emits the spike with the corresponding
// backward offset, and queues the end-of-refractory event at the exact
// time the refractory period expires.
func (nrn *Neuron) emitSpike(ctx *sim.Context, send sim.SendSpike, uSpike float32) {
	pr := &nrn.Params
	st := &nrn.State
	h := ctx.StepMS
	st.V = pr.VReset
	st.Spike = 1
	st.LastSpikeStep = ctx.Step
	st.LastSpikeOffset = h - uSpike
	if send != nil {
		send(st.LastSpikeOffset, 1, 1)
	}
	if pr.TRef <= 0 {
		return
	}
	st.Refractory = true
	endU := uSpike + pr.TRef // ms after start of current step
	ds := int(endU / h)
	rem := endU - float32(ds)*h
	off := h - rem
	dStep := ctx.Step + ds
	if off >= h { // end exactly on a step boundary
		off = 0
		dStep--
	}
	nrn.Bufs.Events.AddRefractory(ctx.Step, dStep, off)
}

// Update advances the neuron by one elementary step, consuming all events
// due at this step in exact temporal order.  With no events pending it is
// a single cached whole-step propagator application; otherwise the state
// is chained through exact ministeps between events, with threshold
// crossings localized by the root finder.
func (nrn *Neuron) Update(ctx *sim.Context, send sim.SendSpike) error {
	pr := &nrn.Params
	st := &nrn.State
	h := ctx.StepMS
	step := ctx.Step
	st.Spike = 0
	st.I = nrn.Bufs.Currents.ReadClear(step)
	iConst := pr.IE + st.I
	eq := &nrn.Bufs.Events
	eq.PrepareDelivery(step)

	u := float32(0) // position within the step, from its start
	for {
		ev, ok := eq.Next(step)
		uEv := h
		if ok {
			uEv = h - ev.Offset
		}
		if du := uEv - u; du > 0 {
			pre := *st
			nrn.advance(du, iConst)
			if !st.Refractory && st.V >= pr.Theta {
				offEnd, err := nrn.findCrossing(du, &pre, iConst)
				if err != nil {
					return err
				}
				nrn.emitSpike(ctx, send, u+(du-offEnd))
			}
			u = uEv
		}
		if !ok {
			break
		}
		if ev.EndOfRefract {
			st.Refractory = false
		} else {
			nrn.applySpike(ev.Weight, ev.Multiplicity)
		}
	}
	if math32.IsNaN(st.V) || math32.IsInf(st.V, 0) {
		return &sim.SolverError{Model: "precise.Neuron " + nrn.Nm, Status: "membrane potential is not finite"}
	}
	return nil
}
