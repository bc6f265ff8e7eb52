// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package precise implements a current-based integrate-and-fire neuron with
alpha-shaped postsynaptic currents and precise (sub-step) spike timing.

Between simulation steps the subthreshold state is advanced with the exact
exponential propagator (package propagator), so the dynamics do not depend
on the simulation resolution.  Incoming spikes carry a sub-step offset and
are applied at their exact time by chaining partial "ministep" updates
within a step; outgoing spikes are localized to their exact threshold
crossing time with a regula falsi root finder and emitted with the
corresponding offset.
*/
package precise

import (
	"fmt"

	"cogentcore.org/core/math32"

	"github.com/espike/espike/propagator"
	"github.com/espike/espike/ringbuf"
	"github.com/espike/espike/sim"
)

// State is the mutable per-step state of the neuron.  Potentials are in
// mV relative to resting; currents in pA.
type State struct {

	// membrane potential.
	V float32

	// excitatory alpha-kernel rise variable (current derivative scale).
	Y1E float32

	// excitatory synaptic current.
	Y2E float32

	// inhibitory alpha-kernel rise variable.
	Y1I float32

	// inhibitory synaptic current.
	Y2I float32

	// externally driven current for the current step, from the current
	// ring buffer, not including the constant IE.
	I float32

	// 1 if the neuron spiked on the last update step, else 0.
	Spike float32

	// true while the refractory period is active: V pinned to VReset and
	// insensitive to input.
	Refractory bool

	// step on which the last spike was emitted; -1 if none yet.
	LastSpikeStep int

	// sub-step offset of the last spike, backward from the end of its
	// step, in msec.
	LastSpikeOffset float32
}

// Buffers are the input buffers owned by the neuron: the precise spike
// event queue and the per-step current accumulation buffer.
type Buffers struct {

	// pending precise spike and end-of-refractory events.
	Events ringbuf.EventQueue

	// per-step accumulated external current contributions.
	Currents ringbuf.Buffer
}

// Cache holds coefficients derived from Params and the simulation
// resolution.  It must be recomputed (via Init) whenever either changes;
// stale coefficients silently produce wrong dynamics.
type Cache struct {

	// excitatory propagator constants.
	AlphaE propagator.Alpha

	// inhibitory propagator constants.
	AlphaI propagator.Alpha

	// cached whole-step excitatory coefficients (the no-event fast path).
	StepE propagator.AlphaCoeffs

	// cached whole-step inhibitory coefficients.
	StepI propagator.AlphaCoeffs

	// alpha-kernel unit amplitude e/tau_syn for the excitatory channel:
	// an incoming weight-w spike adds w * PSCInitE to Y1E so the PSC
	// peaks at w pA.
	PSCInitE float32

	// as PSCInitE, for the inhibitory channel.
	PSCInitI float32

	// step duration the cache was computed for.
	StepMS float32
}

// Neuron is a precise-timing alpha-PSC integrate-and-fire neuron.
// The Params / State / Bufs / Cache split separates what changes at
// configuration time, every step, at event arrival, and only on
// resolution change.
type Neuron struct {
	sim.NodeBase

	// constant parameters.
	Params Params

	// continuous and discrete update state.
	State State

	// input event and current buffers.
	Bufs Buffers

	// derived propagator coefficients; valid for Cache.StepMS only.
	Cache Cache
}

// New returns a new neuron with default parameters and the given name.
func New(name string) *Neuron {
	nrn := &Neuron{}
	nrn.Nm = name
	nrn.Params.Defaults()
	return nrn
}

// SetParams validates the given parameters and commits them atomically:
// on error the neuron's prior configuration is untouched.  Init must be
// called afterwards before further updates.
func (nrn *Neuron) SetParams(pr *Params) error {
	stage := *pr
	stage.Update()
	if err := stage.Validate(); err != nil {
		return err
	}
	nrn.Params = stage
	return nil
}

// Init validates parameters, computes the propagator cache for the
// context's resolution, sizes the event buffers for its delay horizon,
// and resets the dynamic state.
func (nrn *Neuron) Init(ctx *sim.Context) error {
	nrn.Params.Update()
	if err := nrn.Params.Validate(); err != nil {
		return err
	}
	pr := &nrn.Params
	nrn.Cache.AlphaE = propagator.Alpha{Membrane: propagator.Membrane{TauM: pr.TauM, C: pr.Cm}, TauSyn: pr.TauSynE}
	nrn.Cache.AlphaI = propagator.Alpha{Membrane: propagator.Membrane{TauM: pr.TauM, C: pr.Cm}, TauSyn: pr.TauSynI}
	nrn.Cache.StepE = nrn.Cache.AlphaE.Coeffs(ctx.StepMS)
	nrn.Cache.StepI = nrn.Cache.AlphaI.Coeffs(ctx.StepMS)
	nrn.Cache.PSCInitE = math32.E / pr.TauSynE
	nrn.Cache.PSCInitI = math32.E / pr.TauSynI
	nrn.Cache.StepMS = ctx.StepMS
	nrn.Bufs.Events.Init(ctx.BufferSteps(), ctx.StepMS)
	nrn.Bufs.Currents.Init(ctx.BufferSteps())
	nrn.State = State{LastSpikeStep: -1}
	return nil
}

// HandleSpike enqueues an incoming spike at its delivery step, preserving
// its sub-step offset.
func (nrn *Neuron) HandleSpike(ctx *sim.Context, ev *sim.SpikeEvent) {
	nrn.Bufs.Events.AddSpike(ctx.Step, ev.DeliveryStep(), ev.Offset, ev.Weight, ev.Multiplicity)
}

// HandleCurrent accumulates an incoming current contribution for its
// delivery step.
func (nrn *Neuron) HandleCurrent(ctx *sim.Context, ev *sim.CurrentEvent) {
	nrn.Bufs.Currents.Add(ctx.Step, ev.DeliveryStep(), ev.Current)
}

// NeuronVars are the recordable state variables.
var NeuronVars = []string{"V", "Y1E", "Y2E", "Y1I", "Y2I", "I", "Spike", "LastSpikeOffset"}

// VarNames returns the names of the recordable state variables.
func (nrn *Neuron) VarNames() []string {
	return NeuronVars
}

// VarByName returns the value of the given state variable, or error if
// the name is not valid.
func (nrn *Neuron) VarByName(varNm string) (float32, error) {
	st := &nrn.State
	switch varNm {
	case "V":
		return st.V, nil
	case "Y1E":
		return st.Y1E, nil
	case "Y2E":
		return st.Y2E, nil
	case "Y1I":
		return st.Y1I, nil
	case "Y2I":
		return st.Y2I, nil
	case "I":
		return st.I, nil
	case "Spike":
		return st.Spike, nil
	case "LastSpikeOffset":
		return st.LastSpikeOffset, nil
	}
	return 0, fmt.Errorf("precise.Neuron VarByName: variable name: %v not valid", varNm)
}

// SetVarByName sets the given state variable, or returns an error if the
// name is not valid.
func (nrn *Neuron) SetVarByName(varNm string, val float32) error {
	st := &nrn.State
	switch varNm {
	case "V":
		st.V = val
	case "Y1E":
		st.Y1E = val
	case "Y2E":
		st.Y2E = val
	case "Y1I":
		st.Y1I = val
	case "Y2I":
		st.Y2I = val
	case "I":
		st.I = val
	case "Spike":
		st.Spike = val
	case "LastSpikeOffset":
		st.LastSpikeOffset = val
	default:
		return fmt.Errorf("precise.Neuron SetVarByName: variable name: %v not valid", varNm)
	}
	return nil
}

// VMembrane returns the absolute membrane potential in mV (EL + V),
// for display.
func (nrn *Neuron) VMembrane() float32 {
	return nrn.Params.EL + nrn.State.V
}
