// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package eprop implements an integrate-and-fire neuron with delta-shaped
postsynaptic currents and e-prop (eligibility propagation) plasticity,
together with the plastic synapse model that reconstructs eligibility
traces and weight gradients from the neuron's per-step learning history
when a presynaptic spike is processed.

The neuron records, for every step, its spike state, the surrogate
gradient of its membrane potential, the learning signal received from
downstream readout error, and a firing-rate regularization term.  Each
incoming plastic synapse reads this history over the interval between its
previous and current presynaptic spike (bounded by a trace cutoff),
reconstructs the low-pass-filtered eligibility trace, accumulates the
weight gradient, and hands it to its weight optimizer.
*/
package eprop

import (
	"fmt"

	"cogentcore.org/core/math32"

	"github.com/espike/espike/propagator"
	"github.com/espike/espike/ringbuf"
	"github.com/espike/espike/sim"
)

// State is the mutable per-step state of the e-prop neuron.
type State struct {

	// membrane potential, mV relative to resting.
	V float32

	// externally driven current for the current step, pA.
	I float32

	// 1 if the neuron spiked on the last update step, else 0.
	Z float32

	// surrogate gradient value for the last update step.
	Psi float32

	// learning signal consumed on the last update step.
	LSignal float32

	// running average firing rate, spikes per step.
	FRAvg float32

	// refractory countdown in steps; > 0 means refractory.
	RefrSteps int

	// input accumulated during refractoriness (RefrInput option),
	// discounted by membrane decay each step.
	VRefr float32

	// step on which the last spike was emitted; -1 if none yet.
	LastSpikeStep int
}

// Buffers are the input buffers owned by the neuron.  The delta-PSC
// model is step-granular, so spikes accumulate as per-step weight sums
// rather than precise events.
type Buffers struct {

	// per-step summed incoming spike weights (mV jumps).
	Spikes ringbuf.Buffer

	// per-step accumulated external current contributions.
	Currents ringbuf.Buffer

	// per-step accumulated learning signal from readout error.
	LSignals ringbuf.Buffer
}

// Cache holds coefficients derived from Params and the resolution.
type Cache struct {

	// membrane propagator constants.
	Mem propagator.Membrane

	// whole-step membrane decay exp(-h/tau_m).
	PM float32

	// whole-step DC input propagator.
	P30 float32

	// refractory period in whole steps.
	TRefSteps int

	// per-step rate constant for the firing-rate running average.
	FRDt float32

	// configured pseudo-derivative function.
	Psi func(v float32) float32

	// step duration the cache was computed for.
	StepMS float32
}

// Neuron is the e-prop plastic delta-PSC integrate-and-fire neuron.
type Neuron struct {
	sim.NodeBase

	// constant parameters.
	Params Params

	// continuous and discrete update state.
	State State

	// input buffers.
	Bufs Buffers

	// derived coefficients; valid for Cache.StepMS only.
	Cache Cache

	// per-step learning history read by incoming plastic synapses.
	Hist History
}

// New returns a new neuron with default parameters and the given name.
func New(name string) *Neuron {
	nrn := &Neuron{}
	nrn.Nm = name
	nrn.Params.Defaults()
	return nrn
}

// SetParams validates the given parameters and commits them atomically;
// on error the prior configuration is untouched.
func (nrn *Neuron) SetParams(pr *Params) error {
	stage := *pr
	stage.Update()
	if err := stage.Validate(); err != nil {
		return err
	}
	nrn.Params = stage
	return nil
}

// Init validates parameters, computes the derived coefficients for the
// context's resolution, sizes the buffers, and resets state and history.
func (nrn *Neuron) Init(ctx *sim.Context) error {
	nrn.Params.Update()
	if err := nrn.Params.Validate(); err != nil {
		return err
	}
	pr := &nrn.Params
	nrn.Cache.Mem = propagator.Membrane{TauM: pr.TauM, C: pr.Cm}
	nrn.Cache.PM = nrn.Cache.Mem.Decay(ctx.StepMS)
	nrn.Cache.P30 = nrn.Cache.Mem.DCInput(ctx.StepMS)
	nrn.Cache.TRefSteps = ctx.StepsFromMS(pr.TRef)
	nrn.Cache.FRDt = ctx.StepMS / pr.FRTau
	nrn.Cache.Psi = pr.PsiFunc()
	nrn.Cache.StepMS = ctx.StepMS
	nrn.Bufs.Spikes.Init(ctx.BufferSteps())
	nrn.Bufs.Currents.Init(ctx.BufferSteps())
	nrn.Bufs.LSignals.Init(ctx.BufferSteps())
	nrn.State = State{LastSpikeStep: -1}
	// spikes generated anywhere within a slice are delivered after its
	// barrier, so a first-spike reader can anchor up to MinDelaySteps-1
	// steps behind the last pruned step
	nrn.Hist.Init(ctx.Step, ctx.MinDelaySteps)
	return nil
}

// HandleSpike accumulates an incoming spike weight for its delivery step.
// Sub-step offsets are dropped: the delta-PSC model is step-granular.
func (nrn *Neuron) HandleSpike(ctx *sim.Context, ev *sim.SpikeEvent) {
	nrn.Bufs.Spikes.Add(ctx.Step, ev.DeliveryStep(), ev.Weight*float32(ev.Multiplicity))
}

// HandleCurrent accumulates an incoming current contribution.
func (nrn *Neuron) HandleCurrent(ctx *sim.Context, ev *sim.CurrentEvent) {
	nrn.Bufs.Currents.Add(ctx.Step, ev.DeliveryStep(), ev.Current)
}

// AddLearningSignal accumulates weighted readout error for the given
// delivery step; it enters the learning history when that step updates.
func (nrn *Neuron) AddLearningSignal(curStep, deliveryStep int, v float32) {
	nrn.Bufs.LSignals.Add(curStep, deliveryStep, v)
}

// Update advances the neuron by one elementary step: exact membrane decay
// plus DC propagator, delta spike jumps, threshold test, refractory
// countdown, and appends this step's learning history entry.
func (nrn *Neuron) Update(ctx *sim.Context, send sim.SendSpike) error {
	pr := &nrn.Params
	st := &nrn.State
	ca := &nrn.Cache
	step := ctx.Step

	inW := nrn.Bufs.Spikes.ReadClear(step)
	st.I = nrn.Bufs.Currents.ReadClear(step)
	st.LSignal = nrn.Bufs.LSignals.ReadClear(step)
	iConst := pr.IE + st.I

	st.Z = 0
	if st.RefrSteps > 0 {
		if pr.RefrInput {
			st.VRefr = ca.PM*st.VRefr + ca.P30*iConst + inW
		}
		st.RefrSteps--
		st.V = pr.VReset
		if st.RefrSteps == 0 && pr.RefrInput {
			st.V = math32.Max(pr.VReset+st.VRefr, pr.VMin)
			st.VRefr = 0
		}
		st.Psi = 0 // not excitable: no gradient flows
	} else {
		st.V = math32.Max(ca.PM*st.V+ca.P30*iConst+inW, pr.VMin)
		st.Psi = ca.Psi(st.V)
		if st.V >= pr.Theta {
			st.Z = 1
			st.V = pr.VReset
			st.RefrSteps = ca.TRefSteps
			st.LastSpikeStep = step
			if send != nil {
				send(0, 1, 1)
			}
		}
	}
	st.FRAvg += ca.FRDt * (st.Z - st.FRAvg)

	nrn.Hist.Append(step, HistEntry{Z: st.Z, Psi: st.Psi, LSignal: st.LSignal, FRReg: st.FRAvg - pr.FTarget})
	nrn.Hist.Prune(step)
	if math32.IsNaN(st.V) || math32.IsInf(st.V, 0) {
		return &sim.SolverError{Model: "eprop.Neuron " + nrn.Nm, Status: "membrane potential is not finite"}
	}
	return nil
}

// NeuronVars are the recordable state variables.
var NeuronVars = []string{"V", "I", "Z", "Psi", "LSignal", "FRAvg"}

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
	case "I":
		return st.I, nil
	case "Z":
		return st.Z, nil
	case "Psi":
		return st.Psi, nil
	case "LSignal":
		return st.LSignal, nil
	case "FRAvg":
		return st.FRAvg, nil
	}
	return 0, fmt.Errorf("eprop.Neuron VarByName: variable name: %v not valid", varNm)
}

// SetVarByName sets the given state variable, or returns an error if the
// name is not valid.
func (nrn *Neuron) SetVarByName(varNm string, val float32) error {
	st := &nrn.State
	switch varNm {
	case "V":
		st.V = val
	case "I":
		st.I = val
	case "Z":
		st.Z = val
	case "Psi":
		st.Psi = val
	case "LSignal":
		st.LSignal = val
	case "FRAvg":
		st.FRAvg = val
	default:
		return fmt.Errorf("eprop.Neuron SetVarByName: variable name: %v not valid", varNm)
	}
	return nil
}
