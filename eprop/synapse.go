// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"fmt"

	"cogentcore.org/core/math32"

	"github.com/espike/espike/optimizer"
	"github.com/espike/espike/sim"
)

// SynapseModel groups the optimizer configuration shared by all synapses
// of one plastic connection model.  The common properties are sealed when
// the first synapse instance is created; the optimizer given at
// construction is the prototype cloned into each instance.
type SynapseModel struct {

	// optimizer properties shared by all synapses of this model.
	Common optimizer.CommonParams

	// prototype optimizer; each synapse gets a zeroed clone.
	Opt optimizer.Optimizer
}

// NewSynapseModel returns a model with default common properties and the
// given optimizer prototype.
func NewSynapseModel(opt optimizer.Optimizer) *SynapseModel {
	sm := &SynapseModel{Opt: opt}
	sm.Common.Defaults()
	return sm
}

// SetParams validates and commits new common optimizer properties; fails
// once any synapse instance exists.
func (sm *SynapseModel) SetParams(cp *optimizer.CommonParams) error {
	return sm.Common.SetParams(cp)
}

// NewSynapse creates a synapse instance of this model with the given
// initial weight, sealing the common properties.
func (sm *SynapseModel) NewSynapse(w float32) *Synapse {
	sm.Common.Seal()
	return &Synapse{Mod: sm, W: w, Opt: sm.Opt.Clone(), LastSpikeStep: -1, Reader: -1}
}

// SynFn adapts NewSynapse to the per-connection constructor signature of
// Network.Connect, with uniform initial weight.
func (sm *SynapseModel) SynFn(w float32) func(si, ri int) sim.Synapse {
	return func(si, ri int) sim.Synapse {
		return sm.NewSynapse(w)
	}
}

// Synapse is one plastic e-prop connection onto an eprop.Neuron.  It owns
// the weight and the eligibility trace state, reconstructed lazily from
// the receiver's learning history whenever a presynaptic spike is
// processed.
type Synapse struct {

	// owning model (shared optimizer properties).
	Mod *SynapseModel

	// current synaptic weight.
	W float32

	// low-pass-filtered presynaptic spike trace z_bar.
	ZBar float32

	// low-pass-filtered eligibility trace e_bar.
	EBar float32

	// per-synapse optimizer state.
	Opt optimizer.Optimizer

	// step of the last processed presynaptic spike; -1 before the first.
	LastSpikeStep int

	// reader id in the receiver's learning history; -1 before the first
	// spike.
	Reader int
}

// Deliver processes a presynaptic spike: it replays the receiver's
// learning history over the interval since the previous presynaptic
// spike, updates the weight through the optimizer, and then enqueues the
// spike on the receiver with the updated weight.  ev.Weight acts as a
// sign/scale factor on the plastic weight (1 for plain connections).
func (sy *Synapse) Deliver(ctx *sim.Context, recv sim.Node, ev *sim.SpikeEvent) error {
	nrn, ok := recv.(*Neuron)
	if !ok {
		return &sim.BadPropertyError{Model: "eprop.Synapse", Prop: "Recv",
			Reason: fmt.Sprintf("receiver %s is not an eprop.Neuron", recv.Name())}
	}
	to := ev.Step
	if sy.LastSpikeStep >= 0 {
		sy.ComputeGradient(nrn, sy.LastSpikeStep, to)
		nrn.Hist.MoveReader(sy.Reader, to)
	} else {
		// first spike: no interval to integrate, just anchor the history
		sy.Reader = nrn.Hist.RegisterReader(to)
	}
	sy.LastSpikeStep = to
	fwd := *ev
	fwd.Weight = ev.Weight * sy.W
	nrn.HandleSpike(ctx, &fwd)
	return nil
}

// ComputeGradient iterates the eligibility recursion over the steps
// [from, min(from+TraceCutoff, to)) of the receiver's learning history
// and applies the resulting weight gradient through the optimizer:
//
//	z_bar <- alpha*z_bar + z        alpha = exp(-h/tau_m)
//	e     =  psi * z_bar
//	e_bar <- kappa*e_bar + (1-kappa)*e
//	grad  += (L + c_reg*fr_reg) * e_bar
//
// where z is 1 on the step of the previous presynaptic spike and 0 after.
// If the cutoff truncates the interval, the remaining gap is bridged by
// decaying the traces with integer powers of alpha and kappa, which
// equals iterating the recursion with zero input.  With OptimizeEachStep
// the optimizer runs inside the loop at each step index; otherwise once
// with the accumulated gradient at index to.  A zero-length interval
// performs no iterations but still makes the single batch call.
func (sy *Synapse) ComputeGradient(nrn *Neuron, from, to int) {
	cp := &sy.Mod.Common
	pr := &nrn.Params
	alpha := nrn.Cache.PM
	kappa := pr.Kappa
	end := to
	if cut := from + pr.TraceCutoff; cut < end {
		end = cut
	}
	grad := float32(0)
	for t := from; t < end; t++ {
		z := float32(0)
		if t == from {
			z = 1
		}
		sy.ZBar = alpha*sy.ZBar + z
		ent := nrn.Hist.Entry(t)
		e := ent.Psi * sy.ZBar
		sy.EBar = kappa*sy.EBar + (1-kappa)*e
		g := (ent.LSignal + pr.CReg*ent.FRReg) * sy.EBar
		if cp.OptimizeEachStep {
			sy.W = sy.Opt.OptimizedWeight(cp, int64(t), g, sy.W)
		} else {
			grad += g
		}
	}
	if gap := to - end; gap > 0 {
		sy.ZBar *= math32.Pow(alpha, float32(gap))
		sy.EBar *= math32.Pow(kappa, float32(gap))
	}
	if !cp.OptimizeEachStep {
		sy.W = sy.Opt.OptimizedWeight(cp, int64(to), grad, sy.W)
	}
}
