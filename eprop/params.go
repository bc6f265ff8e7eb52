// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"cogentcore.org/core/math32"

	"github.com/espike/espike/sim"
)

// SurrogateGradients are the selectable pseudo-derivative functions used
// in place of the non-differentiable spike threshold.  The variant is
// chosen once at configuration time and invoked through a stable function
// value, never re-selected per step.
type SurrogateGradients int32 //enums:enum

const (
	// PiecewiseLinear: gamma * max(0, 1 - beta*|v - theta|/theta) / theta.
	PiecewiseLinear SurrogateGradients = iota

	// Exponential: gamma * exp(-beta*|v - theta|/theta) / theta.
	Exponential

	SurrogateGradientsN
)

// Params are the constant parameters of the e-prop plastic
// integrate-and-fire neuron with delta-shaped postsynaptic currents.
// Potentials are in mV relative to resting.
type Params struct {

	// membrane time constant in msec.
	TauM float32 `def:"10" min:"0"`

	// membrane capacitance in pF.
	Cm float32 `def:"250" min:"0"`

	// absolute refractory period in msec; rounded to whole steps.
	TRef float32 `def:"2" min:"0"`

	// spike threshold in mV, relative to resting.
	Theta float32 `def:"15"`

	// post-spike reset potential in mV, relative to resting.
	VReset float32 `def:"0"`

	// lower bound on the membrane potential in mV.
	VMin float32 `def:"-inf"`

	// constant external input current in pA.
	IE float32 `def:"0"`

	// resting potential in mV, display only.
	EL float32 `def:"-70"`

	// accumulate input arriving during refractoriness, discounted by the
	// elapsed membrane decay, and apply it when the period ends, instead
	// of discarding it.
	RefrInput bool

	// surrogate gradient (pseudo-derivative) function.
	Surrogate SurrogateGradients

	// surrogate gradient sharpness.
	Beta float32 `def:"1" min:"0"`

	// surrogate gradient amplitude.
	Gamma float32 `def:"0.3" min:"0"`

	// low-pass filter factor per step for the eligibility trace e_bar,
	// in [0, 1): larger retains more history.
	Kappa float32 `def:"0.97" min:"0" max:"1"`

	// coefficient of the firing-rate regularization term added to the
	// learning signal in the gradient.
	CReg float32 `def:"0"`

	// maximum number of steps of an inter-spike interval that the
	// eligibility recursion iterates over; any remaining gap is bridged by
	// analytic decay of the traces.
	TraceCutoff int `def:"100" min:"1"`

	// target firing rate for regularization, in spikes per step.
	FTarget float32 `def:"0.01" min:"0"`

	// time constant of the running firing-rate average used by the
	// regularization, in msec.
	FRTau float32 `def:"1000" min:"0"`
}

func (pr *Params) Defaults() {
	pr.TauM = 10
	pr.Cm = 250
	pr.TRef = 2
	pr.Theta = 15
	pr.VReset = 0
	pr.VMin = math32.Inf(-1)
	pr.IE = 0
	pr.EL = -70
	pr.RefrInput = false
	pr.Surrogate = PiecewiseLinear
	pr.Beta = 1
	pr.Gamma = 0.3
	pr.Kappa = 0.97
	pr.CReg = 0
	pr.TraceCutoff = 100
	pr.FTarget = 0.01
	pr.FRTau = 1000
}

func (pr *Params) Update() {
}

// Validate checks all parameter values, returning a BadPropertyError for
// the first invalid one.
func (pr *Params) Validate() error {
	switch {
	case pr.TauM <= 0:
		return &sim.BadPropertyError{Model: "eprop.Params", Prop: "TauM", Reason: "time constant must be > 0"}
	case pr.Cm <= 0:
		return &sim.BadPropertyError{Model: "eprop.Params", Prop: "Cm", Reason: "capacitance must be > 0"}
	case pr.TRef < 0:
		return &sim.BadPropertyError{Model: "eprop.Params", Prop: "TRef", Reason: "refractory time must be >= 0"}
	case pr.VReset >= pr.Theta:
		return &sim.BadPropertyError{Model: "eprop.Params", Prop: "VReset", Reason: "reset potential must be below threshold"}
	case pr.VMin > pr.VReset:
		return &sim.BadPropertyError{Model: "eprop.Params", Prop: "VMin", Reason: "lower bound must be <= reset potential"}
	case pr.Surrogate < 0 || pr.Surrogate >= SurrogateGradientsN:
		return &sim.BadPropertyError{Model: "eprop.Params", Prop: "Surrogate", Reason: "unknown surrogate gradient function"}
	case pr.Kappa < 0 || pr.Kappa >= 1:
		return &sim.BadPropertyError{Model: "eprop.Params", Prop: "Kappa", Reason: "must be in [0, 1)"}
	case pr.TraceCutoff < 1:
		return &sim.BadPropertyError{Model: "eprop.Params", Prop: "TraceCutoff", Reason: "must be >= 1 step"}
	case pr.FRTau <= 0:
		return &sim.BadPropertyError{Model: "eprop.Params", Prop: "FRTau", Reason: "time constant must be > 0"}
	}
	return nil
}

// PsiFunc returns the configured pseudo-derivative function of the
// membrane potential.
func (pr *Params) PsiFunc() func(v float32) float32 {
	beta, gamma, theta := pr.Beta, pr.Gamma, pr.Theta
	switch pr.Surrogate {
	case Exponential:
		return func(v float32) float32 {
			return gamma * math32.Exp(-beta*math32.Abs(v-theta)/theta) / theta
		}
	default: // PiecewiseLinear
		return func(v float32) float32 {
			return gamma * math32.Max(0, 1-beta*math32.Abs(v-theta)/theta) / theta
		}
	}
}
