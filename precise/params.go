// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package precise

import (
	"cogentcore.org/core/math32"

	"github.com/espike/espike/sim"
)

// RootParams are the convergence parameters for the threshold-crossing
// root finder.
type RootParams struct {

	// convergence tolerance on the potential, in mV: iteration stops when
	// the trial potential is within Tol of the threshold.
	Tol float32 `def:"1e-05" min:"0"`

	// maximum regula falsi iterations before reporting solver failure.
	MaxIter int `def:"60" min:"1"`
}

func (rp *RootParams) Update() {
}

func (rp *RootParams) Defaults() {
	rp.Tol = 1e-5
	rp.MaxIter = 60
}

// Params are the constant parameters of the precise-timing alpha-PSC
// integrate-and-fire neuron.  Potentials are relative to the resting
// potential EL, which is carried for display only.
type Params struct {

	// membrane time constant in msec.
	TauM float32 `def:"10" min:"0"`

	// membrane capacitance in pF.
	Cm float32 `def:"250" min:"0"`

	// excitatory synaptic alpha-kernel time constant in msec.
	TauSynE float32 `def:"2" min:"0"`

	// inhibitory synaptic alpha-kernel time constant in msec.
	TauSynI float32 `def:"2" min:"0"`

	// absolute refractory period in msec.
	TRef float32 `def:"2" min:"0"`

	// spike threshold in mV, relative to resting.
	Theta float32 `def:"15"`

	// post-spike reset potential in mV, relative to resting.
	VReset float32 `def:"0"`

	// lower bound on the membrane potential in mV; the potential is
	// clamped here at every state update.
	VMin float32 `def:"-inf"`

	// constant external input current in pA.
	IE float32 `def:"0"`

	// resting potential in mV, display only; all dynamics are relative.
	EL float32 `def:"-70"`

	// threshold root-finder convergence parameters.
	Root RootParams `display:"inline"`
}

func (pr *Params) Defaults() {
	pr.TauM = 10
	pr.Cm = 250
	pr.TauSynE = 2
	pr.TauSynI = 2
	pr.TRef = 2
	pr.Theta = 15
	pr.VReset = 0
	pr.VMin = math32.Inf(-1)
	pr.IE = 0
	pr.EL = -70
	pr.Root.Defaults()
	pr.Update()
}

func (pr *Params) Update() {
	pr.Root.Update()
}

// Validate checks all parameter values, returning a BadPropertyError for
// the first invalid one.  Callers stage changes on a copy and commit only
// when this passes, so a failed set leaves the prior configuration intact.
func (pr *Params) Validate() error {
	switch {
	case pr.TauM <= 0:
		return &sim.BadPropertyError{Model: "precise.Params", Prop: "TauM", Reason: "time constant must be > 0"}
	case pr.Cm <= 0:
		return &sim.BadPropertyError{Model: "precise.Params", Prop: "Cm", Reason: "capacitance must be > 0"}
	case pr.TauSynE <= 0:
		return &sim.BadPropertyError{Model: "precise.Params", Prop: "TauSynE", Reason: "time constant must be > 0"}
	case pr.TauSynI <= 0:
		return &sim.BadPropertyError{Model: "precise.Params", Prop: "TauSynI", Reason: "time constant must be > 0"}
	case pr.TRef < 0:
		return &sim.BadPropertyError{Model: "precise.Params", Prop: "TRef", Reason: "refractory time must be >= 0"}
	case pr.VReset >= pr.Theta:
		return &sim.BadPropertyError{Model: "precise.Params", Prop: "VReset", Reason: "reset potential must be below threshold"}
	case pr.VMin > pr.VReset:
		return &sim.BadPropertyError{Model: "precise.Params", Prop: "VMin", Reason: "lower bound must be <= reset potential"}
	case pr.Root.Tol <= 0:
		return &sim.BadPropertyError{Model: "precise.Params", Prop: "Root.Tol", Reason: "tolerance must be > 0"}
	case pr.Root.MaxIter < 1:
		return &sim.BadPropertyError{Model: "precise.Params", Prop: "Root.MaxIter", Reason: "must be >= 1"}
	}
	return nil
}
