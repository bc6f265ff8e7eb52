// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package propagator computes the exact (closed-form) state transition
coefficients for the linear subthreshold ODE systems used by the
current-based integrate-and-fire neuron models.

For a leaky membrane with time constant tau_m, capacitance C, driven by an
alpha-shaped synaptic current with time constant tau_s, the subthreshold
state (y1, y2, V) evolves as:

	y1' = -y1 / tau_s
	y2' = y1 - y2 / tau_s
	C V' = -C V / tau_m + y2 + I_const

which has the exact solution over any interval h:

	y1(h) = PS * y1
	y2(h) = P21 * y1 + PS * y2
	V(h)  = PM * V + P31 * y1 + P32 * y2 + P30 * I_const

with PS = exp(-h/tau_s), PM = exp(-h/tau_m), P21 = h * PS, and P30, P31,
P32 the coupling terms given below.  Because the coefficients are
closed-form functions of h, the same expressions serve both the cached
whole-step update and the arbitrary-length ministep updates between
precise events.

Writing a = 1/tau_s - 1/tau_m and x = a*h:

	P30 = tau_m/C * (1 - PM)
	P32 = PM/(a*C) * (1 - exp(-x))
	P31 = PM/(a^2*C) * (1 - (1 + x) * exp(-x))

The alpha-kernel coupling terms have a removable singularity at
tau_s == tau_m (a -> 0).  Naive evaluation suffers catastrophic
cancellation there, so the implementation factors out expm1 and switches
to the series expansion of the remaining (1 - (1+x)e^-x)/x^2 style factors
for small |x|, with limits P32 -> h*PM/C and P31 -> h^2*PM/(2C).
*/
package propagator

import "cogentcore.org/core/math32"

// singXThr is the |a*h| threshold below which the series branch of the
// singular factors is used; the series error there is below float32 eps.
const singXThr = 0.01

// expRel computes (1 - exp(-x)) / x, the relative single-exponential
// integral factor, with limit 1 at x = 0.
func expRel(x float32) float32 {
	if math32.Abs(x) < singXThr {
		return 1 - x/2 + x*x/6 - x*x*x/24
	}
	return -math32.Expm1(-x) / x
}

// alphaRel computes (1 - (1+x) * exp(-x)) / x^2, the alpha-kernel
// integral factor, with limit 1/2 at x = 0.
func alphaRel(x float32) float32 {
	if math32.Abs(x) < singXThr {
		return 0.5 - x/3 + x*x/8 - x*x*x/30
	}
	return (-math32.Expm1(-x) - x*math32.Exp(-x)) / (x * x)
}

//////////////////////////////////////////////////////////////////////////////////////
//  Membrane

// Membrane holds the fixed constants of a leaky membrane and produces the
// exact decay and DC-input propagators for arbitrary interval lengths.
type Membrane struct {

	// membrane time constant in msec.
	TauM float32 `def:"10" min:"0"`

	// membrane capacitance in pF.
	C float32 `def:"250" min:"0"`
}

func (mp *Membrane) Defaults() {
	mp.TauM = 10
	mp.C = 250
}

// Decay returns PM = exp(-h/tau_m), the membrane decay factor over h msec.
func (mp *Membrane) Decay(h float32) float32 {
	return math32.Exp(-h / mp.TauM)
}

// DCInput returns P30 = tau_m/C * (1 - exp(-h/tau_m)), the propagator
// mapping a constant input current (in pA) to a potential increment
// (in mV) over h msec.
func (mp *Membrane) DCInput(h float32) float32 {
	return -mp.TauM / mp.C * math32.Expm1(-h/mp.TauM)
}

//////////////////////////////////////////////////////////////////////////////////////
//  Alpha

// Alpha holds the fixed constants of a leaky membrane driven by an
// alpha-shaped synaptic current, and produces the full exact coefficient
// set for arbitrary interval lengths.
type Alpha struct {

	// membrane constants.
	Membrane

	// synaptic rise / decay time constant in msec.
	TauSyn float32 `def:"2" min:"0"`
}

func (ap *Alpha) Defaults() {
	ap.Membrane.Defaults()
	ap.TauSyn = 2
}

// AlphaCoeffs is the exact state transition matrix for one interval
// length, for the (y1, y2, V) alpha-PSC system.
type AlphaCoeffs struct {

	// interval length in msec that these coefficients are valid for.
	H float32

	// PS = exp(-h/tau_s): synaptic decay.
	PS float32

	// P21 = h * PS: rise-to-current coupling.
	P21 float32

	// PM = exp(-h/tau_m): membrane decay.
	PM float32

	// P30: DC current to potential.
	P30 float32

	// P31: synaptic rise variable to potential.
	P31 float32

	// P32: synaptic current to potential.
	P32 float32
}

// Coeffs computes the exact coefficients for an interval of h msec.
// h = 0 yields the identity mapping.
func (ap *Alpha) Coeffs(h float32) AlphaCoeffs {
	ps := math32.Exp(-h / ap.TauSyn)
	pm := math32.Exp(-h / ap.TauM)
	a := 1/ap.TauSyn - 1/ap.TauM
	x := a * h
	var co AlphaCoeffs
	co.H = h
	co.PS = ps
	co.P21 = h * ps
	co.PM = pm
	co.P30 = -ap.TauM / ap.C * math32.Expm1(-h/ap.TauM)
	co.P32 = pm * h / ap.C * expRel(x)
	co.P31 = pm * h * h / ap.C * alphaRel(x)
	return co
}

// AdvanceV returns the membrane potential after the coefficient interval,
// given the potential and synaptic state at its start and the constant
// current (DC plus external) over the interval.
func (co *AlphaCoeffs) AdvanceV(v, y1, y2, iConst float32) float32 {
	return co.PM*v + co.P31*y1 + co.P32*y2 + co.P30*iConst
}

// AdvanceSyn returns the synaptic state (y1, y2) after the interval.
func (co *AlphaCoeffs) AdvanceSyn(y1, y2 float32) (float32, float32) {
	return co.PS * y1, co.P21*y1 + co.PS*y2
}

//////////////////////////////////////////////////////////////////////////////////////
//  Exp

// Exp holds the fixed constants of a leaky membrane driven by a single
// exponentially decaying synaptic current.
type Exp struct {

	// membrane constants.
	Membrane

	// synaptic decay time constant in msec.
	TauSyn float32 `def:"2" min:"0"`
}

func (ep *Exp) Defaults() {
	ep.Membrane.Defaults()
	ep.TauSyn = 2
}

// ExpCoeffs is the exact state transition matrix for one interval length,
// for the (I, V) exponential-PSC system.
type ExpCoeffs struct {

	// interval length in msec that these coefficients are valid for.
	H float32

	// PS = exp(-h/tau_s): synaptic decay.
	PS float32

	// PM = exp(-h/tau_m): membrane decay.
	PM float32

	// P30: DC current to potential.
	P30 float32

	// PVI: synaptic current to potential.
	PVI float32
}

// Coeffs computes the exact coefficients for an interval of h msec.
func (ep *Exp) Coeffs(h float32) ExpCoeffs {
	ps := math32.Exp(-h / ep.TauSyn)
	pm := math32.Exp(-h / ep.TauM)
	a := 1/ep.TauSyn - 1/ep.TauM
	x := a * h
	var co ExpCoeffs
	co.H = h
	co.PS = ps
	co.PM = pm
	co.P30 = -ep.TauM / ep.C * math32.Expm1(-h/ep.TauM)
	co.PVI = pm * h / ep.C * expRel(x)
	return co
}

// AdvanceV returns the membrane potential after the interval given the
// state at its start and the constant current over it.
func (co *ExpCoeffs) AdvanceV(v, i, iConst float32) float32 {
	return co.PM*v + co.PVI*i + co.P30*iConst
}
