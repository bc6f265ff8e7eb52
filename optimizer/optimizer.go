// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package optimizer provides the pluggable stochastic-gradient weight
optimizers used by the plastic synapse models: plain gradient descent and
Adam.  Each synapse owns its optimizer instance (accumulated gradient and
any moment estimates are per-synapse state); the CommonParams are shared
per synapse model and are read-only once the first synapse instance has
been created.
*/
package optimizer

import (
	"cogentcore.org/core/math32"
	"cogentcore.org/core/math32/minmax"

	"github.com/espike/espike/sim"
)

// CommonParams are the optimizer parameters shared by all synapses of one
// model.  They are sealed when the first synapse instance is created;
// mutating them afterwards is a configuration error.
type CommonParams struct {

	// learning rate.
	Eta float32 `def:"0.0001" min:"0"`

	// number of update steps per optimization batch: gradients are
	// accumulated over this many steps and applied as their mean.
	BatchSize int `def:"1" min:"1"`

	// weight bounds: the weight is clamped into this range after every
	// optimization call.
	WRange minmax.F32 `def:"{'Min':-100,'Max':100}"`

	// invoke the optimizer at every iterated step of the gradient
	// computation instead of once per presynaptic spike interval.
	OptimizeEachStep bool

	sealed bool
}

func (cp *CommonParams) Defaults() {
	cp.Eta = 1e-4
	cp.BatchSize = 1
	cp.WRange.Set(-100, 100)
}

func (cp *CommonParams) Update() {
}

// Validate checks the parameter values, returning a BadPropertyError for
// the first invalid one.
func (cp *CommonParams) Validate() error {
	switch {
	case cp.Eta < 0:
		return &sim.BadPropertyError{Model: "optimizer.CommonParams", Prop: "Eta", Reason: "learning rate must be >= 0"}
	case cp.BatchSize < 1:
		return &sim.BadPropertyError{Model: "optimizer.CommonParams", Prop: "BatchSize", Reason: "must be >= 1"}
	case cp.WRange.Min > cp.WRange.Max:
		return &sim.BadPropertyError{Model: "optimizer.CommonParams", Prop: "WRange", Reason: "Min must be <= Max"}
	}
	return nil
}

// SetParams validates and commits new common parameters atomically.
// Returns a BadPropertyError if any synapse instance already exists
// (the parameters are sealed) or if a value is invalid.
func (cp *CommonParams) SetParams(src *CommonParams) error {
	if cp.sealed {
		return &sim.BadPropertyError{Model: "optimizer.CommonParams", Prop: "*",
			Reason: "cannot change common properties once synapse instances exist"}
	}
	stage := *src
	stage.sealed = false
	stage.Update()
	if err := stage.Validate(); err != nil {
		return err
	}
	*cp = stage
	return nil
}

// Seal marks the common parameters read-only; called when the first
// synapse instance of the model is created.
func (cp *CommonParams) Seal() {
	cp.sealed = true
}

// Optimizer is the per-synapse weight optimization strategy.  The variant
// is selected once at configuration time; per-step code only goes through
// this interface.
type Optimizer interface {

	// OptimizedWeight accumulates gradChange and, when idxCurrent crosses
	// into a new batch of cp.BatchSize steps, applies one optimization
	// with the batch-mean gradient and returns the new clamped weight;
	// otherwise the weight is returned unchanged.
	OptimizedWeight(cp *CommonParams, idxCurrent int64, gradChange, w float32) float32

	// Init resets all accumulated state.
	Init()

	// Clone returns a fresh instance of the same variant and
	// configuration, with zeroed state, for a new synapse.
	Clone() Optimizer
}

// batchStep returns the 1-based optimization step that idxCurrent falls
// into for the given batch size.
func batchStep(idxCurrent int64, batchSize int) int64 {
	return 1 + idxCurrent/int64(batchSize)
}

//////////////////////////////////////////////////////////////////////////////////////
//  GradientDescent

// GradientDescent is plain stochastic gradient descent:
// w -= eta * meanGradient, clamped to the weight bounds.
type GradientDescent struct {

	// gradient accumulated since the last optimization.
	SumGrad float32

	// 1-based batch currently being accumulated; gradients with step
	// indices inside this batch accumulate, a later index applies them.
	OptStep int64
}

// NewGradientDescent returns a new, zeroed gradient descent optimizer.
func NewGradientDescent() *GradientDescent {
	return &GradientDescent{OptStep: 1}
}

func (gd *GradientDescent) Init() {
	gd.SumGrad = 0
	gd.OptStep = 1
}

func (gd *GradientDescent) Clone() Optimizer {
	return NewGradientDescent()
}

func (gd *GradientDescent) OptimizedWeight(cp *CommonParams, idxCurrent int64, gradChange, w float32) float32 {
	gd.SumGrad += gradChange
	cur := batchStep(idxCurrent, cp.BatchSize)
	if gd.OptStep >= cur {
		return w
	}
	g := gd.SumGrad / float32(cp.BatchSize)
	gd.SumGrad = 0
	gd.OptStep = cur
	return cp.WRange.ClipValue(w - cp.Eta*g)
}

//////////////////////////////////////////////////////////////////////////////////////
//  Adam

// Adam implements the Adam optimizer with bias-corrected first and second
// raw moment estimates.
type Adam struct {

	// first moment decay rate.
	Beta1 float32 `def:"0.9" min:"0" max:"1"`

	// second moment decay rate.
	Beta2 float32 `def:"0.999" min:"0" max:"1"`

	// numerical stability constant in the denominator.
	Epsilon float32 `def:"1e-08" min:"0"`

	// first raw moment estimate.
	M float32

	// second raw moment estimate.
	V float32

	// gradient accumulated since the last optimization.
	SumGrad float32

	// 1-based batch currently being accumulated.
	OptStep int64

	// number of optimizations applied so far; the bias-correction power.
	NOpt int64
}

// NewAdam returns a new Adam optimizer with default decay rates.
func NewAdam() *Adam {
	ad := &Adam{OptStep: 1}
	ad.Defaults()
	return ad
}

func (ad *Adam) Defaults() {
	ad.Beta1 = 0.9
	ad.Beta2 = 0.999
	ad.Epsilon = 1e-8
}

// Validate checks the decay-rate configuration.
func (ad *Adam) Validate() error {
	switch {
	case ad.Beta1 < 0 || ad.Beta1 >= 1:
		return &sim.BadPropertyError{Model: "optimizer.Adam", Prop: "Beta1", Reason: "must be in [0, 1)"}
	case ad.Beta2 < 0 || ad.Beta2 >= 1:
		return &sim.BadPropertyError{Model: "optimizer.Adam", Prop: "Beta2", Reason: "must be in [0, 1)"}
	case ad.Epsilon <= 0:
		return &sim.BadPropertyError{Model: "optimizer.Adam", Prop: "Epsilon", Reason: "must be > 0"}
	}
	return nil
}

func (ad *Adam) Init() {
	ad.M = 0
	ad.V = 0
	ad.SumGrad = 0
	ad.OptStep = 1
	ad.NOpt = 0
}

func (ad *Adam) Clone() Optimizer {
	cl := &Adam{Beta1: ad.Beta1, Beta2: ad.Beta2, Epsilon: ad.Epsilon, OptStep: 1}
	return cl
}

func (ad *Adam) OptimizedWeight(cp *CommonParams, idxCurrent int64, gradChange, w float32) float32 {
	ad.SumGrad += gradChange
	cur := batchStep(idxCurrent, cp.BatchSize)
	if ad.OptStep >= cur {
		return w
	}
	g := ad.SumGrad / float32(cp.BatchSize)
	ad.SumGrad = 0
	ad.OptStep = cur
	ad.NOpt++
	ad.M = ad.Beta1*ad.M + (1-ad.Beta1)*g
	ad.V = ad.Beta2*ad.V + (1-ad.Beta2)*g*g
	b1 := 1 - math32.Pow(ad.Beta1, float32(ad.NOpt))
	b2 := 1 - math32.Pow(ad.Beta2, float32(ad.NOpt))
	alphaHat := cp.Eta * math32.Sqrt(b2) / b1
	return cp.WRange.ClipValue(w - alphaHat*ad.M/(math32.Sqrt(ad.V)+ad.Epsilon))
}
