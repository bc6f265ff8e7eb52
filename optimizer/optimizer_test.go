// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimizer

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"cogentcore.org/core/math32"

	"github.com/espike/espike/sim"
)

// The weight must stay inside the configured bounds for any gradient
// sequence, for every optimizer variant.
func TestBoundedness(t *testing.T) {
	cp := CommonParams{}
	cp.Defaults()
	cp.Eta = 10
	cp.BatchSize = 3
	cp.WRange.Set(-1, 1)

	rnd := rand.New(rand.NewSource(1))
	for _, opt := range []Optimizer{NewGradientDescent(), NewAdam()} {
		w := float32(0)
		for i := 0; i < 500; i++ {
			g := float32(rnd.NormFloat64() * 100)
			w = opt.OptimizedWeight(&cp, int64(i), g, w)
			if w < -1 || w > 1 {
				t.Errorf("%T: weight %v outside [-1, 1] at call %d\n", opt, w, i)
			}
		}
	}
}

// Accumulating a batch of equal gradients must apply the same update as
// one call carrying their sum.
func TestGDBatchAccumulation(t *testing.T) {
	cp := CommonParams{}
	cp.Defaults()
	cp.Eta = 0.1
	cp.BatchSize = 4

	g := float32(0.3)
	gd1 := NewGradientDescent()
	w1 := float32(1)
	for _, idx := range []int64{1, 2, 3, 4} {
		w1 = gd1.OptimizedWeight(&cp, idx, g, w1)
	}
	gd2 := NewGradientDescent()
	w2 := gd2.OptimizedWeight(&cp, 4, 4*g, float32(1))
	if math32.Abs(w1-w2) > 1e-7 {
		t.Errorf("batch accumulation: %v vs %v\n", w1, w2)
	}
}

// For gradient descent, n sequential optimizations with gradient g equal
// one optimization with n*g; Adam's moment estimates are nonlinear in the
// gradient, so the same two schedules must differ.
func TestAdamAsymmetry(t *testing.T) {
	cp := CommonParams{}
	cp.Defaults()
	cp.Eta = 0.01

	seq := func(opt Optimizer) float32 {
		w := float32(1)
		for idx := int64(1); idx <= 4; idx++ {
			w = opt.OptimizedWeight(&cp, idx, 0.3, w)
		}
		return w
	}
	one := func(opt Optimizer) float32 {
		return opt.OptimizedWeight(&cp, 1, 4*0.3, 1)
	}

	gdSeq, gdOne := seq(NewGradientDescent()), one(NewGradientDescent())
	if math32.Abs(gdSeq-gdOne) > 1e-6 {
		t.Errorf("gradient descent schedules differ: %v vs %v\n", gdSeq, gdOne)
	}
	adSeq, adOne := seq(NewAdam()), one(NewAdam())
	if math32.Abs(adSeq-adOne) < 1e-6 {
		t.Errorf("Adam schedules coincide: %v vs %v\n", adSeq, adOne)
	}
}

// Constant gradient of 1 for 1000 batches: the float32 trajectory must
// track the float64 reference recursion with bias correction.
func TestAdamTrajectory(t *testing.T) {
	cp := CommonParams{}
	cp.Defaults()
	cp.Eta = 0.001

	ad := NewAdam()
	w := float32(0)
	var m, v, wr float64
	for step := 1; step <= 1000; step++ {
		w = ad.OptimizedWeight(&cp, int64(step), 1, w)
		m = 0.9*m + 0.1
		v = 0.999*v + 0.001
		aHat := 0.001 * math.Sqrt(1-math.Pow(0.999, float64(step))) / (1 - math.Pow(0.9, float64(step)))
		wr -= aHat * m / (math.Sqrt(v) + 1e-8)
		if math32.Abs(w-float32(wr)) > 1e-3*(1+math32.Abs(float32(wr))) {
			t.Fatalf("step %d: got %v, ref %v\n", step, w, wr)
		}
	}
	if math32.Abs(w-float32(wr)) > 1e-3 {
		t.Errorf("final weight: got %v, ref %v\n", w, wr)
	}
}

// Gradients at indices inside the current batch only accumulate; the
// weight changes exactly when an index crosses into a later batch.
func TestBatchBoundary(t *testing.T) {
	cp := CommonParams{}
	cp.Defaults()
	cp.Eta = 1
	cp.BatchSize = 10

	gd := NewGradientDescent()
	w := float32(5)
	for _, idx := range []int64{0, 3, 9} {
		if got := gd.OptimizedWeight(&cp, idx, 1, w); got != w {
			t.Errorf("idx %d: weight changed within batch: %v\n", idx, got)
		}
	}
	got := gd.OptimizedWeight(&cp, 10, 1, w)
	want := w - 1*(4.0/10.0) // four accumulated unit gradients, mean over batch
	if math32.Abs(got-want) > 1e-6 {
		t.Errorf("boundary crossing: got %v, want %v\n", got, want)
	}
	// repeated index in the new batch: no further update
	if got2 := gd.OptimizedWeight(&cp, 10, 0, got); got2 != got {
		t.Errorf("idempotence at same index: %v vs %v\n", got2, got)
	}
}

func TestCommonParamsValidate(t *testing.T) {
	cases := []struct {
		prop string
		mod  func(cp *CommonParams)
	}{
		{"Eta", func(cp *CommonParams) { cp.Eta = -1 }},
		{"BatchSize", func(cp *CommonParams) { cp.BatchSize = 0 }},
		{"WRange", func(cp *CommonParams) { cp.WRange.Set(1, -1) }},
	}
	for _, cs := range cases {
		cp := CommonParams{}
		cp.Defaults()
		cs.mod(&cp)
		err := cp.Validate()
		var berr *sim.BadPropertyError
		if !errors.As(err, &berr) {
			t.Errorf("%s: err %v, want BadPropertyError\n", cs.prop, err)
			continue
		}
		if berr.Prop != cs.prop {
			t.Errorf("wrong property: got %s, want %s\n", berr.Prop, cs.prop)
		}
	}

	// sealed common parameters reject changes
	cp := CommonParams{}
	cp.Defaults()
	cp.Seal()
	upd := cp
	upd.Eta = 0.5
	if err := cp.SetParams(&upd); err == nil {
		t.Errorf("SetParams accepted change to sealed parameters\n")
	}
}
