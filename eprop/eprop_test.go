// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import (
	"math"
	"math/rand"
	"testing"

	"cogentcore.org/core/math32"
	"github.com/emer/emergent/v2/paths"

	"github.com/espike/espike/gen"
	"github.com/espike/espike/optimizer"
	"github.com/espike/espike/sim"
)

func newTestCtx() *sim.Context {
	ctx := sim.NewContext()
	ctx.StepMS = 1
	return ctx
}

// With only a constant input current, the membrane recursion is
// V <- pm*V + P30*IE, which must track the float64 reference.
func TestNeuronDCRecursion(t *testing.T) {
	ctx := newTestCtx()
	nrn := New("n0")
	nrn.Params.IE = 300
	nrn.Params.Theta = 1e6 // keep it from spiking
	if err := nrn.Init(ctx); err != nil {
		t.Fatal(err)
	}
	pm := math.Exp(-1.0 / 10.0)
	p30 := 10.0 / 250.0 * (1 - pm)
	var vr float64
	for i := 0; i < 50; i++ {
		if err := nrn.Update(ctx, nil); err != nil {
			t.Fatal(err)
		}
		vr = pm*vr + p30*300
		if math32.Abs(nrn.State.V-float32(vr)) > 1e-4*(1+float32(vr)) {
			t.Fatalf("step %d: V %v, ref %v\n", i, nrn.State.V, vr)
		}
		ctx.StepInc()
	}
}

// Spiking resets the potential, starts the refractory countdown, and
// the surrogate gradient is zero while refractory.
func TestNeuronSpikeRefractory(t *testing.T) {
	ctx := newTestCtx()
	nrn := New("n0")
	if err := nrn.Init(ctx); err != nil {
		t.Fatal(err)
	}
	ev := sim.SpikeEvent{Step: 0, Weight: 20, Multiplicity: 1, DelaySteps: 10}
	nrn.HandleSpike(ctx, &ev)
	spiked := false
	for i := 0; i < 15; i++ {
		send := func(off, w float32, mult int) { spiked = true }
		if err := nrn.Update(ctx, send); err != nil {
			t.Fatal(err)
		}
		if ctx.Step == 10 {
			if !spiked || nrn.State.Z != 1 {
				t.Errorf("weight-20 jump above threshold did not spike\n")
			}
			if nrn.State.V != nrn.Params.VReset {
				t.Errorf("potential not reset: %v\n", nrn.State.V)
			}
		}
		if ctx.Step == 11 || ctx.Step == 12 {
			if nrn.State.V != nrn.Params.VReset {
				t.Errorf("step %d: refractory potential %v\n", ctx.Step, nrn.State.V)
			}
			if nrn.State.Psi != 0 {
				t.Errorf("step %d: nonzero surrogate gradient while refractory\n", ctx.Step)
			}
		}
		ctx.StepInc()
	}
}

// With RefrInput on, input arriving during refractoriness accumulates
// with membrane decay and is applied when the period ends.
func TestNeuronRefrInput(t *testing.T) {
	ctx := newTestCtx()
	nrn := New("n0")
	nrn.Params.RefrInput = true
	if err := nrn.Init(ctx); err != nil {
		t.Fatal(err)
	}
	nrn.HandleSpike(ctx, &sim.SpikeEvent{Step: 0, Weight: 20, Multiplicity: 1, DelaySteps: 10})
	nrn.HandleSpike(ctx, &sim.SpikeEvent{Step: 1, Weight: 5, Multiplicity: 1, DelaySteps: 10})
	for i := 0; i < 13; i++ {
		if err := nrn.Update(ctx, nil); err != nil {
			t.Fatal(err)
		}
		ctx.StepInc()
	}
	// spike at step 10, refractory steps 11 and 12; the weight-5 input at
	// step 11 decays by one step of membrane decay before re-applying
	pm := float32(math.Exp(-1.0 / 10.0))
	want := nrn.Params.VReset + pm*5
	if math32.Abs(nrn.State.V-want) > 1e-5 {
		t.Errorf("post-refractory potential: got %v, want %v\n", nrn.State.V, want)
	}
}

func TestSurrogateGradients(t *testing.T) {
	pr := Params{}
	pr.Defaults()
	psi := pr.PsiFunc()
	if got := psi(pr.Theta); math32.Abs(got-pr.Gamma/pr.Theta) > 1e-7 {
		t.Errorf("piecewise linear at threshold: got %v, want %v\n", got, pr.Gamma/pr.Theta)
	}
	if got := psi(0); got != 0 {
		t.Errorf("piecewise linear at rest: got %v, want 0\n", got)
	}
	pr.Surrogate = Exponential
	psi = pr.PsiFunc()
	if got := psi(pr.Theta); math32.Abs(got-pr.Gamma/pr.Theta) > 1e-7 {
		t.Errorf("exponential at threshold: got %v, want %v\n", got, pr.Gamma/pr.Theta)
	}
	want := pr.Gamma * math32.Exp(-1) / pr.Theta
	if got := psi(0); math32.Abs(got-want) > 1e-7 {
		t.Errorf("exponential at rest: got %v, want %v\n", got, want)
	}
}

func TestHistoryPruning(t *testing.T) {
	hs := History{}
	hs.Init(0, 0)
	for s := 0; s < 10; s++ {
		hs.Append(s, HistEntry{Z: float32(s)})
	}
	r0 := hs.RegisterReader(3)
	r1 := hs.RegisterReader(7)
	hs.Prune(10)
	if hs.Start != 3 {
		t.Errorf("pruned to %d, want oldest reader 3\n", hs.Start)
	}
	if got := hs.Entry(3).Z; got != 3 {
		t.Errorf("entry 3: got %v\n", got)
	}
	hs.MoveReader(r0, 9)
	hs.MoveReader(r1, 9)
	hs.Prune(10)
	if hs.Start != 9 {
		t.Errorf("pruned to %d, want 9\n", hs.Start)
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("access to pruned entry did not panic\n")
			}
		}()
		hs.Entry(5)
	}()
	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("append with a step gap did not panic\n")
			}
		}()
		hs.Append(12, HistEntry{})
	}()
}

// With no readers, pruning must still retain the trailing horizon so a
// synapse's first spike can anchor a reader behind the current step.
func TestHistoryHorizonRetention(t *testing.T) {
	hs := History{}
	hs.Init(0, 10)
	for s := 0; s < 20; s++ {
		hs.Append(s, HistEntry{Z: float32(s)})
		hs.Prune(s)
	}
	if hs.Start != 9 {
		t.Errorf("pruned to %d, want 9 (horizon 10 behind step 19)\n", hs.Start)
	}
	if got := hs.Entry(9).Z; got != 9 {
		t.Errorf("entry 9: got %v\n", got)
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("access beyond the horizon did not panic\n")
			}
		}()
		hs.Entry(8)
	}()
}

// A plastic synapse delivers through the network's slice barrier, so its
// presynaptic spike steps lag the receiver's own step by up to a slice.
// The retained history must cover that lag before any reader exists, and
// the second spike's gradient pass must read the whole interval.
func TestSynapseThroughNetwork(t *testing.T) {
	ctx := sim.NewContext() // 0.1 msec steps, slices of 10
	nt := sim.NewNetwork("plastic")
	in := nt.AddPopulation("In", "", []int{1}, func(i int) sim.Node {
		return gen.NewSpikeTrain("In_0", 0.25, 3.25) // steps 2 and 32
	})
	ro := nt.AddPopulation("Readout", "", []int{1}, func(i int) sim.Node {
		return New("Readout_0")
	})
	smod := NewSynapseModel(optimizer.NewGradientDescent())
	var syn *Synapse
	nt.Connect(in, ro, paths.NewFull(), 1, 10, func(si, ri int) sim.Synapse {
		syn = smod.NewSynapse(0.5)
		return syn
	})
	if err := nt.Build(ctx); err != nil {
		t.Fatal(err)
	}
	if err := nt.Run(ctx, 50); err != nil {
		t.Fatal(err)
	}
	if syn == nil {
		t.Fatal("no synapse built")
	}
	if syn.LastSpikeStep != 32 {
		t.Errorf("last presynaptic step %d, want 32\n", syn.LastSpikeStep)
	}
	if syn.ZBar == 0 {
		t.Errorf("second spike did not advance the presynaptic trace\n")
	}
}

// histNeuron builds a neuron with a scripted learning history: nonzero
// surrogate gradient and learning signal over the first act steps after
// the presynaptic spike, zero afterwards.
func histNeuron(t *testing.T, ctx *sim.Context, cutoff, total, act int) *Neuron {
	t.Helper()
	nrn := New("post")
	nrn.Params.TraceCutoff = cutoff
	if err := nrn.Init(ctx); err != nil {
		t.Fatal(err)
	}
	rnd := rand.New(rand.NewSource(7))
	for s := 0; s <= total; s++ {
		ent := HistEntry{}
		if s < act {
			ent.Psi = float32(rnd.Float64() * 0.02)
			ent.LSignal = float32(rnd.NormFloat64())
		}
		nrn.Hist.Append(s, ent)
	}
	return nrn
}

// Truncating the eligibility iteration and bridging the rest with the
// analytic decay must give the same result as iterating the whole
// interval, when the truncated tail carries no gradient signal.
func TestTraceCutoffEquivalence(t *testing.T) {
	const total, act = 15, 10
	run := func(cutoff int) *Synapse {
		ctx := newTestCtx()
		nrn := histNeuron(t, ctx, cutoff, total, act)
		smod := NewSynapseModel(optimizer.NewGradientDescent())
		smod.Common.Eta = 1
		sy := smod.NewSynapse(0.5)
		ev := sim.SpikeEvent{Sender: 0, Step: 0, Weight: 1, Multiplicity: 1, DelaySteps: 10}
		if err := sy.Deliver(ctx, nrn, &ev); err != nil {
			t.Fatal(err)
		}
		ctx.Step = total
		ev2 := ev
		ev2.Step = total
		if err := sy.Deliver(ctx, nrn, &ev2); err != nil {
			t.Fatal(err)
		}
		return sy
	}
	full := run(total + 5) // cutoff beyond the interval: plain iteration
	cut := run(act)        // cutoff inside the zero-signal tail
	if math32.Abs(full.W-cut.W) > 1e-5 {
		t.Errorf("weight: full %v vs cutoff %v\n", full.W, cut.W)
	}
	if math32.Abs(full.ZBar-cut.ZBar) > 1e-6 {
		t.Errorf("z_bar: full %v vs cutoff %v\n", full.ZBar, cut.ZBar)
	}
	if math32.Abs(full.EBar-cut.EBar) > 1e-6 {
		t.Errorf("e_bar: full %v vs cutoff %v\n", full.EBar, cut.EBar)
	}
}

// The gradient recursion itself, against a float64 reference.
func TestGradientVsRef(t *testing.T) {
	const total, act = 12, 12
	ctx := newTestCtx()
	nrn := histNeuron(t, ctx, 100, total, act)
	smod := NewSynapseModel(optimizer.NewGradientDescent())
	smod.Common.Eta = 1
	sy := smod.NewSynapse(0)
	ev := sim.SpikeEvent{Step: 0, Weight: 1, Multiplicity: 1, DelaySteps: 10}
	if err := sy.Deliver(ctx, nrn, &ev); err != nil {
		t.Fatal(err)
	}
	ctx.Step = total
	ev2 := ev
	ev2.Step = total
	if err := sy.Deliver(ctx, nrn, &ev2); err != nil {
		t.Fatal(err)
	}

	alpha := math.Exp(-1.0 / 10.0)
	kappa := float64(nrn.Params.Kappa)
	var zbar, ebar, grad float64
	for s := 0; s < total; s++ {
		z := 0.0
		if s == 0 {
			z = 1
		}
		zbar = alpha*zbar + z
		ent := nrn.Hist.Entry(s)
		e := float64(ent.Psi) * zbar
		ebar = kappa*ebar + (1-kappa)*e
		grad += float64(ent.LSignal) * ebar
	}
	// weight update is -Eta * grad with Eta 1 from weight 0
	if math32.Abs(sy.W-float32(-grad)) > 1e-5*(1+math32.Abs(float32(grad))) {
		t.Errorf("weight: got %v, ref %v\n", sy.W, -grad)
	}
}

// A repeated presynaptic spike at the same step is a zero-length
// interval: no iterations, one optimizer call, counters intact.
func TestZeroLengthInterval(t *testing.T) {
	ctx := newTestCtx()
	nrn := histNeuron(t, ctx, 100, 5, 5)
	smod := NewSynapseModel(optimizer.NewGradientDescent())
	sy := smod.NewSynapse(0.5)
	ev := sim.SpikeEvent{Step: 3, Weight: 1, Multiplicity: 1, DelaySteps: 10}
	if err := sy.Deliver(ctx, nrn, &ev); err != nil {
		t.Fatal(err)
	}
	w := sy.W
	if err := sy.Deliver(ctx, nrn, &ev); err != nil {
		t.Fatal(err)
	}
	if sy.W != w {
		t.Errorf("zero-length interval changed weight: %v -> %v\n", w, sy.W)
	}
	if sy.ZBar != 0 || sy.EBar != 0 {
		t.Errorf("zero-length interval moved traces: %v %v\n", sy.ZBar, sy.EBar)
	}
	if sy.LastSpikeStep != 3 {
		t.Errorf("last spike step %d, want 3\n", sy.LastSpikeStep)
	}
}
