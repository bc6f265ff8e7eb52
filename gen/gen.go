// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package gen provides stimulus generator nodes: a precise Poisson spike
source, a scripted spike train, and a windowed DC current source.  Spike
generators emit with exact sub-step offsets, so precise-timing neurons
downstream see off-grid input; the DC source goes out through the
current-routing path once per step.
*/
package gen

import (
	"fmt"
	"math"
	"sort"
	"time"

	"cogentcore.org/core/base/randx"

	"github.com/espike/espike/sim"
)

// step placement of an absolute spike time t: the owning step covers
// (s*h, (s+1)*h], and the offset is measured backward from the step end.
// Times are carried in float64 so long runs do not lose grid alignment.
func placeSpike(t, h float64) (step int, offset float32) {
	s := int(math.Ceil(t/h-1e-9)) - 1
	if s < 0 {
		s = 0
	}
	off := float64(s+1)*h - t
	if off < 0 {
		off = 0
	}
	if off >= h {
		off = math.Nextafter(h, 0)
	}
	f := float32(off)
	// float32 conversion can round a near-boundary offset up onto the
	// step duration itself, which the event queue rejects
	if hf := float32(h); f >= hf {
		f = math.Nextafter32(hf, 0)
	}
	return s, f
}

//////////////////////////////////////////////////////////////////////////////////////
//  Poisson

// Poisson is a Poisson spike generator with exact (off-grid) spike times,
// drawn as exponential inter-arrival intervals.
type Poisson struct {
	sim.NodeBase

	// mean firing rate in Hz.
	RateHz float32 `def:"10" min:"0"`

	// random seed; 0 seeds from the wall clock at Init.
	Seed int64

	// random number source, seeded at Init.
	Rand *randx.SysRand `display:"-"`

	// absolute time of the next pending spike, in msec.
	NextMS float64 `edit:"-"`
}

// NewPoisson returns a Poisson generator with the given name and rate.
func NewPoisson(name string, rateHz float32) *Poisson {
	pg := &Poisson{RateHz: rateHz}
	pg.Nm = name
	return pg
}

// Init seeds the generator and draws the first inter-arrival interval.
func (pg *Poisson) Init(ctx *sim.Context) error {
	if pg.RateHz < 0 {
		return &sim.BadPropertyError{Model: "gen.Poisson " + pg.Nm, Prop: "RateHz", Reason: "rate must be >= 0"}
	}
	seed := pg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	pg.Rand = randx.NewSysRand(seed)
	pg.NextMS = math.Inf(1)
	if pg.RateHz > 0 {
		pg.NextMS = float64(ctx.Step)*float64(ctx.StepMS) + pg.interval()
	}
	return nil
}

// interval draws one exponential inter-arrival interval in msec.
func (pg *Poisson) interval() float64 {
	return pg.Rand.ExpFloat64() * 1000 / float64(pg.RateHz)
}

// Update emits every pending spike whose exact time falls within the
// current step, each with its backward sub-step offset.
func (pg *Poisson) Update(ctx *sim.Context, send sim.SendSpike) error {
	h := float64(ctx.StepMS)
	end := float64(ctx.Step+1) * h
	for pg.NextMS <= end {
		_, off := placeSpike(pg.NextMS, h)
		send(off, 1, 1)
		pg.NextMS += pg.interval()
	}
	return nil
}

func (pg *Poisson) HandleSpike(ctx *sim.Context, ev *sim.SpikeEvent)     {}
func (pg *Poisson) HandleCurrent(ctx *sim.Context, ev *sim.CurrentEvent) {}

// PoissonVars are the recordable state variables.
var PoissonVars = []string{"RateHz"}

func (pg *Poisson) VarNames() []string {
	return PoissonVars
}

func (pg *Poisson) VarByName(varNm string) (float32, error) {
	if varNm == "RateHz" {
		return pg.RateHz, nil
	}
	return 0, fmt.Errorf("gen.Poisson VarByName: variable name: %v not valid", varNm)
}

func (pg *Poisson) SetVarByName(varNm string, val float32) error {
	if varNm == "RateHz" {
		pg.RateHz = val
		return nil
	}
	return fmt.Errorf("gen.Poisson SetVarByName: variable name: %v not valid", varNm)
}

//////////////////////////////////////////////////////////////////////////////////////
//  SpikeTrain

// SpikeTrain emits a fixed list of spike times (msec, exact, off-grid
// allowed), in order.  Times must be > 0.
type SpikeTrain struct {
	sim.NodeBase

	// spike times in msec; sorted at Init.
	Times []float64

	// index of the next time to emit.
	Next int `edit:"-"`
}

// NewSpikeTrain returns a generator for the given spike times.
func NewSpikeTrain(name string, times ...float64) *SpikeTrain {
	st := &SpikeTrain{Times: times}
	st.Nm = name
	return st
}

// Init sorts the times and validates that all are positive.
func (st *SpikeTrain) Init(ctx *sim.Context) error {
	sort.Float64s(st.Times)
	if len(st.Times) > 0 && st.Times[0] <= 0 {
		return &sim.BadPropertyError{Model: "gen.SpikeTrain " + st.Nm, Prop: "Times", Reason: "spike times must be > 0"}
	}
	st.Next = 0
	return nil
}

// Update emits all scripted spikes falling within the current step.
func (st *SpikeTrain) Update(ctx *sim.Context, send sim.SendSpike) error {
	h := float64(ctx.StepMS)
	end := float64(ctx.Step+1) * h
	for st.Next < len(st.Times) && st.Times[st.Next] <= end {
		_, off := placeSpike(st.Times[st.Next], h)
		send(off, 1, 1)
		st.Next++
	}
	return nil
}

func (st *SpikeTrain) HandleSpike(ctx *sim.Context, ev *sim.SpikeEvent)     {}
func (st *SpikeTrain) HandleCurrent(ctx *sim.Context, ev *sim.CurrentEvent) {}

// SpikeTrainVars are the recordable state variables.
var SpikeTrainVars = []string{"Next"}

func (st *SpikeTrain) VarNames() []string {
	return SpikeTrainVars
}

func (st *SpikeTrain) VarByName(varNm string) (float32, error) {
	if varNm == "Next" {
		return float32(st.Next), nil
	}
	return 0, fmt.Errorf("gen.SpikeTrain VarByName: variable name: %v not valid", varNm)
}

func (st *SpikeTrain) SetVarByName(varNm string, val float32) error {
	if varNm == "Next" {
		st.Next = int(val)
		return nil
	}
	return fmt.Errorf("gen.SpikeTrain SetVarByName: variable name: %v not valid", varNm)
}

//////////////////////////////////////////////////////////////////////////////////////
//  DC

// DC injects a constant current into its targets over a time window,
// through the per-step current routing path.  Connection weights scale
// the amplitude per target.
type DC struct {
	sim.NodeBase

	// current amplitude in pA.
	Amp float32

	// window start in msec (inclusive).
	StartMS float32

	// window end in msec (exclusive); 0 means no end.
	StopMS float32
}

// NewDC returns a DC source active over [start, stop) msec.
func NewDC(name string, amp, start, stop float32) *DC {
	dc := &DC{Amp: amp, StartMS: start, StopMS: stop}
	dc.Nm = name
	return dc
}

func (dc *DC) Init(ctx *sim.Context) error {
	if dc.StopMS != 0 && dc.StopMS < dc.StartMS {
		return &sim.BadPropertyError{Model: "gen.DC " + dc.Nm, Prop: "StopMS", Reason: "window end must be >= start"}
	}
	return nil
}

func (dc *DC) Update(ctx *sim.Context, send sim.SendSpike) error {
	return nil
}

// CurrentOut returns the amplitude if the current step falls inside the
// active window, else 0.  Implements sim.CurrentSource.
func (dc *DC) CurrentOut(ctx *sim.Context) float32 {
	t := ctx.TimeMS
	if t < dc.StartMS {
		return 0
	}
	if dc.StopMS != 0 && t >= dc.StopMS {
		return 0
	}
	return dc.Amp
}

func (dc *DC) HandleSpike(ctx *sim.Context, ev *sim.SpikeEvent)     {}
func (dc *DC) HandleCurrent(ctx *sim.Context, ev *sim.CurrentEvent) {}

// DCVars are the recordable state variables.
var DCVars = []string{"Amp"}

func (dc *DC) VarNames() []string {
	return DCVars
}

func (dc *DC) VarByName(varNm string) (float32, error) {
	if varNm == "Amp" {
		return dc.Amp, nil
	}
	return 0, fmt.Errorf("gen.DC VarByName: variable name: %v not valid", varNm)
}

func (dc *DC) SetVarByName(varNm string, val float32) error {
	if varNm == "Amp" {
		dc.Amp = val
		return nil
	}
	return fmt.Errorf("gen.DC SetVarByName: variable name: %v not valid", varNm)
}
