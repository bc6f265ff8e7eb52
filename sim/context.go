// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"github.com/emer/emergent/v2/etime"
)

// sim.Context contains all the timing state and resolution parameters for
// running a model.  It replaces any global kernel access: everything the
// per-step update code needs to know about the simulation schedule is
// passed in through this object.
type Context struct {

	// duration of one elementary simulation step, in msec.
	StepMS float32 `def:"0.1"`

	// minimum inter-node connection delay, in steps.  Spikes generated in
	// one min-delay slice are not visible to their targets until the next
	// slice, so this bounds the communication horizon.
	MinDelaySteps int `def:"10" min:"1"`

	// maximum connection delay in steps, which bounds the event buffer
	// horizon together with MinDelaySteps.
	MaxDelaySteps int `def:"10" min:"1"`

	// current elementary step, global across the run.
	Step int

	// current min-delay slice index = Step / MinDelaySteps.
	Slice int

	// accumulated simulation time in msec (= Step * StepMS).
	TimeMS float32

	// current evaluation mode, e.g., Train, Test.
	Mode etime.Modes
}

// NewContext returns a new Context with default parameters.
func NewContext() *Context {
	ctx := &Context{}
	ctx.Defaults()
	return ctx
}

// Defaults sets default resolution and delay bounds.
func (ctx *Context) Defaults() {
	ctx.StepMS = 0.1
	ctx.MinDelaySteps = 10
	ctx.MaxDelaySteps = 10
}

// Validate checks that the resolution and delay bounds form a usable
// schedule, returning a BadPropertyError for the first offending field.
func (ctx *Context) Validate() error {
	if ctx.StepMS <= 0 {
		return &BadPropertyError{Model: "Context", Prop: "StepMS", Reason: "must be > 0"}
	}
	if ctx.MinDelaySteps < 1 {
		return &BadPropertyError{Model: "Context", Prop: "MinDelaySteps", Reason: "must be >= 1"}
	}
	if ctx.MaxDelaySteps < ctx.MinDelaySteps {
		return &BadPropertyError{Model: "Context", Prop: "MaxDelaySteps", Reason: "must be >= MinDelaySteps"}
	}
	return nil
}

// Reset resets the counters back to zero.
func (ctx *Context) Reset() {
	ctx.Step = 0
	ctx.Slice = 0
	ctx.TimeMS = 0
	if ctx.StepMS == 0 {
		ctx.Defaults()
	}
}

// StepInc increments at the elementary step level.
func (ctx *Context) StepInc() {
	ctx.Step++
	ctx.TimeMS += ctx.StepMS
	ctx.Slice = ctx.Step / ctx.MinDelaySteps
}

// SliceStart returns the first step of the current slice.
func (ctx *Context) SliceStart() int {
	return ctx.Slice * ctx.MinDelaySteps
}

// StepsFromMS returns the number of whole steps in the given duration,
// rounding to nearest to absorb float representation error.
func (ctx *Context) StepsFromMS(ms float32) int {
	return int(ms/ctx.StepMS + 0.5)
}

// MSFromSteps returns the duration of the given number of steps in msec.
func (ctx *Context) MSFromSteps(steps int) float32 {
	return float32(steps) * ctx.StepMS
}

// BufferSteps returns the event buffer horizon: the number of steps of
// future delivery that ring buffers must be able to hold.
func (ctx *Context) BufferSteps() int {
	return ctx.MinDelaySteps + ctx.MaxDelaySteps
}
