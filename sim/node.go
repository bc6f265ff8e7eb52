// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

// Node is the interface for anything the network can step: neurons and
// signal generators.  All state is node-local; the network guarantees that
// HandleSpike / HandleCurrent calls targeting a node happen between that
// node's Update calls (slice barrier), so implementations need no locking.
type Node interface {

	// Name returns the node's name (population name plus index).
	Name() string

	// Init validates parameters, recomputes derived coefficients for the
	// context's resolution, allocates event buffers for its horizon, and
	// resets all state.  Must be called before the first Update.
	Init(ctx *Context) error

	// Update advances the node by one elementary step, consuming any
	// events due at ctx.Step and emitting spikes through send.
	// A non-nil error is a SolverError and is fatal for the run.
	Update(ctx *Context, send SendSpike) error

	// HandleSpike enqueues an incoming spike event for future delivery.
	HandleSpike(ctx *Context, ev *SpikeEvent)

	// HandleCurrent enqueues an incoming current contribution.
	HandleCurrent(ctx *Context, ev *CurrentEvent)

	// VarNames returns the names of the recordable state variables.
	VarNames() []string

	// VarByName returns the value of a state variable, or error if the
	// name is not valid.
	VarByName(varNm string) (float32, error)

	// SetVarByName sets a state variable to the given value, or returns
	// an error if the name is not valid.
	SetVarByName(varNm string, val float32) error
}
