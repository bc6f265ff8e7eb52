// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package ringbuf provides the fixed-horizon circular buffers that carry
synaptic input to a node: a plain accumulation buffer indexed by delivery
step for current-like contributions, and a precise event queue that keeps
individual spike events with their sub-step offsets so the neuron update
can consume them in exact temporal order within a step.

The buffer horizon is bounded by the minimum plus maximum connection delay
in steps: a contribution can be queued at most that far into the future,
and each slot is consumed exactly once when its step arrives.
*/
package ringbuf

import "fmt"

// Buffer is a circular accumulation buffer indexed by absolute delivery
// step, with a fixed horizon of steps.  Writers add weighted contributions
// at a future step; the owning node reads-and-clears the slot for the
// current step exactly once.
type Buffer struct {

	// accumulated values, indexed by step modulo horizon.
	Vals []float32
}

// Init allocates (or reallocates) the buffer for the given horizon in
// steps, clearing all values.
func (bf *Buffer) Init(horizon int) {
	if horizon < 1 {
		panic(fmt.Sprintf("ringbuf.Buffer: horizon must be >= 1, got %d", horizon))
	}
	if len(bf.Vals) != horizon {
		bf.Vals = make([]float32, horizon)
	}
	bf.Clear()
}

// Clear zeroes all values.
func (bf *Buffer) Clear() {
	for i := range bf.Vals {
		bf.Vals[i] = 0
	}
}

// Add accumulates v into the slot for the given absolute delivery step.
// The caller must ensure deliveryStep is within the horizon of the current
// step; queueing past the horizon would overwrite undelivered data, so it
// panics (programming / configuration error, per the delay bounds).
func (bf *Buffer) Add(curStep, deliveryStep int, v float32) {
	d := deliveryStep - curStep
	if d < 0 || d >= len(bf.Vals) {
		panic(fmt.Sprintf("ringbuf.Buffer: delivery step %d outside horizon %d of current step %d", deliveryStep, len(bf.Vals), curStep))
	}
	bf.Vals[deliveryStep%len(bf.Vals)] = bf.Vals[deliveryStep%len(bf.Vals)] + v
}

// ReadClear returns the accumulated value for the given step and clears
// the slot, making it available for re-use at step + horizon.
func (bf *Buffer) ReadClear(step int) float32 {
	i := step % len(bf.Vals)
	v := bf.Vals[i]
	bf.Vals[i] = 0
	return v
}
