// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

// SpikeEvent is a spike in transit from a sending node to a receiving one.
// Offset is the sub-step offset in msec measured backward from the end of
// the generation step: the precise firing time is the end of Step minus
// Offset, with Offset in [0, StepMS).  Weight sign encodes excitatory (+)
// vs. inhibitory (-); Multiplicity folds coincident spikes into one event.
type SpikeEvent struct {

	// index of the sending node in the network.
	Sender int

	// step at which the spike was generated (sender-side).
	Step int

	// sub-step offset of the spike, backward from the end of Step,
	// in msec, in [0, StepMS).
	Offset float32

	// signed synaptic weight.
	Weight float32

	// number of coincident spikes folded into this event.
	Multiplicity int

	// connection delay in steps; the event is due at Step + DelaySteps.
	DelaySteps int
}

// DeliveryStep returns the step at which this event is due at the target.
func (ev *SpikeEvent) DeliveryStep() int {
	return ev.Step + ev.DelaySteps
}

// CurrentEvent is a continuous-current contribution in transit to a node's
// current buffer, e.g., from a DC generator.
type CurrentEvent struct {

	// index of the sending node in the network.
	Sender int

	// step at which the current applies (sender-side).
	Step int

	// current amplitude in pA.
	Current float32

	// connection delay in steps.
	DelaySteps int
}

// DeliveryStep returns the step at which this event is due at the target.
func (ev *CurrentEvent) DeliveryStep() int {
	return ev.Step + ev.DelaySteps
}

// SendSpike is the hook a node calls to emit a spike; the network binds it
// to the routing machinery when the node is built.  Offset is the sub-step
// offset backward from the end of the current step, in msec.
type SendSpike func(offset, weight float32, multiplicity int)
