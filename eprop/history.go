// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eprop

import "fmt"

// HistEntry is the per-step learning history of an e-prop neuron, read
// back by its incoming synapses when they process a presynaptic spike.
type HistEntry struct {

	// 1 if the neuron spiked on this step, else 0.
	Z float32

	// surrogate gradient (pseudo-derivative) value.
	Psi float32

	// accumulated learning signal from downstream readout error.
	LSignal float32

	// firing-rate regularization deviation (running rate - target).
	FRReg float32
}

// History is the bounded per-neuron deque of learning history entries.
// Synapses register as readers; entries older than the oldest reader
// position are pruned, and every synapse's span from its last-processed
// spike through the current step is guaranteed retained.  A trailing
// Horizon of recent steps is retained even with no readers: spikes are
// delivered after the slice barrier, so a synapse's first spike anchors
// its reader up to a slice behind the neuron's own step.  Requesting a
// pruned entry is an invariant violation and panics.
type History struct {

	// step index of Entries[0].
	Start int

	// minimum number of trailing steps retained regardless of readers,
	// covering the generation-to-delivery lag of the slice barrier.
	Horizon int

	// retained entries, one per step, contiguous from Start.
	Entries []HistEntry

	// reader positions (steps), one per registered synapse; -1 = unused.
	Readers []int
}

// Init clears all entries and readers, with the history starting at the
// given step and the given trailing retention horizon in steps.
func (hs *History) Init(start, horizon int) {
	hs.Start = start
	hs.Horizon = horizon
	hs.Entries = hs.Entries[:0]
	hs.Readers = hs.Readers[:0]
}

// Append adds the entry for the given step, which must be exactly the
// next step after the last retained one.
func (hs *History) Append(step int, ent HistEntry) {
	if step != hs.Start+len(hs.Entries) {
		panic(fmt.Sprintf("eprop.History: append for step %d, expected %d", step, hs.Start+len(hs.Entries)))
	}
	hs.Entries = append(hs.Entries, ent)
}

// Entry returns the entry for the given step.  Panics if the step has
// been pruned or not yet appended: by construction the pruning high-water
// mark retains everything any live synapse can request.
func (hs *History) Entry(step int) *HistEntry {
	i := step - hs.Start
	if i < 0 || i >= len(hs.Entries) {
		panic(fmt.Sprintf("eprop.History: step %d outside retained range [%d, %d)", step, hs.Start, hs.Start+len(hs.Entries)))
	}
	return &hs.Entries[i]
}

// RegisterReader adds a reader at the given step position, returning its
// id for later MoveReader calls.
func (hs *History) RegisterReader(step int) int {
	hs.Readers = append(hs.Readers, step)
	return len(hs.Readers) - 1
}

// MoveReader advances the given reader to a new step position.
func (hs *History) MoveReader(id, step int) {
	hs.Readers[id] = step
}

// Prune drops entries older than both the oldest reader position and the
// trailing retention horizon behind curStep.
func (hs *History) Prune(curStep int) {
	old := curStep - hs.Horizon
	for _, r := range hs.Readers {
		if r >= 0 && r < old {
			old = r
		}
	}
	n := old - hs.Start
	if n <= 0 {
		return
	}
	if n > len(hs.Entries) {
		n = len(hs.Entries)
	}
	hs.Entries = hs.Entries[n:]
	hs.Start += n
}
