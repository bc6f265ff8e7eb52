// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ringbuf

import (
	"fmt"
	"sort"
)

// Event is one pending precise event for a node: an incoming spike, or the
// end-of-refractory pseudo-event the neuron queues for itself.
type Event struct {

	// absolute step at which the event is due.
	Step int

	// sub-step offset in msec, measured backward from the end of the
	// step, in [0, stepMS): the event's real time is the end of Step
	// minus Offset, so larger offsets are earlier within the step.
	Offset float32

	// signed weight; 0 for refractory markers.
	Weight float32

	// number of coincident spikes folded into this event.
	Multiplicity int

	// true if this marks the end of the refractory period.
	EndOfRefract bool
}

// EventQueue holds pending precise events bucketed by delivery step over a
// fixed horizon, and delivers the events due at a given step in decreasing
// offset order (earliest real time first), which is what the ministep
// chaining in the neuron update requires.
type EventQueue struct {

	// per-step event buckets, indexed by step modulo horizon.
	Buckets [][]Event

	// step duration in msec, for offset range checking.
	StepMS float32

	// step whose bucket has been sorted by PrepareDelivery; -1 if none.
	prepared int
}

// Init allocates the queue for the given horizon in steps and offset range.
func (eq *EventQueue) Init(horizon int, stepMS float32) {
	if horizon < 1 {
		panic(fmt.Sprintf("ringbuf.EventQueue: horizon must be >= 1, got %d", horizon))
	}
	if len(eq.Buckets) != horizon {
		eq.Buckets = make([][]Event, horizon)
	}
	eq.StepMS = stepMS
	eq.Clear()
}

// Clear discards all pending events.
func (eq *EventQueue) Clear() {
	for i := range eq.Buckets {
		eq.Buckets[i] = eq.Buckets[i][:0]
	}
	eq.prepared = -1
}

// Empty returns true if no events are pending at any step.
func (eq *EventQueue) Empty() bool {
	for i := range eq.Buckets {
		if len(eq.Buckets[i]) > 0 {
			return false
		}
	}
	return true
}

// add queues an event, checking the offset invariant: offsets outside
// [0, StepMS) are a programming error and fail loudly rather than being
// clamped.
func (eq *EventQueue) add(curStep int, ev Event) {
	if ev.Offset < 0 || ev.Offset >= eq.StepMS {
		panic(fmt.Sprintf("ringbuf.EventQueue: offset %g outside [0, %g)", ev.Offset, eq.StepMS))
	}
	d := ev.Step - curStep
	if d < 0 || d >= len(eq.Buckets) {
		panic(fmt.Sprintf("ringbuf.EventQueue: delivery step %d outside horizon %d of current step %d", ev.Step, len(eq.Buckets), curStep))
	}
	eq.Buckets[ev.Step%len(eq.Buckets)] = append(eq.Buckets[ev.Step%len(eq.Buckets)], ev)
	if eq.prepared == ev.Step { // mid-drain insertion (refractory end): re-sort remainder
		eq.prepared = -1
	}
}

// AddSpike queues a spike due at deliveryStep with the given sub-step
// offset, weight, and multiplicity.
func (eq *EventQueue) AddSpike(curStep, deliveryStep int, offset, weight float32, mult int) {
	eq.add(curStep, Event{Step: deliveryStep, Offset: offset, Weight: weight, Multiplicity: mult})
}

// AddRefractory queues the end-of-refractory marker for the owning neuron
// at the given step and offset.
func (eq *EventQueue) AddRefractory(curStep, deliveryStep int, offset float32) {
	eq.add(curStep, Event{Step: deliveryStep, Offset: offset, EndOfRefract: true})
}

// PrepareDelivery sorts the bucket due at the given step so that events
// pop in decreasing offset order, i.e., earliest real time first.
// Idempotent within a step; must be called before Next.  At exactly equal
// offsets, refractory markers pop before spikes, so the neuron becomes
// excitable before concurrent input is applied.
func (eq *EventQueue) PrepareDelivery(step int) {
	if eq.prepared == step {
		return
	}
	bk := eq.Buckets[step%len(eq.Buckets)]
	sort.SliceStable(bk, func(i, j int) bool { // pop order is back-to-front
		if bk[i].Offset != bk[j].Offset {
			return bk[i].Offset < bk[j].Offset
		}
		return !bk[i].EndOfRefract && bk[j].EndOfRefract
	})
	eq.prepared = step
}

// Next pops the next event due at the given step, in decreasing offset
// order (earliest first), returning false when the step's bucket is
// drained.  Only events whose Step matches are returned; stale entries
// indicate a horizon bug and panic.
func (eq *EventQueue) Next(step int) (Event, bool) {
	if eq.prepared != step {
		eq.PrepareDelivery(step)
	}
	i := step % len(eq.Buckets)
	bk := eq.Buckets[i]
	if len(bk) == 0 {
		return Event{}, false
	}
	ev := bk[len(bk)-1]
	eq.Buckets[i] = bk[:len(bk)-1]
	if ev.Step != step {
		panic(fmt.Sprintf("ringbuf.EventQueue: event due at step %d found in bucket for step %d", ev.Step, step))
	}
	return ev, true
}
