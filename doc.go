// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package espike is the overall repository for the espike spiking network
simulation core implemented in the Go language (golang).

This top-level of the repository has no functional code -- everything is
organized into the following sub-packages:

* sim: the network container, the threaded slice runner, the simulation
Context (resolution and delay bounds), events, and the common node
interface and base.  Nodes within a min-delay slice are advanced in
parallel; emitted spikes are routed after the slice barrier.

* precise: the current-based integrate-and-fire neuron with alpha or
exponential postsynaptic currents and precise (sub-step) spike timing:
input spikes are applied at their exact offsets by chaining exact
propagator ministeps, and threshold crossings are located inside the
step by bisection.

* eprop: the integrate-and-fire neuron with delta postsynaptic currents
and e-prop (eligibility propagation) plasticity, plus the plastic
synapse model that reconstructs eligibility traces from the neuron's
learning history at each presynaptic spike.

* optimizer: the pluggable weight optimizers (gradient descent, Adam)
used by the plastic synapses, with batched gradient accumulation.

* propagator: exact integration coefficients for the leaky-membrane and
synaptic-current ODEs over arbitrary sub-step intervals.

* gen: stimulus generators -- Poisson and scripted spike sources with
exact off-grid spike times, and a windowed DC current source.

* ringbuf: the per-neuron delivery structures: step-indexed accumulation
ring buffers and the offset-sorted in-step event queue.

* record: per-step state recording into tables with CSV export.

* examples: these compile into runnable programs; examples/twopool runs
a small excitatory/inhibitory circuit with Poisson and DC drive and a
plastic e-prop readout, and is the starting point for your own models.
*/
package espike
