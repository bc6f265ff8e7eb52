// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"fmt"
	"sync"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/core/tensor"
	"github.com/emer/emergent/v2/params"
	"github.com/emer/emergent/v2/paths"
)

// Synapse is the delivery-side hook for a connection.  A nil Synapse on a
// Connection means static transmission: the event is handed to the receiver
// unchanged.  Plastic synapse models intercept delivery to update their
// weight from the receiver's learning history before transmitting.
type Synapse interface {

	// Deliver processes a presynaptic spike event at the receiving end,
	// typically updating the synaptic weight and then enqueueing the event
	// on the receiver.  Returns a SolverError-class error on numerical
	// failure, which is fatal for the run.
	Deliver(ctx *Context, recv Node, ev *SpikeEvent) error
}

// Connection is one synaptic connection from a sending node to a receiving
// node.  Weight is the static weight; Syn, if non-nil, owns the weight
// instead (plastic synapses).
type Connection struct {

	// index of the receiving node.
	Recv int

	// static synaptic weight (pA amplitude for current-based models).
	Weight float32

	// connection delay in elementary steps; must be >= the network's
	// minimum delay.
	DelaySteps int

	// plastic synapse state; nil for static connections.
	Syn Synapse
}

// CurrentSource is implemented by nodes that inject continuous current
// (e.g., DC generators); the runner samples it once per step and routes
// the value to the node's targets as CurrentEvents.
type CurrentSource interface {
	CurrentOut(ctx *Context) float32
}

// StepSampler is run on a node's own thread after each Update, for
// per-step recording without cross-thread access.
type StepSampler interface {
	Sample(ctx *Context, nd Node)
}

// Population is a named group of nodes with a tensor shape, the unit of
// connection building and parameter styling.
type Population struct {

	// population name.
	Name string

	// class tag(s) for parameter styling, space separated.
	Class string

	// shape of the population, used by connectivity patterns.
	Shape tensor.Shape

	// index of the first node of this population in the network list.
	Off int

	// number of nodes.
	N int

	net *Network
}

// Node returns the i-th node of this population.
func (pl *Population) Node(i int) Node {
	return pl.net.Nodes[pl.Off+i]
}

// ApplyParams applies the given parameter style sheet to all nodes in this
// population, returning true if any parameter was set.
func (pl *Population) ApplyParams(pars *params.Sheet, setMsg bool) (bool, error) {
	applied := false
	var rerr error
	for i := 0; i < pl.N; i++ {
		nd := pl.Node(i)
		st, ok := nd.(params.Styler)
		if !ok {
			continue
		}
		app, err := pars.Apply(st, setMsg)
		if app {
			applied = true
		}
		if err != nil {
			rerr = err
		}
	}
	return applied, rerr
}

// routed is a spike or current delivery buffered during the parallel phase
// of a slice, applied after the barrier.
type routed struct {
	recv  int
	con   *Connection
	ev    SpikeEvent
	cur   CurrentEvent
	isCur bool
}

// Network owns the nodes, the connectivity, and the threaded slice runner.
// Within a min-delay slice, each thread advances its own partition of nodes
// step by step; emitted events are buffered per thread and routed into the
// target queues only after all threads reach the barrier, so no node's
// buffers are ever written while its owner thread may be reading them.
type Network struct {

	// overall name of network.
	Name string

	// flat list of all nodes.
	Nodes []Node

	// populations in added order.
	Pops []*Population

	// map of name to population; names must be unique.
	PopMap map[string]*Population

	// outgoing connections per sending node.
	SendCons [][]Connection

	// number of parallel threads (goroutines) to use.
	NThreads int

	// node indices per thread; round-robin by default, set during Build.
	ThrNodes [][]int

	// per-node step samplers (recorders).
	Samplers map[int][]StepSampler

	// network-level wait group for synchronizing threaded updates.
	WaitGp sync.WaitGroup

	built bool
}

// NewNetwork returns a new network with the given name, 1 thread default.
func NewNetwork(name string) *Network {
	nt := &Network{Name: name, NThreads: 1}
	nt.PopMap = make(map[string]*Population)
	nt.Samplers = make(map[int][]StepSampler)
	return nt
}

// AddPopulation adds n = product(shape) nodes built by the given
// constructor, as a named population.
func (nt *Network) AddPopulation(name, class string, shape []int, build func(i int) Node) *Population {
	pl := &Population{Name: name, Class: class, Off: len(nt.Nodes), net: nt}
	pl.Shape.SetShape(shape)
	pl.N = pl.Shape.Len()
	for i := 0; i < pl.N; i++ {
		nd := build(i)
		if cl, ok := nd.(interface{ SetClass(cls string) }); ok {
			cl.SetClass(class)
		}
		nt.Nodes = append(nt.Nodes, nd)
	}
	nt.Pops = append(nt.Pops, pl)
	if _, dup := nt.PopMap[name]; dup {
		errors.Log(fmt.Errorf("Network %s AddPopulation: population name %s is not unique", nt.Name, name))
	}
	nt.PopMap[name] = pl
	return pl
}

// PopByName returns a population by name (nil if not found).
func (nt *Network) PopByName(name string) *Population {
	return nt.PopMap[name]
}

// Connect builds connections from every sending to every receiving node
// selected by the given pattern, with uniform weight and delay (in steps).
// If synFn is non-nil it is called per connection to create a plastic
// synapse owning the weight.
func (nt *Network) Connect(send, recv *Population, pat paths.Pattern, weight float32, delaySteps int, synFn func(si, ri int) Synapse) {
	ssh := &send.Shape
	rsh := &recv.Shape
	_, _, cons := pat.Connect(ssh, rsh, send == recv)
	slen := ssh.Len()
	rlen := rsh.Len()
	cbits := cons.Values
	for ri := 0; ri < rlen; ri++ {
		rbi := ri * slen
		for si := 0; si < slen; si++ {
			if !cbits.Index(rbi + si) {
				continue
			}
			con := Connection{Recv: recv.Off + ri, Weight: weight, DelaySteps: delaySteps}
			if synFn != nil {
				con.Syn = synFn(si, ri)
			}
			nt.AddConnection(send.Off+si, con)
		}
	}
}

// AddConnection adds a single outgoing connection for the given sender.
func (nt *Network) AddConnection(sender int, con Connection) {
	for len(nt.SendCons) < len(nt.Nodes) {
		nt.SendCons = append(nt.SendCons, nil)
	}
	nt.SendCons[sender] = append(nt.SendCons[sender], con)
}

// AddSampler attaches a per-step sampler (e.g., a recorder) to the given
// node; it runs on the node's thread immediately after each Update.
func (nt *Network) AddSampler(node int, s StepSampler) {
	nt.Samplers[node] = append(nt.Samplers[node], s)
}

// Build validates the context and connectivity, partitions nodes across
// threads, and initializes every node.  Must be called before Run.
func (nt *Network) Build(ctx *Context) error {
	if err := ctx.Validate(); err != nil {
		return err
	}
	for len(nt.SendCons) < len(nt.Nodes) {
		nt.SendCons = append(nt.SendCons, nil)
	}
	for si := range nt.SendCons {
		for ci := range nt.SendCons[si] {
			con := &nt.SendCons[si][ci]
			if con.DelaySteps < ctx.MinDelaySteps || con.DelaySteps > ctx.MaxDelaySteps {
				return &BadPropertyError{Model: "sim.Network", Prop: "DelaySteps",
					Reason: fmt.Sprintf("connection %d->%d delay %d outside [MinDelaySteps, MaxDelaySteps] = [%d, %d]",
						si, con.Recv, con.DelaySteps, ctx.MinDelaySteps, ctx.MaxDelaySteps)}
			}
		}
	}
	if nt.NThreads < 1 {
		nt.NThreads = 1
	}
	nt.ThrNodes = make([][]int, nt.NThreads)
	for ni, nd := range nt.Nodes {
		th := ni % nt.NThreads
		nt.ThrNodes[th] = append(nt.ThrNodes[th], ni)
		if nb, ok := nd.(interface{ SetIndexes(index, thread int) }); ok {
			nb.SetIndexes(ni, th)
		}
		if err := nd.Init(ctx); err != nil {
			return err
		}
	}
	nt.built = true
	return nil
}

// Run advances the network by the given number of elementary steps,
// rounded up to whole min-delay slices.  Spikes generated within a slice
// become visible to their targets only in a later slice, per the delay
// bounds, which is what makes the parallel partition update race-free.
func (nt *Network) Run(ctx *Context, steps int) error {
	if !nt.built {
		return &BadPropertyError{Model: "sim.Network", Prop: "built", Reason: "Run called before Build"}
	}
	nslc := (steps + ctx.MinDelaySteps - 1) / ctx.MinDelaySteps
	thrOut := make([][]routed, nt.NThreads)
	thrErr := make([]error, nt.NThreads)
	for si := 0; si < nslc; si++ {
		nt.WaitGp.Add(nt.NThreads)
		for th := 0; th < nt.NThreads; th++ {
			go func(th int) {
				defer nt.WaitGp.Done()
				thrOut[th] = thrOut[th][:0]
				tctx := *ctx
				for s := 0; s < tctx.MinDelaySteps; s++ {
					for _, ni := range nt.ThrNodes[th] {
						nd := nt.Nodes[ni]
						cons := nt.SendCons[ni]
						send := func(offset, weight float32, mult int) {
							for ci := range cons {
								con := &cons[ci]
								thrOut[th] = append(thrOut[th], routed{recv: con.Recv, con: con,
									ev: SpikeEvent{Sender: ni, Step: tctx.Step, Offset: offset,
										Weight: weight * con.Weight, Multiplicity: mult, DelaySteps: con.DelaySteps}})
							}
						}
						if err := nd.Update(&tctx, send); err != nil {
							thrErr[th] = err
							return
						}
						if cs, ok := nd.(CurrentSource); ok {
							amp := cs.CurrentOut(&tctx)
							for ci := range cons {
								con := &cons[ci]
								thrOut[th] = append(thrOut[th], routed{recv: con.Recv, con: con, isCur: true,
									cur: CurrentEvent{Sender: ni, Step: tctx.Step,
										Current: amp * con.Weight, DelaySteps: con.DelaySteps}})
							}
						}
						for _, sm := range nt.Samplers[ni] {
							sm.Sample(&tctx, nd)
						}
					}
					tctx.StepInc()
				}
			}(th)
		}
		nt.WaitGp.Wait()
		for th := 0; th < nt.NThreads; th++ {
			if thrErr[th] != nil {
				return thrErr[th]
			}
		}
		// single-threaded routing keeps delivery deterministic
		for th := 0; th < nt.NThreads; th++ {
			for ri := range thrOut[th] {
				r := &thrOut[th][ri]
				recv := nt.Nodes[r.recv]
				if r.isCur {
					recv.HandleCurrent(ctx, &r.cur)
					continue
				}
				if r.con.Syn != nil {
					if err := r.con.Syn.Deliver(ctx, recv, &r.ev); err != nil {
						return err
					}
				} else {
					recv.HandleSpike(ctx, &r.ev)
				}
			}
		}
		for s := 0; s < ctx.MinDelaySteps; s++ {
			ctx.StepInc()
		}
	}
	return nil
}
