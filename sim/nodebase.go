// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

// NodeBase holds the infrastructure-level identity of a node, for embedding
// in concrete node types.  It provides the params.Styler surface so that
// parameter style sheets can select nodes by type, class, or name.
type NodeBase struct {

	// our name: population name plus index within it.
	Nm string

	// class tag(s) for parameter styling, space separated.
	Cls string

	// index of this node in the network's flat node list.
	Index int

	// index of the thread (partition) this node is assigned to.
	Thread int
}

func (nb *NodeBase) Name() string { return nb.Nm }

// SetIndexes is called by the network during Build to record the node's
// flat index and thread assignment.
func (nb *NodeBase) SetIndexes(index, thread int) {
	nb.Index = index
	nb.Thread = thread
}

// SetClass sets the class tag(s) used by parameter style selectors; the
// network applies the population's class when the node is added.
func (nb *NodeBase) SetClass(cls string) {
	nb.Cls = cls
}

// params.Styler interface:

func (nb *NodeBase) StyleType() string  { return "Node" }
func (nb *NodeBase) StyleClass() string { return nb.Cls }
func (nb *NodeBase) StyleName() string  { return nb.Nm }
