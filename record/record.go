// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package record logs per-step node state variables into a table.Table,
one row per sampled step, for analysis and CSV export.  A Recorder is
attached to one node via Network.AddSampler and runs on the node's own
update thread, so sampling needs no locking.
*/
package record

import (
	"math"
	"strconv"

	"cogentcore.org/core/core"
	"cogentcore.org/core/tensor/table"

	"github.com/espike/espike/sim"
)

// LogPrec is precision for saving float values in logs.
const LogPrec = 6

// Recorder samples a fixed set of a node's state variables once per step
// (or every Interval-th step) into its table.
type Recorder struct {

	// sampled data: Step, TimeMS, then one column per variable.
	Table *table.Table

	// names of the node variables to sample, in column order.
	Vars []string

	// sample every Interval-th step; 0 or 1 samples every step.
	Interval int
}

// NewRecorder returns a recorder for the given node variables, with the
// table schema configured.
func NewRecorder(name string, vars ...string) *Recorder {
	rc := &Recorder{Table: &table.Table{}, Vars: vars}
	dt := rc.Table
	dt.SetMetaData("name", name)
	dt.SetMetaData("read-only", "true")
	dt.SetMetaData("precision", strconv.Itoa(LogPrec))
	dt.AddIntColumn("Step")
	dt.AddFloat64Column("TimeMS")
	for _, vr := range vars {
		dt.AddFloat64Column(vr)
	}
	dt.SetNumRows(0)
	return rc
}

// Sample appends one row with the node's current variable values.
// Unknown variable names record as NaN.  Implements sim.StepSampler.
func (rc *Recorder) Sample(ctx *sim.Context, nd sim.Node) {
	if rc.Interval > 1 && ctx.Step%rc.Interval != 0 {
		return
	}
	dt := rc.Table
	row := dt.Rows
	dt.SetNumRows(row + 1)
	dt.SetFloat("Step", row, float64(ctx.Step))
	dt.SetFloat("TimeMS", row, float64(ctx.TimeMS))
	for _, vr := range rc.Vars {
		v, err := nd.VarByName(vr)
		if err != nil {
			dt.SetFloat(vr, row, math.NaN())
			continue
		}
		dt.SetFloat(vr, row, float64(v))
	}
}

// Reset drops all sampled rows, keeping the schema.
func (rc *Recorder) Reset() {
	rc.Table.SetNumRows(0)
}

// SaveCSV writes the sampled data as tab-separated values with headers.
func (rc *Recorder) SaveCSV(fname string) error {
	return rc.Table.SaveCSV(core.Filename(fname), table.Tab, table.Headers)
}
