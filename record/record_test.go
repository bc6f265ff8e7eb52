// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record_test

import (
	"math"
	"testing"

	"github.com/espike/espike/precise"
	"github.com/espike/espike/record"
	"github.com/espike/espike/sim"
)

func TestRecorderSample(t *testing.T) {
	ctx := sim.NewContext()
	ctx.StepMS = 1
	nrn := precise.New("n0")
	if err := nrn.Init(ctx); err != nil {
		t.Fatal(err)
	}
	rc := record.NewRecorder("test", "V", "Bogus")

	nrn.SetVarByName("V", 3.5)
	rc.Sample(ctx, nrn)
	ctx.StepInc()
	nrn.SetVarByName("V", -1.25)
	rc.Sample(ctx, nrn)

	dt := rc.Table
	if dt.Rows != 2 {
		t.Fatalf("rows: got %d, want 2\n", dt.Rows)
	}
	if got := dt.Float("Step", 1); got != 1 {
		t.Errorf("Step: got %v, want 1\n", got)
	}
	if got := dt.Float("TimeMS", 1); got != 1 {
		t.Errorf("TimeMS: got %v, want 1\n", got)
	}
	if got := dt.Float("V", 0); got != 3.5 {
		t.Errorf("V row 0: got %v, want 3.5\n", got)
	}
	if got := dt.Float("V", 1); got != -1.25 {
		t.Errorf("V row 1: got %v, want -1.25\n", got)
	}
	if got := dt.Float("Bogus", 0); !math.IsNaN(got) {
		t.Errorf("unknown variable: got %v, want NaN\n", got)
	}
}

func TestRecorderInterval(t *testing.T) {
	ctx := sim.NewContext()
	ctx.StepMS = 1
	nrn := precise.New("n0")
	if err := nrn.Init(ctx); err != nil {
		t.Fatal(err)
	}
	rc := record.NewRecorder("test", "V")
	rc.Interval = 3
	for i := 0; i < 9; i++ {
		rc.Sample(ctx, nrn)
		ctx.StepInc()
	}
	if rc.Table.Rows != 3 { // steps 0, 3, 6
		t.Errorf("rows: got %d, want 3\n", rc.Table.Rows)
	}
	if got := rc.Table.Float("Step", 2); got != 6 {
		t.Errorf("last sampled step: got %v, want 6\n", got)
	}
}

func TestRecorderReset(t *testing.T) {
	ctx := sim.NewContext()
	nrn := precise.New("n0")
	if err := nrn.Init(ctx); err != nil {
		t.Fatal(err)
	}
	rc := record.NewRecorder("test", "V")
	rc.Sample(ctx, nrn)
	rc.Reset()
	if rc.Table.Rows != 0 {
		t.Errorf("rows after Reset: got %d, want 0\n", rc.Table.Rows)
	}
	rc.Sample(ctx, nrn)
	if rc.Table.Rows != 1 {
		t.Errorf("rows after re-sample: got %d, want 1\n", rc.Table.Rows)
	}
}
