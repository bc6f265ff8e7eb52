// Copyright (c) 2024, The Espike Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import "fmt"

// BadPropertyError reports an invalid parameter value, detected at
// parameter-set time before any state is mutated.  The model's prior
// configuration remains valid when one of these is returned.
type BadPropertyError struct {

	// model or component name, e.g., "precise.Params".
	Model string

	// name of the offending property.
	Prop string

	// why the value was rejected.
	Reason string
}

func (e *BadPropertyError) Error() string {
	return fmt.Sprintf("%s: bad property %s: %s", e.Model, e.Prop, e.Reason)
}

// SolverError reports a numerical failure (root-finder non-convergence,
// NaN / Inf propagator output).  These indicate a violated numerical
// precondition, not recoverable data: callers must treat them as fatal
// for the current run.
type SolverError struct {

	// model name reporting the failure.
	Model string

	// solver status description.
	Status string
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("%s: solver failure: %s", e.Model, e.Status)
}
