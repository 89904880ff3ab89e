/*
Copyright The PGSentinel Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/pgsentinel/pgsentinel/pkg/log"
	"github.com/pgsentinel/pgsentinel/pkg/server"
)

// FailedPhase names which of the three sweeps produced the first
// failure, feeding the protocol error taxonomy (spec.md §7,
// "Workflow: setup/execute/teardown failed in stage X").
type FailedPhase string

const (
	PhaseNone     FailedPhase = ""
	PhaseSetup    FailedPhase = "setup"
	PhaseExecute  FailedPhase = "execute"
	PhaseTeardown FailedPhase = "teardown"
)

// Result is the outcome of running a Workflow to completion.
type Result struct {
	Err         error
	FailedPhase FailedPhase
	FailedStage string
	Elapsed     time.Duration
}

// Ok reports whether every stage completed all three phases without
// error.
func (r Result) Ok() bool {
	return r.Err == nil
}

// Run executes wf's three-phase sweep against srv/label, threading bag
// through every stage. Stages within a phase run sequentially in chain
// order; all setups run before any execute, and all executes before
// any teardown (spec.md §4.1, §5 "Ordering guarantees").
//
// If a stage fails setup or execute, the driver stops the remaining
// stages of that phase but still tears down, head to tail, every stage
// whose setup succeeded — releasing partial state even on failure. The
// first failure encountered is the operation's result.
func Run(ctx context.Context, wf *Workflow, srv *server.Server, label string, bag *Bag) Result {
	start := time.Now()
	logger := log.FromContext(ctx).WithName("workflow").WithValues("kind", wf.Kind.String(), "label", label)

	setupOK := make([]bool, len(wf.Stages))

	var result Result

	for i, stage := range wf.Stages {
		if result.Err != nil {
			break
		}
		if err := stage.Setup(ctx, srv, label, bag); err != nil {
			logger.Error(err, "stage setup failed", "stage", stage.Name())
			result.Err = fmt.Errorf("stage %q setup: %w", stage.Name(), err)
			result.FailedPhase = PhaseSetup
			result.FailedStage = stage.Name()
			break
		}
		setupOK[i] = true
	}

	if result.Err == nil {
		for _, stage := range wf.Stages {
			if result.Err != nil {
				break
			}
			if err := stage.Execute(ctx, srv, label, bag); err != nil {
				logger.Error(err, "stage execute failed", "stage", stage.Name())
				result.Err = fmt.Errorf("stage %q execute: %w", stage.Name(), err)
				result.FailedPhase = PhaseExecute
				result.FailedStage = stage.Name()
				break
			}
		}
	}

	for i, stage := range wf.Stages {
		if !setupOK[i] {
			continue
		}
		if err := stage.Teardown(ctx, srv, label, bag); err != nil {
			logger.Error(err, "stage teardown failed", "stage", stage.Name())
			if result.Err == nil {
				result.Err = fmt.Errorf("stage %q teardown: %w", stage.Name(), err)
				result.FailedPhase = PhaseTeardown
				result.FailedStage = stage.Name()
			}
		}
	}

	result.Elapsed = time.Since(start)
	return result
}
