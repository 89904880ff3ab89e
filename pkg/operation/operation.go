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

// Package operation implements the six-step driver skeleton (spec.md
// §4.2) for each management command: validate preconditions against
// the server's gate, build and run the composed workflow, and report a
// protocol.Response/protocol.Outcome pair.
//
// Where the teacher's backup.c calls exit(0)/exit(1) after sending a
// response over the management socket, these drivers instead return
// the Response/Outcome pair to their caller (the supervisor's dispatch
// loop), per spec.md §9 "model that explicitly" on the exit-on-
// completion idiom.
package operation

import (
	"fmt"
	"time"

	"github.com/pgsentinel/pgsentinel/pkg/protocol"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

// Result pairs a command's response payload with its terminal outcome.
type Result struct {
	Response protocol.Response
	Outcome  protocol.Outcome
}

func errorResult(code protocol.ErrorCode) Result {
	return Result{Outcome: protocol.Outcome{Status: false, Error: code}}
}

func okResult(resp protocol.Response, start time.Time) Result {
	return Result{
		Response: resp,
		Outcome:  protocol.Outcome{Status: true, Time: time.Since(start).String()},
	}
}

// phaseErrorCode maps a workflow.FailedPhase to the corresponding
// taxonomy code from spec.md §7.
func phaseErrorCode(phase workflow.FailedPhase) protocol.ErrorCode {
	switch phase {
	case workflow.PhaseSetup:
		return protocol.ErrWorkflowSetup
	case workflow.PhaseExecute:
		return protocol.ErrWorkflowExecute
	case workflow.PhaseTeardown:
		return protocol.ErrWorkflowTeardown
	default:
		return protocol.ErrWorkflowExecute
	}
}

func wrapStageError(result workflow.Result) error {
	return fmt.Errorf("stage %q: %w", result.FailedStage, result.Err)
}

// newLabel allocates a backup label from the current local time
// (spec.md §4.2 step 3, §6 "Label format").
func newLabel(now time.Time) string {
	return now.Format("20060102150405")
}
