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

package operation

import (
	"context"
	"time"

	"github.com/pgsentinel/pgsentinel/pkg/composer"
	"github.com/pgsentinel/pgsentinel/pkg/log"
	"github.com/pgsentinel/pgsentinel/pkg/protocol"
	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

// Verify re-hashes label's manifest rows and reports mismatches. Unlike
// the other drivers a per-file verify failure is not a workflow
// failure: the verify stage always completes and publishes its
// findings into failed/all (spec.md §7 "Per-file verify errors are not
// propagated as operation failure").
func Verify(ctx context.Context, srv *server.Server, label string, files protocol.FilesMode, globalWorkers int) Result {
	logger := log.FromContext(ctx)

	if !srv.Valid() {
		return errorResult(protocol.ErrServerNotValid)
	}
	if !srv.TryAcquire(server.KindVerify) {
		return errorResult(protocol.ErrVerifyActive)
	}
	defer srv.Release(server.KindVerify)

	start := time.Now()

	wf, err := composer.Compose(workflow.KindVerify, srv, srv.EffectiveWorkers(globalWorkers), nil)
	if err != nil {
		logger.Error(err, "verify: composing workflow", "server", srv.Name, "label", label)
		return errorResult(protocol.ErrAllocation)
	}

	bag := workflow.NewBag(true)
	bag.Add(workflow.KeyServer, srv.Name, workflow.TagString)
	bag.Add(workflow.KeyLabel, label, workflow.TagString)
	bag.Add(workflow.KeyFiles, string(files), workflow.TagString)

	result := workflow.Run(ctx, wf, srv, label, bag)
	if !result.Ok() {
		logger.Error(wrapStageError(result), "verify: workflow failed", "server", srv.Name, "label", label)
		return errorResult(phaseErrorCode(result.FailedPhase))
	}

	resp := protocol.Response{Server: srv.Name, Backup: label}
	if failedRaw, _, ok := bag.Get(workflow.KeyFailed); ok {
		if failed, ok := failedRaw.([]protocol.VerifyEntry); ok {
			resp.Failed = failed
		}
	}
	if allRaw, _, ok := bag.Get(workflow.KeyAll); ok {
		if all, ok := allRaw.([]protocol.VerifyEntry); ok {
			resp.All = all
		}
	}

	return okResult(resp, start)
}
