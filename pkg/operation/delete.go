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

// Delete removes one backup by label, grounded on pgmoneta_delete_backup
// in original_source's backup.c. A second delete of an already-removed
// label surfaces protocol.ErrDelete (spec.md §8 scenario 5), since the
// delete stage's Setup fails when the backup directory no longer
// exists.
func Delete(ctx context.Context, srv *server.Server, label string, globalWorkers int) Result {
	logger := log.FromContext(ctx)

	if !srv.Valid() {
		return errorResult(protocol.ErrServerNotValid)
	}
	if !srv.TryAcquire(server.KindDelete) {
		return errorResult(protocol.ErrDeleteActive)
	}
	defer srv.Release(server.KindDelete)

	start := time.Now()

	wf, err := composer.Compose(workflow.KindDeleteBackup, srv, srv.EffectiveWorkers(globalWorkers), nil)
	if err != nil {
		logger.Error(err, "delete: composing workflow", "server", srv.Name, "label", label)
		return errorResult(protocol.ErrAllocation)
	}

	bag := workflow.NewBag(false)
	bag.Add(workflow.KeyServer, srv.Name, workflow.TagString)
	bag.Add(workflow.KeyLabel, label, workflow.TagString)

	result := workflow.Run(ctx, wf, srv, label, bag)
	if !result.Ok() {
		logger.Error(wrapStageError(result), "delete: workflow failed", "server", srv.Name, "label", label)
		if result.FailedPhase == workflow.PhaseSetup {
			return errorResult(protocol.ErrDelete)
		}
		return errorResult(phaseErrorCode(result.FailedPhase))
	}

	return okResult(protocol.Response{Server: srv.Name, Backup: label}, start)
}
