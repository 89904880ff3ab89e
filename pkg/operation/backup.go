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
	"os"
	"path/filepath"
	"time"

	"github.com/pgsentinel/pgsentinel/pkg/backup"
	"github.com/pgsentinel/pgsentinel/pkg/composer"
	"github.com/pgsentinel/pgsentinel/pkg/log"
	"github.com/pgsentinel/pgsentinel/pkg/protocol"
	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

// Backup drives a full physical base backup against srv, grounded
// line-for-line on pgmoneta_backup in original_source's backup.c.
func Backup(ctx context.Context, srv *server.Server, globalWorkers int) Result {
	logger := log.FromContext(ctx)

	// 1. Validate preconditions.
	if !srv.Valid() {
		return errorResult(protocol.ErrServerNotValid)
	}
	if !srv.WALStreaming() {
		return errorResult(protocol.ErrServerNotStreaming)
	}
	if !srv.TryAcquire(server.KindBackup) {
		return errorResult(protocol.ErrBackupActive)
	}
	defer srv.Release(server.KindBackup)

	// 2. Record start time.
	start := time.Now()

	// 3. Allocate a label and create the backup directory tree.
	label := newLabel(start)
	base := filepath.Join(srv.BackupRoot, label)
	dataDir := filepath.Join(base, "data")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		logger.Error(err, "backup: creating directory tree", "server", srv.Name, "label", label)
		return errorResult(protocol.ErrAllocation)
	}

	info := backup.New(label)
	info.HashAlgorithm = srv.HashAlgorithm
	infoPath := filepath.Join(base, "backup.info")
	if err := info.Save(infoPath); err != nil {
		logger.Error(err, "backup: writing initial backup.info", "server", srv.Name, "label", label)
		return errorResult(protocol.ErrAllocation)
	}

	// 4. Build the workflow and seed the context bag.
	workers := srv.EffectiveWorkers(globalWorkers)
	wf, err := composer.Compose(workflow.KindBackup, srv, workers, nil)
	if err != nil {
		logger.Error(err, "backup: composing workflow", "server", srv.Name, "label", label)
		return errorResult(protocol.ErrAllocation)
	}

	bag := workflow.NewBag(true)
	bag.Add(workflow.KeyServer, srv.Name, workflow.TagString)
	bag.Add(workflow.KeyLabel, label, workflow.TagString)
	bag.Add(workflow.KeyBackupBase, base, workflow.TagString)
	bag.Add(workflow.KeyWorkers, workers, workflow.TagInt)

	// 5. Run the three-phase sweep.
	result := workflow.Run(ctx, wf, srv, label, bag)
	if !result.Ok() {
		logger.Error(wrapStageError(result), "backup: workflow failed", "server", srv.Name, "label", label)
		markInvalid(infoPath, label)
		return errorResult(phaseErrorCode(result.FailedPhase))
	}

	// 6. On success, reload the metadata the stage chain wrote (the
	// local-storage stage fills in BackupSize/RestoreSize) so finalizing
	// Valid/Elapsed here doesn't clobber it with the stale in-memory
	// copy from step 3, then assemble the response.
	saved, err := backup.Load(infoPath)
	if err != nil {
		logger.Error(err, "backup: reloading backup.info", "server", srv.Name, "label", label)
		return errorResult(protocol.ErrAllocation)
	}
	saved.Valid = backup.ValidityValid
	saved.Elapsed = time.Since(start)
	if err := saved.Save(infoPath); err != nil {
		logger.Error(err, "backup: finalizing backup.info", "server", srv.Name, "label", label)
		return errorResult(protocol.ErrAllocation)
	}

	resp := protocol.Response{
		Server:      srv.Name,
		Backup:      label,
		BackupSize:  saved.BackupSize,
		RestoreSize: saved.RestoreSize,
	}
	return okResult(resp, start)
}

// markInvalid flips a partially-completed backup's VALID flag to
// false so a subsequent list-backup surfaces it and retention may
// sweep it (spec.md §7 "User-visible behaviour").
func markInvalid(infoPath, label string) {
	info, err := backup.Load(infoPath)
	if err != nil {
		info = backup.New(label)
	}
	info.Valid = backup.ValidityInvalid
	_ = info.Save(infoPath)
}
