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
	"fmt"
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

// Restore materializes label's data files under directory, grounded on
// the same driver skeleton as Backup (spec.md §4.2).
func Restore(ctx context.Context, srv *server.Server, label, directory string, globalWorkers int) Result {
	logger := log.FromContext(ctx)

	if !srv.Valid() {
		return errorResult(protocol.ErrServerNotValid)
	}
	if !srv.TryAcquire(server.KindRestore) {
		return errorResult(protocol.ErrRestoreActive)
	}
	defer srv.Release(server.KindRestore)

	start := time.Now()

	base := filepath.Join(srv.BackupRoot, label)
	info, err := backup.Load(filepath.Join(base, "backup.info"))
	if err != nil {
		logger.Error(err, "restore: loading backup.info", "server", srv.Name, "label", label)
		return errorResult(protocol.ErrBackupNotFound)
	}
	if info.Valid != backup.ValidityValid {
		return errorResult(protocol.ErrBackupNotFound)
	}

	if err := copyTree(filepath.Join(base, "data"), directory); err != nil {
		logger.Error(err, "restore: copying data tree", "server", srv.Name, "label", label)
		return errorResult(protocol.ErrWorkflowExecute)
	}

	wf, err := composer.Compose(workflow.KindRestore, srv, srv.EffectiveWorkers(globalWorkers), nil)
	if err != nil {
		logger.Error(err, "restore: composing workflow", "server", srv.Name, "label", label)
		return errorResult(protocol.ErrAllocation)
	}

	bag := workflow.NewBag(false)
	bag.Add(workflow.KeyServer, srv.Name, workflow.TagString)
	bag.Add(workflow.KeyLabel, label, workflow.TagString)
	bag.Add(workflow.KeyTargetBase, directory, workflow.TagString)

	result := workflow.Run(ctx, wf, srv, label, bag)
	if !result.Ok() {
		logger.Error(wrapStageError(result), "restore: workflow failed", "server", srv.Name, "label", label)
		return errorResult(phaseErrorCode(result.FailedPhase))
	}

	return okResult(protocol.Response{Server: srv.Name, Backup: label, RestoreSize: info.RestoreSize}, start)
}

// copyTree copies every regular file under src into dst, preserving
// the relative directory structure.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if fi.IsDir() {
			return os.MkdirAll(target, 0o700)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.ReadFrom(in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return nil
}
