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
	"archive/tar"
	"context"
	"io"
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

// Archive bundles label's data tree into a single tar file under
// directory, then runs the archive permissions stage over it.
func Archive(ctx context.Context, srv *server.Server, label, directory string, globalWorkers int) Result {
	logger := log.FromContext(ctx)

	if !srv.Valid() {
		return errorResult(protocol.ErrServerNotValid)
	}
	if !srv.TryAcquire(server.KindArchive) {
		return errorResult(protocol.ErrArchiveActive)
	}
	defer srv.Release(server.KindArchive)

	start := time.Now()

	base := filepath.Join(srv.BackupRoot, label)
	info, err := backup.Load(filepath.Join(base, "backup.info"))
	if err != nil {
		logger.Error(err, "archive: loading backup.info", "server", srv.Name, "label", label)
		return errorResult(protocol.ErrBackupNotFound)
	}
	if info.Valid != backup.ValidityValid {
		return errorResult(protocol.ErrBackupNotFound)
	}

	if err := os.MkdirAll(directory, 0o700); err != nil {
		return errorResult(protocol.ErrAllocation)
	}
	archivePath := filepath.Join(directory, srv.Name+"-"+label+".tar")
	if err := tarDirectory(filepath.Join(base, "data"), archivePath); err != nil {
		logger.Error(err, "archive: writing tar", "server", srv.Name, "label", label)
		return errorResult(protocol.ErrWorkflowExecute)
	}

	wf, err := composer.Compose(workflow.KindArchive, srv, srv.EffectiveWorkers(globalWorkers), nil)
	if err != nil {
		logger.Error(err, "archive: composing workflow", "server", srv.Name, "label", label)
		return errorResult(protocol.ErrAllocation)
	}

	bag := workflow.NewBag(false)
	bag.Add(workflow.KeyServer, srv.Name, workflow.TagString)
	bag.Add(workflow.KeyLabel, label, workflow.TagString)
	bag.Add(workflow.KeyTargetRoot, directory, workflow.TagString)

	result := workflow.Run(ctx, wf, srv, label, bag)
	if !result.Ok() {
		logger.Error(wrapStageError(result), "archive: workflow failed", "server", srv.Name, "label", label)
		return errorResult(phaseErrorCode(result.FailedPhase))
	}

	return okResult(protocol.Response{Server: srv.Name, Backup: label}, start)
}

// tarDirectory writes every regular file under src into a new tar
// archive at dst.
func tarDirectory(src, dst string) error {
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	tw := tar.NewWriter(f)
	defer tw.Close()

	return filepath.Walk(src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return err
		}
		hdr.Name = rel

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		_, err = io.Copy(tw, in)
		return err
	})
}
