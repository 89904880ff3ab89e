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

package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pgsentinel/pgsentinel/pkg/backup"
	"github.com/pgsentinel/pgsentinel/pkg/log"
	"github.com/pgsentinel/pgsentinel/pkg/manifest"
	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/workers"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

// Link reads the new backup's manifest and the newest valid
// predecessor manifest sharing the same major version, computes the
// deleted/changed/added three-way diff, and hardlinks every file in
// neither changed nor added against the predecessor. Grounded on
// wf_link.c.
type Link struct {
	workflow.BaseStage

	// GlobalWorkers is the default pool size when the server has no
	// override.
	GlobalWorkers int
}

// NewLink builds the link stage.
func NewLink(globalWorkers int) *Link {
	return &Link{BaseStage: workflow.BaseStage{StageName: "link"}, GlobalWorkers: globalWorkers}
}

func (l *Link) Execute(ctx context.Context, srv *server.Server, label string, bag *workflow.Bag) error {
	logger := log.FromContext(ctx)
	start := time.Now()

	infos, err := backup.ListBackups(srv.BackupRoot)
	if err != nil {
		return fmt.Errorf("link: listing backups: %w", err)
	}
	if len(infos) < 2 {
		return nil
	}

	newest := infos[len(infos)-1]

	var predecessor *backup.Info
	for i := len(infos) - 2; i >= 0; i-- {
		candidate := infos[i]
		if candidate.Valid == backup.ValidityValid && candidate.MajorVersion.EQ(newest.MajorVersion) {
			predecessor = candidate
			break
		}
	}
	if predecessor == nil {
		return nil
	}

	fromDir := filepath.Join(srv.BackupRoot, label)
	toDir := filepath.Join(srv.BackupRoot, predecessor.Label)

	newManifest, err := manifest.Load(filepath.Join(fromDir, "backup.manifest"))
	if err != nil {
		return fmt.Errorf("link: loading new manifest: %w", err)
	}
	oldManifest, err := manifest.Load(filepath.Join(toDir, "backup.manifest"))
	if err != nil {
		return fmt.Errorf("link: loading predecessor manifest: %w", err)
	}

	unchanged := manifest.Unchanged(oldManifest, newManifest)

	numWorkers := srv.EffectiveWorkers(l.GlobalWorkers)
	pool := workers.New(numWorkers)

	for relPath := range unchanged {
		relPath := relPath
		pool.Add(func() error {
			return hardlinkFile(toDir, fromDir, relPath)
		})
	}

	pool.Wait()
	pool.Destroy()

	if !pool.Outcome() {
		return fmt.Errorf("link: one or more hardlink jobs failed")
	}

	elapsed := time.Since(start)
	logger.V(2).Info("link complete", "server", srv.Name, "label", label,
		"predecessor", predecessor.Label, "unchanged", len(unchanged), "elapsed", elapsed)

	backupBase, _ := bag.GetString(workflow.KeyBackupBase)
	if backupBase == "" {
		backupBase = fromDir
	}
	return recordLinkingElapsed(backupBase, elapsed)
}

// hardlinkFile replaces data/<relPath> under fromDir with a hardlink
// to the same relative path under toDir.
func hardlinkFile(toDir, fromDir, relPath string) error {
	src := filepath.Join(toDir, "data", relPath)
	dst := filepath.Join(fromDir, "data", relPath)

	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("link: removing %s: %w", dst, err)
	}

	if err := os.Link(src, dst); err != nil {
		return fmt.Errorf("link: linking %s -> %s: %w", src, dst, err)
	}
	return nil
}

// recordLinkingElapsed updates backup.info's LINKING_ELAPSED key
// in-place.
func recordLinkingElapsed(backupBase string, elapsed time.Duration) error {
	infoPath := filepath.Join(backupBase, "backup.info")
	info, err := backup.Load(infoPath)
	if err != nil {
		return fmt.Errorf("link: reloading backup.info: %w", err)
	}
	info.LinkingElapsed = elapsed
	return info.Save(infoPath)
}
