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

	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

// Delete removes a backup directory tree from local storage. Named in
// spec.md §8 scenario 5 ("Invoke delete on L1 ... a second delete of L1
// returns error code DELETE_ERROR") but, unlike permissions/cleanup/
// link/verify/local-storage, has no corresponding wf_*.c file in the
// retrieved sources (only the driver loop in backup.c's
// pgmoneta_delete_backup is present) — modeled on that driver's
// setup/execute/teardown split rather than on a specific stage file.
type Delete struct {
	workflow.BaseStage
}

// NewDelete builds the delete stage.
func NewDelete() *Delete {
	return &Delete{BaseStage: workflow.BaseStage{StageName: "delete"}}
}

func (d *Delete) Setup(ctx context.Context, srv *server.Server, label string, bag *workflow.Bag) error {
	base := filepath.Join(srv.BackupRoot, label)
	if _, err := os.Stat(base); err != nil {
		return fmt.Errorf("delete setup: backup %s not found: %w", label, err)
	}
	bag.Add(workflow.KeyTargetBase, base, workflow.TagString)
	return nil
}

func (d *Delete) Execute(ctx context.Context, srv *server.Server, label string, bag *workflow.Bag) error {
	base := filepath.Join(srv.BackupRoot, label)
	return os.RemoveAll(base)
}
