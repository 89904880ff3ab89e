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
	"os"
	"path/filepath"

	"github.com/pgsentinel/pgsentinel/pkg/log"
	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

// Cleanup removes residual files left by lower layers that the
// database would reject on start, grounded on wf_cleanup.c. Today the
// only known residual is a restored backup_label.old.
type Cleanup struct {
	workflow.BaseStage
}

// NewCleanup builds the restore-cleanup stage.
func NewCleanup() *Cleanup {
	return &Cleanup{BaseStage: workflow.BaseStage{StageName: "cleanup"}}
}

func (c *Cleanup) Execute(ctx context.Context, srv *server.Server, label string, bag *workflow.Bag) error {
	logger := log.FromContext(ctx)

	targetBase, _ := bag.GetString(workflow.KeyTargetBase)
	if targetBase == "" {
		return nil
	}

	path := filepath.Join(targetBase, "backup_label.old")
	if _, err := os.Stat(path); err != nil {
		logger.V(2).Info("cleanup: nothing to remove", "path", path)
		return nil
	}

	logger.V(2).Info("cleanup: removing residual file", "path", path)
	return os.Remove(path)
}
