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

// Package stage implements the workflow.Stage library: permissions,
// cleanup, link, verify, local-storage, and the supplemental hash,
// compress, encrypt and retention stages.
package stage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pgsentinel/pgsentinel/pkg/log"
	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

// PermissionType selects which execute behaviour a Permissions stage
// applies (spec.md §4.3, "Selected by sub-type at construction").
type PermissionType int

const (
	PermissionBackup PermissionType = iota
	PermissionRestore
	PermissionArchive
)

const (
	dirMode     = 0o700
	fileMode    = 0o600
	archiveMode = 0o600
)

// Permissions walks the relevant directory (or archive file) and
// applies a fixed permission policy, grounded on wf_permissions.c.
type Permissions struct {
	workflow.BaseStage
	Type PermissionType
}

// NewPermissions builds a Permissions stage for the given sub-type.
func NewPermissions(t PermissionType) *Permissions {
	return &Permissions{BaseStage: workflow.BaseStage{StageName: "permissions"}, Type: t}
}

func (p *Permissions) Setup(ctx context.Context, srv *server.Server, label string, bag *workflow.Bag) error {
	log.FromContext(ctx).V(2).Info("permissions setup", "server", srv.Name, "label", label)
	return nil
}

func (p *Permissions) Execute(ctx context.Context, srv *server.Server, label string, bag *workflow.Bag) error {
	logger := log.FromContext(ctx)

	switch p.Type {
	case PermissionBackup:
		path := filepath.Join(srv.BackupRoot, label, "data")
		logger.V(2).Info("permissions backup", "path", path)
		return recursiveChmod(path)

	case PermissionRestore:
		targetBase, _ := bag.GetString(workflow.KeyTargetBase)
		logger.V(2).Info("permissions restore", "path", targetBase)
		if targetBase == "" {
			return nil
		}
		return recursiveChmod(targetBase)

	case PermissionArchive:
		targetRoot, _ := bag.GetString(workflow.KeyTargetRoot)
		if targetRoot == "" {
			return nil
		}
		path := filepath.Join(targetRoot, srv.Name+"-"+label+".tar")
		logger.V(2).Info("permissions archive", "path", path)
		if _, err := os.Stat(path); err != nil {
			return nil
		}
		return os.Chmod(path, archiveMode)
	}

	return nil
}

func (p *Permissions) Teardown(ctx context.Context, srv *server.Server, label string, bag *workflow.Bag) error {
	log.FromContext(ctx).V(2).Info("permissions teardown", "server", srv.Name, "label", label)
	return nil
}

// recursiveChmod applies dirMode to directories and fileMode to
// regular files under root.
func recursiveChmod(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return os.Chmod(path, dirMode)
		}
		return os.Chmod(path, fileMode)
	})
}
