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

// Package composer builds the stage chain for each operation kind
// (spec.md §4.1, "the composer returns the head of a stage chain").
//
// It lives apart from pkg/workflow, which only the stage chain types
// themselves and the three-phase driver call home to: pkg/stage must
// import pkg/workflow for the Stage interface and Bag, so a Compose
// function that assembles concrete stages cannot also live in
// pkg/workflow without an import cycle. Splitting composition into its
// own package keeps pkg/workflow a leaf (chain machinery only) while
// still satisfying the "composer builds a chain by operation type"
// contract spec.md §4.1 describes for "pkg/workflow".
package composer

import (
	"fmt"

	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/stage"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

// DeleteFunc is passed through to the retention stage so the composer
// can wire a delete-by-label callback without importing pkg/operation
// (which in turn depends on composer), per stage.DeleteFunc.
type DeleteFunc = stage.DeleteFunc

// Compose builds the stage chain for kind against srv, taking the
// effective worker pool size already resolved by the caller
// (server.Server.EffectiveWorkers).
func Compose(kind workflow.OperationKind, srv *server.Server, workers int, del DeleteFunc) (*workflow.Workflow, error) {
	switch kind {
	case workflow.KindBackup:
		return &workflow.Workflow{
			Kind: kind,
			Stages: []workflow.Stage{
				stage.NewPermissions(stage.PermissionBackup),
				stage.NewHash(srv.HashAlgorithm, workers),
				stage.NewLink(workers),
				stage.NewCompress(srv.CompressBackups),
				stage.NewEncrypt(srv.EncryptBackups, srv.EncryptionKey),
				stage.NewLocalStorage(),
			},
		}, nil

	case workflow.KindDeleteBackup:
		return &workflow.Workflow{
			Kind:   kind,
			Stages: []workflow.Stage{stage.NewDelete()},
		}, nil

	case workflow.KindRestore:
		return &workflow.Workflow{
			Kind: kind,
			Stages: []workflow.Stage{
				stage.NewPermissions(stage.PermissionRestore),
				stage.NewCleanup(),
			},
		}, nil

	case workflow.KindArchive:
		return &workflow.Workflow{
			Kind:   kind,
			Stages: []workflow.Stage{stage.NewPermissions(stage.PermissionArchive)},
		}, nil

	case workflow.KindVerify:
		return &workflow.Workflow{
			Kind:   kind,
			Stages: []workflow.Stage{stage.NewVerify(workers)},
		}, nil

	default:
		return nil, fmt.Errorf("composer: unknown operation kind %v", kind)
	}
}

// ComposeRetention builds the standalone retention sweep chain run on
// the robfig/cron schedule rather than in response to a management
// request (SPEC_FULL.md §4.3, "retention").
func ComposeRetention(srv *server.Server, del DeleteFunc) *workflow.Workflow {
	return &workflow.Workflow{
		Kind:   workflow.KindDeleteBackup,
		Stages: []workflow.Stage{stage.NewRetention(srv.RetentionKeepCount, srv.RetentionMaxAge, del)},
	}
}
