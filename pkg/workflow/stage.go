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

package workflow

import (
	"context"

	"github.com/pgsentinel/pgsentinel/pkg/server"
)

// Phase func(ctx, server, label, bag) error
type Phase func(ctx context.Context, srv *server.Server, label string, bag *Bag) error

// Stage is one link in a workflow chain. A stage that embeds BaseStage
// gets a no-op, always-successful phase for each of Setup, Execute and
// Teardown it does not override — this is the "polymorphic over the capability set" redesign
// named in spec.md §9, replacing the three-function-pointer-per-stage
// linked list with an interface any stage kind can satisfy partially.
type Stage interface {
	Name() string
	Setup(ctx context.Context, srv *server.Server, label string, bag *Bag) error
	Execute(ctx context.Context, srv *server.Server, label string, bag *Bag) error
	Teardown(ctx context.Context, srv *server.Server, label string, bag *Bag) error
}

// BaseStage supplies no-op Setup/Execute/Teardown so a concrete stage
// need only override the phases it implements.
type BaseStage struct {
	StageName string
}

func (b BaseStage) Name() string { return b.StageName }

func (b BaseStage) Setup(context.Context, *server.Server, string, *Bag) error { return nil }

func (b BaseStage) Execute(context.Context, *server.Server, string, *Bag) error { return nil }

func (b BaseStage) Teardown(context.Context, *server.Server, string, *Bag) error { return nil }

// Workflow is an ordered, immutable chain of stages built by a
// Composer. Once built, its stage slice is never mutated.
type Workflow struct {
	Kind   OperationKind
	Stages []Stage
}

// OperationKind names the operation a Workflow was composed for.
type OperationKind int

const (
	KindBackup OperationKind = iota
	KindDeleteBackup
	KindRestore
	KindArchive
	KindVerify
)

func (k OperationKind) String() string {
	switch k {
	case KindBackup:
		return "backup"
	case KindDeleteBackup:
		return "delete_backup"
	case KindRestore:
		return "restore"
	case KindArchive:
		return "archive"
	case KindVerify:
		return "verify"
	default:
		return "unknown"
	}
}
