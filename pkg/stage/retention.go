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
	"time"

	"github.com/thoas/go-funk"

	"github.com/pgsentinel/pgsentinel/pkg/backup"
	"github.com/pgsentinel/pgsentinel/pkg/log"
	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

// DeleteFunc removes one backup by label, reusing the delete
// operation's own workflow internally (spec.md §4.2 "delete").
type DeleteFunc func(ctx context.Context, srv *server.Server, label string) error

// Retention sweeps backups exceeding the configured count- or
// age-based policy, reusing the delete workflow via DeleteFunc. Named
// in spec.md's §2 component table but not detailed there; driven on a
// schedule by the engine's robfig/cron job (SPEC_FULL.md §4.3).
type Retention struct {
	workflow.BaseStage

	// KeepCount retains at least this many of the newest valid
	// backups regardless of age. Zero means no count-based floor.
	KeepCount int
	// MaxAge sweeps valid backups older than this duration. Zero
	// means no age-based ceiling.
	MaxAge time.Duration

	Delete DeleteFunc
}

// NewRetention builds the retention stage.
func NewRetention(keepCount int, maxAge time.Duration, del DeleteFunc) *Retention {
	return &Retention{
		BaseStage: workflow.BaseStage{StageName: "retention"},
		KeepCount: keepCount,
		MaxAge:    maxAge,
		Delete:    del,
	}
}

func (r *Retention) Execute(ctx context.Context, srv *server.Server, label string, bag *workflow.Bag) error {
	logger := log.FromContext(ctx)

	infos, err := backup.ListBackups(srv.BackupRoot)
	if err != nil {
		return err
	}

	eligible := r.eligibleForSweep(infos)

	for _, info := range eligible {
		if info.Keep {
			continue
		}
		logger.Info("retention sweeping backup", "server", srv.Name, "label", info.Label)
		if err := r.Delete(ctx, srv, info.Label); err != nil {
			return err
		}
	}

	return nil
}

// eligibleForSweep returns the valid backups, oldest first, that fall
// outside both the count floor and the age ceiling.
func (r *Retention) eligibleForSweep(infos []*backup.Info) []*backup.Info {
	valid := funk.Filter(infos, func(info *backup.Info) bool {
		return info.Valid == backup.ValidityValid
	}).([]*backup.Info)

	keepFromCount := r.KeepCount
	if keepFromCount > len(valid) {
		keepFromCount = len(valid)
	}
	candidates := valid
	if keepFromCount > 0 {
		candidates = valid[:len(valid)-keepFromCount]
	}

	if r.MaxAge <= 0 {
		return candidates
	}

	cutoff := time.Now().Add(-r.MaxAge)

	var out []*backup.Info
	for _, info := range candidates {
		t, err := labelTimeOf(info.Label)
		if err != nil || t.Before(cutoff) {
			out = append(out, info)
		}
	}
	return out
}

func labelTimeOf(label string) (time.Time, error) {
	return time.ParseInLocation("20060102150405", label, time.Local)
}
