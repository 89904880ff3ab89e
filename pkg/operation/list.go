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
	"time"

	"github.com/pgsentinel/pgsentinel/pkg/backup"
	"github.com/pgsentinel/pgsentinel/pkg/protocol"
	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/walseg"
)

// List enumerates srv's backup catalog, grounded on
// pgmoneta_list_backup. Each entry reports two distinct WAL counters
// rather than reusing a single "WAL" key twice (spec.md §9 open
// question (c)): Wal is the absolute segment count from segment 0 of
// the backup's timeline, Delta is the count since the prior backup in the
// catalog.
func List(ctx context.Context, srv *server.Server) Result {
	if !srv.Valid() {
		return errorResult(protocol.ErrServerNotValid)
	}

	start := time.Now()

	infos, err := backup.ListBackups(srv.BackupRoot)
	if err != nil {
		return errorResult(protocol.ErrAllocation)
	}

	segSize := srv.WALSegmentSize
	if segSize == 0 {
		segSize = walseg.DefaultSegmentSize
	}

	entries := make([]protocol.BackupEntry, 0, len(infos))
	var previous *backup.Info
	for _, info := range infos {
		entry := protocol.BackupEntry{
			Label:       info.Label,
			Valid:       info.Valid == backup.ValidityValid,
			Keep:        info.Keep,
			BackupSize:  info.BackupSize,
			RestoreSize: info.RestoreSize,
		}

		if info.StartWAL != "" {
			if seg, err := walseg.FromName(info.StartWAL); err == nil {
				origin := walseg.Segment{TimelineID: seg.TimelineID}
				entry.Wal = walseg.Count(origin, seg, segSize)
			}
		}
		if previous != nil && previous.StartWAL != "" && info.StartWAL != "" {
			from, errFrom := walseg.FromName(previous.StartWAL)
			to, errTo := walseg.FromName(info.StartWAL)
			if errFrom == nil && errTo == nil {
				entry.Delta = walseg.Count(from, to, segSize)
			}
		}

		entries = append(entries, entry)
		previous = info
	}

	return okResult(protocol.Response{Server: srv.Name, Backups: entries}, start)
}
