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

package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/pgsentinel/pgsentinel/pkg/log"
)

var labelPattern = regexp.MustCompile(`^\d{14}$`)

// Catalog is the sorted collection of a server's backups, recovered
// from the teacher's pkg/management/catalog abstraction (NewCatalog,
// List, LatestBackupInfo, FirstRecoverabilityPoint,
// FindClosestBackupInfo) to serve restore's point-in-time target
// resolution, itself implied but unspecified by spec.md §1.
type Catalog struct {
	List []*Info
}

// NewCatalog sorts backups ascending by label (spec.md §3: "Ordering:
// by label, lexicographic == chronological").
func NewCatalog(backups []*Info) *Catalog {
	list := make([]*Info, len(backups))
	copy(list, backups)
	sort.Slice(list, func(i, j int) bool { return list[i].Label < list[j].Label })
	return &Catalog{List: list}
}

// ListBackups enumerates child directories of root whose name matches
// the label pattern, reads each backup.info, and returns them sorted
// by label ascending. Malformed entries are skipped with a logged
// warning (spec.md §4.6, "get_backups").
func ListBackups(root string) ([]*Info, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var infos []*Info
	for _, entry := range entries {
		if !entry.IsDir() || !labelPattern.MatchString(entry.Name()) {
			continue
		}

		infoPath := filepath.Join(root, entry.Name(), "backup.info")
		info, err := Load(infoPath)
		if err != nil {
			log.Warning("skipping malformed backup entry", "label", entry.Name(), "error", err.Error())
			continue
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Label < infos[j].Label })
	return infos, nil
}

// LatestBackupInfo returns the most recent backup, or nil if the
// catalog is empty.
func (c *Catalog) LatestBackupInfo() *Info {
	if len(c.List) == 0 {
		return nil
	}
	return c.List[len(c.List)-1]
}

// labelTime parses a YYYYMMDDHHMMSS label as a local time.
func labelTime(label string) (time.Time, error) {
	return time.ParseInLocation("20060102150405", label, time.Local)
}

// FirstRecoverabilityPoint returns the earliest time from which
// point-in-time recovery is possible: the start time of the oldest
// valid backup. Returns nil when the catalog holds no valid backup.
func (c *Catalog) FirstRecoverabilityPoint() *time.Time {
	for _, info := range c.List {
		if info.Valid != ValidityValid {
			continue
		}
		t, err := labelTime(info.Label)
		if err != nil {
			continue
		}
		return &t
	}
	return nil
}

// FindClosestBackupInfo returns the most recent valid backup whose
// label is at or before target, or nil if none qualifies.
func (c *Catalog) FindClosestBackupInfo(target time.Time) (*Info, error) {
	var best *Info
	var bestTime time.Time

	for _, info := range c.List {
		if info.Valid != ValidityValid {
			continue
		}
		t, err := labelTime(info.Label)
		if err != nil {
			return nil, fmt.Errorf("backup: malformed label %q: %w", info.Label, err)
		}
		if t.After(target) {
			continue
		}
		if best == nil || t.After(bestTime) {
			best = info
			bestTime = t
		}
	}

	return best, nil
}
