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

// Package walseg names and counts write-ahead log segments. The core
// never parses WAL record contents (out of scope, spec.md §1); it only
// ever needs to name a segment file and count how many segments lie
// between two backups' starting positions.
package walseg

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// DefaultSegmentSize is the conventional 16MiB WAL segment size used
// when a server override is not configured (spec.md §3, "WAL segment
// size").
const DefaultSegmentSize int64 = 16 * 1024 * 1024

// Segment identifies a WAL file by timeline, log and segment-within-log
// numbers, exactly as Postgres names them: a 24 hex-digit string built
// from three 8-digit fields.
type Segment struct {
	TimelineID uint32
	LogID      uint32
	SegID      uint32
}

var walFileRegexp = regexp.MustCompile(`^[0-9A-F]{24}$`)

// Name renders the segment as a 24 hex-digit Postgres WAL file name.
func (s Segment) Name() string {
	return fmt.Sprintf("%08X%08X%08X", s.TimelineID, s.LogID, s.SegID)
}

// FromName parses a 24 hex-digit WAL file name into a Segment.
func FromName(name string) (Segment, error) {
	if !walFileRegexp.MatchString(name) {
		return Segment{}, fmt.Errorf("walseg: %q is not a valid WAL segment name", name)
	}

	timeline, err := strconv.ParseUint(name[0:8], 16, 32)
	if err != nil {
		return Segment{}, err
	}
	logID, err := strconv.ParseUint(name[8:16], 16, 32)
	if err != nil {
		return Segment{}, err
	}
	segID, err := strconv.ParseUint(name[16:24], 16, 32)
	if err != nil {
		return Segment{}, err
	}

	return Segment{
		TimelineID: uint32(timeline),
		LogID:      uint32(logID),
		SegID:      uint32(segID),
	}, nil
}

// IsWALFile reports whether name (optionally with a leading directory
// path) looks like a plain WAL segment file, as opposed to a timeline
// history file or a .backup/.partial label file.
func IsWALFile(name string) bool {
	base := filepath.Base(name)
	return walFileRegexp.MatchString(base)
}

// segmentsPerLog is the number of segments in a single 4GiB logical
// WAL "log" file, given a configured segment size.
func segmentsPerLog(segmentSize int64) uint32 {
	if segmentSize <= 0 {
		segmentSize = DefaultSegmentSize
	}
	return uint32((4 * 1024 * 1024 * 1024) / segmentSize)
}

// Next returns the segment immediately following s, wrapping the
// segment-within-log counter into the log id as Postgres does.
func (s Segment) Next(segmentSize int64) Segment {
	perLog := segmentsPerLog(segmentSize)

	next := s
	next.SegID++
	if next.SegID >= perLog {
		next.SegID = 0
		next.LogID++
	}
	return next
}

// Count returns the number of segment steps between from and to
// (inclusive of from, exclusive of to), used to translate a WAL
// position delta into a number of files (spec.md §4.6 Wal/Delta
// reporting). segmentSize only fixes how many segments make up one log;
// the result is a segment count, not bytes.
func Count(from, to Segment, segmentSize int64) uint64 {
	perLog := uint64(segmentsPerLog(segmentSize))

	fromTotal := uint64(from.LogID)*perLog + uint64(from.SegID)
	toTotal := uint64(to.LogID)*perLog + uint64(to.SegID)

	if to.TimelineID != from.TimelineID || toTotal < fromTotal {
		return 0
	}

	return toTotal - fromTotal
}

// CountInDirectory counts the number of plain WAL segment files present
// in dir whose name falls in [from, to) when to is non-empty, or all
// segment files at-or-after from when to is empty. It never parses a
// segment's contents, only its file name.
func CountInDirectory(dir string, from string, to string) (uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	var count uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !IsWALFile(name) {
			continue
		}
		if strings.Compare(name, from) < 0 {
			continue
		}
		if to != "" && strings.Compare(name, to) >= 0 {
			continue
		}
		count++
	}

	return count, nil
}
