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

// Package manifest reads and writes the per-backup file inventory
// (backup.manifest) and computes the three-way diff that the link
// stage uses to decide which files to hardlink against a predecessor.
package manifest

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/thoas/go-funk"
)

// Row is one manifest entry: a data file's path relative to data/ and
// the hex digest of its content.
type Row struct {
	RelativePath string
	Hash         string
}

// Manifest is an ordered in-memory copy of a backup.manifest file.
// Loaded wholesale by callers (link, diff) that need random access;
// Reader below is the streaming alternative for callers that only need
// one pass.
type Manifest struct {
	Rows []Row
}

// Load reads the full manifest at path into memory.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m := &Manifest{}
	r := NewReader(f)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		m.Rows = append(m.Rows, row)
	}
	return m, nil
}

// ToMap indexes the manifest by relative path, for diffing.
func (m *Manifest) ToMap() map[string]string {
	out := make(map[string]string, len(m.Rows))
	for _, row := range m.Rows {
		out[row.RelativePath] = row.Hash
	}
	return out
}

// Reader yields manifest rows one at a time without buffering the
// whole file (spec.md §4.5).
type Reader struct {
	csv *csv.Reader
}

// NewReader wraps r as a streaming manifest reader.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = 2
	cr.ReuseRecord = true
	return &Reader{csv: cr}
}

// Read returns the next row, or io.EOF when the manifest is exhausted.
func (r *Reader) Read() (Row, error) {
	record, err := r.csv.Read()
	if err != nil {
		return Row{}, err
	}
	return Row{RelativePath: record[0], Hash: record[1]}, nil
}

// Writer appends rows to a backup.manifest file.
type Writer struct {
	csv *csv.Writer
}

// NewWriter wraps w as a manifest writer. Callers must call Flush (or
// Close the underlying writer) when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// Write appends one row.
func (w *Writer) Write(row Row) error {
	return w.csv.Write([]string{row.RelativePath, row.Hash})
}

// Flush flushes any buffered rows.
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}

// Diff computes the three sets that drive incremental linking:
// deleted (in old, not in new), added (in new, not in old), and
// changed (in both, with a different digest). Files present in neither
// set are unchanged and are the link stage's hardlink candidates
// (spec.md §4.5).
func Diff(old, newm *Manifest) (deleted, changed, added map[string]string) {
	oldMap := old.ToMap()
	newMap := newm.ToMap()

	deleted = make(map[string]string)
	changed = make(map[string]string)
	added = make(map[string]string)

	for path, oldHash := range oldMap {
		newHash, ok := newMap[path]
		if !ok {
			deleted[path] = oldHash
			continue
		}
		if newHash != oldHash {
			changed[path] = newHash
		}
	}

	for path, newHash := range newMap {
		if _, ok := oldMap[path]; !ok {
			added[path] = newHash
		}
	}

	return deleted, changed, added
}

// Unchanged reports the set of paths present in both manifests with an
// identical hash: the link stage's hardlink candidates.
func Unchanged(old, newm *Manifest) map[string]string {
	oldMap := old.ToMap()
	newMap := newm.ToMap()

	out := make(map[string]string)
	for path, hash := range newMap {
		if oldHash, ok := oldMap[path]; ok && oldHash == hash {
			out[path] = hash
		}
	}
	return out
}

// Validate checks that no relative path is empty and that no relative
// path repeats (spec.md §3 invariant: "every data/ file in a valid
// backup has exactly one row"). Hash values are not inspected.
func (m *Manifest) Validate() error {
	paths := funk.Map(m.Rows, func(row Row) string { return row.RelativePath }).([]string)

	if funk.ContainsString(paths, "") {
		return fmt.Errorf("manifest: empty relative path")
	}

	unique := funk.UniqString(paths)
	if len(unique) != len(paths) {
		return fmt.Errorf("manifest: duplicate relative path in manifest")
	}

	return nil
}
