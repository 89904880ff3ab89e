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

// Package workflow implements the stage chain, three-phase driver and
// the context bag that threads state between stages.
package workflow

import "sync"

// Tag identifies the runtime type carried by a Bag entry.
type Tag int

// The context bag's value vocabulary, as named by spec.md §4.8.
const (
	TagInt Tag = iota
	TagUint
	TagString
	TagBool
	TagJSON
	TagDeque
	TagBitset
	TagDouble
)

// Well-known context bag keys seeded by operation drivers before running
// a workflow (spec.md §3, "Context bag").
const (
	KeyServer     = "server"
	KeyLabel      = "label"
	KeyBackupBase = "backup_base"
	KeyTargetRoot = "target_root"
	KeyTargetBase = "target_base"
	KeyFiles      = "files"
	KeyFailed     = "failed"
	KeyAll        = "all"
	KeyBackup     = "backup"
	KeyWorkers    = "workers"
)

type entry struct {
	key   string
	value interface{}
	tag   Tag
}

// Bag is an ordered, keyed container of typed values passed through a
// workflow. The zero value is not usable; build one with NewBag.
// Insertion order is preserved for List; a duplicate Add replaces the
// value in place without disturbing that order.
type Bag struct {
	mu         *sync.Mutex
	entries    []entry
	index      map[string]int
	threadSafe bool
}

// NewBag creates an empty context bag. When threadSafe is true every
// operation is guarded by a single mutex, matching the teacher's
// synchronized-map convention for state shared across worker
// goroutines.
func NewBag(threadSafe bool) *Bag {
	b := &Bag{
		entries:    nil,
		index:      make(map[string]int),
		threadSafe: threadSafe,
	}
	if threadSafe {
		b.mu = &sync.Mutex{}
	}
	return b
}

func (b *Bag) lock() {
	if b.mu != nil {
		b.mu.Lock()
	}
}

func (b *Bag) unlock() {
	if b.mu != nil {
		b.mu.Unlock()
	}
}

// Add inserts or replaces the value stored under key.
func (b *Bag) Add(key string, value interface{}, tag Tag) {
	b.lock()
	defer b.unlock()

	if i, ok := b.index[key]; ok {
		b.entries[i].value = value
		b.entries[i].tag = tag
		return
	}

	b.index[key] = len(b.entries)
	b.entries = append(b.entries, entry{key: key, value: value, tag: tag})
}

// Get returns the value stored under key, its tag, and whether key was
// present.
func (b *Bag) Get(key string) (interface{}, Tag, bool) {
	b.lock()
	defer b.unlock()

	i, ok := b.index[key]
	if !ok {
		return nil, 0, false
	}
	return b.entries[i].value, b.entries[i].tag, true
}

// List returns the bag's keys in insertion order.
func (b *Bag) List() []string {
	b.lock()
	defer b.unlock()

	keys := make([]string, len(b.entries))
	for i, e := range b.entries {
		keys[i] = e.key
	}
	return keys
}

// Destroy clears the bag's contents. A destroyed Bag behaves as if
// freshly created.
func (b *Bag) Destroy() {
	b.lock()
	defer b.unlock()

	b.entries = nil
	b.index = make(map[string]int)
}

// GetString is a convenience accessor for a TagString entry.
func (b *Bag) GetString(key string) (string, bool) {
	v, tag, ok := b.Get(key)
	if !ok || tag != TagString {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetBool is a convenience accessor for a TagBool entry.
func (b *Bag) GetBool(key string) (bool, bool) {
	v, tag, ok := b.Get(key)
	if !ok || tag != TagBool {
		return false, false
	}
	bv, ok := v.(bool)
	return bv, ok
}
