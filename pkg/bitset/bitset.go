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

// Package bitset implements a fixed-capacity packed bit array used by
// incremental-backup stages to track which blocks of a large file have
// changed since the predecessor backup.
package bitset

import "fmt"

// Bitset is a packed, fixed-size bit array. The zero value is not
// usable; build one with New.
type Bitset struct {
	inputSize uint64
	data      []byte
}

// New allocates a Bitset able to address inputSize bits, backed by
// ceil(inputSize/8) zero-initialized bytes.
func New(inputSize uint64) *Bitset {
	return &Bitset{
		inputSize: inputSize,
		data:      make([]byte, (inputSize+7)/8),
	}
}

// Len reports the number of addressable bits.
func (b *Bitset) Len() uint64 {
	if b == nil {
		return 0
	}
	return b.inputSize
}

func (b *Bitset) checkIndex(index uint64) error {
	if b == nil {
		return fmt.Errorf("bitset: operation on a nil bitset")
	}
	if index >= b.inputSize {
		return fmt.Errorf("bitset: index %d out of range [0,%d)", index, b.inputSize)
	}
	return nil
}

// Set sets bit index to 1.
func (b *Bitset) Set(index uint64) error {
	if err := b.checkIndex(index); err != nil {
		return err
	}
	b.data[index/8] |= 1 << (index % 8)
	return nil
}

// Clear sets bit index to 0.
func (b *Bitset) Clear(index uint64) error {
	if err := b.checkIndex(index); err != nil {
		return err
	}
	b.data[index/8] &^= 1 << (index % 8)
	return nil
}

// Get reports whether bit index is set. Any error condition (nil
// bitset, out-of-range index) is reported as false, matching the
// false/error return shape of the underlying primitive ops.
func (b *Bitset) Get(index uint64) (bool, error) {
	if err := b.checkIndex(index); err != nil {
		return false, err
	}
	return b.data[index/8]&(1<<(index%8)) != 0, nil
}
