// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hartmask provides a fixed-size set of hart IDs.
//
// A Mask is a plain value with no internal synchronization and no heap
// allocation, so it can be placed in statically allocated firmware state.
// Callers that share a Mask between harts must serialize access themselves.
package hartmask

import (
	"fmt"
	"math/bits"
	"strings"
)

// MaxHarts is the number of hart IDs a Mask can hold. Valid IDs are
// [0, MaxHarts).
const MaxHarts = 128

const words = (MaxHarts + 63) / 64

// Mask is a set of hart IDs.
//
// The zero value is the empty set. Queries take a Mask by value, so they
// work on a copy returned from a function; Set and Clear need a pointer.
type Mask struct {
	bits [words]uint64
}

// Valid returns true if id can be stored in a Mask.
func Valid(id uint32) bool {
	return id < MaxHarts
}

// Set adds id to m. Out of range IDs are ignored.
func (m *Mask) Set(id uint32) {
	if !Valid(id) {
		return
	}
	m.bits[id/64] |= uint64(1) << (id % 64)
}

// Clear removes id from m. Out of range IDs are ignored.
func (m *Mask) Clear(id uint32) {
	if !Valid(id) {
		return
	}
	m.bits[id/64] &^= uint64(1) << (id % 64)
}

// Test returns true if id is in m.
func (m Mask) Test(id uint32) bool {
	if !Valid(id) {
		return false
	}
	return m.bits[id/64]&(uint64(1)<<(id%64)) != 0
}

// IsEmpty returns true if m holds no IDs.
func (m Mask) IsEmpty() bool {
	for _, w := range m.bits {
		if w != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of IDs in m.
func (m Mask) Count() int {
	n := 0
	for _, w := range m.bits {
		n += bits.OnesCount64(w)
	}
	return n
}

// ForEach calls fn for every ID in m in ascending order.
func (m Mask) ForEach(fn func(id uint32)) {
	for i, w := range m.bits {
		for w != 0 {
			// Extract the lowest set bit.
			j := w & -w
			fn(uint32(i*64 + bits.TrailingZeros64(j)))
			w ^= j
		}
	}
}

// ToSlice returns the IDs in m in ascending order.
func (m Mask) ToSlice() []uint32 {
	ids := make([]uint32, 0, m.Count())
	m.ForEach(func(id uint32) {
		ids = append(ids, id)
	})
	return ids
}

// String implements fmt.Stringer.
func (m Mask) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	m.ForEach(func(id uint32) {
		if !first {
			sb.WriteByte(',')
		}
		first = false
		fmt.Fprintf(&sb, "%d", id)
	})
	sb.WriteByte('}')
	return sb.String()
}
