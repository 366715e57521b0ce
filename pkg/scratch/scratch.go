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

// Package scratch implements per-hart scratch memory.
//
// Every hart owns exactly one Area. The first HeaderSize bytes of an Area
// hold fixed fields (the next-stage descriptor); the remainder is carved up
// by a Layout, which hands out the same Offset in every hart's Area. An
// Offset of zero always falls inside the header and therefore doubles as the
// "not allocated" value.
package scratch

import (
	"fmt"
	"sort"

	"gvisor.dev/hartboot/pkg/atomicbitops"
	"gvisor.dev/hartboot/pkg/cpuid"
	"gvisor.dev/hartboot/pkg/sync"
)

const (
	// DefaultSize is the size of a scratch area in bytes.
	DefaultSize = 4096

	// HeaderSize is the number of bytes reserved for fixed fields at the
	// start of every area.
	HeaderSize = 64

	// wordSize is the allocation granule.
	wordSize = 8
)

// Offset is a byte offset into a scratch area.
type Offset uint64

// NextStage describes where a hart jumps when it leaves the firmware.
type NextStage struct {
	// Addr is the entry point of the next boot stage.
	Addr uint64 `json:"addr"`

	// Arg1 is passed in a1 (typically the device tree address).
	Arg1 uint64 `json:"arg1"`

	// Mode is the privilege mode the next stage runs in.
	Mode cpuid.Privilege `json:"mode"`
}

// Area is the scratch memory of one hart.
//
// Fields in the header are written only by the owning hart or before the
// hart is released. Allocated words are atomics so that another hart may
// read them (see Layout).
type Area struct {
	// HartID is the owner of this area.
	HartID uint32

	// Next is the next-stage descriptor.
	Next NextStage

	words []atomicbitops.Uint64
}

// Uint64 returns the 64-bit word at off, or nil if off is not an aligned
// offset inside the allocatable region.
func (a *Area) Uint64(off Offset) *atomicbitops.Uint64 {
	if off < HeaderSize || off%wordSize != 0 {
		return nil
	}
	i := (off - HeaderSize) / wordSize
	if i >= Offset(len(a.words)) {
		return nil
	}
	return &a.words[i]
}

type allocation struct {
	off   Offset
	size  uint64
	owner string
}

// Layout is the allocator for the region of scratch areas after the header.
// It is shared by all harts.
type Layout struct {
	mu sync.Mutex

	// size is the total area size, including the header.
	size uint64

	// allocs is sorted by offset.
	allocs []allocation

	// areas are all areas created through this layout.
	areas []*Area
}

// NewLayout returns a layout for areas of the given total size.
func NewLayout(size uint64) *Layout {
	if size < HeaderSize+wordSize {
		panic(fmt.Sprintf("scratch size %d leaves no room after the %d byte header", size, HeaderSize))
	}
	return &Layout{size: size}
}

// NewArea creates a zeroed area for hart id.
func (l *Layout) NewArea(id uint32) *Area {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := &Area{
		HartID: id,
		words:  make([]atomicbitops.Uint64, (l.size-HeaderSize)/wordSize),
	}
	l.areas = append(l.areas, a)
	return a
}

// Alloc reserves size bytes, rounded up to a multiple of 8, at the same
// offset in every area and zeroes them. It returns 0 if the region is
// exhausted or size is 0.
func (l *Layout) Alloc(size uint64, owner string) Offset {
	if size == 0 || size > l.size-HeaderSize {
		return 0
	}
	size = (size + wordSize - 1) &^ (wordSize - 1)

	l.mu.Lock()
	defer l.mu.Unlock()

	// First fit.
	start := uint64(HeaderSize)
	idx := len(l.allocs)
	for i, a := range l.allocs {
		if uint64(a.off)-start >= size {
			idx = i
			break
		}
		start = uint64(a.off) + a.size
	}
	// start never exceeds l.size, so the subtraction cannot wrap.
	if size > l.size-start {
		return 0
	}

	off := Offset(start)
	l.allocs = append(l.allocs, allocation{})
	copy(l.allocs[idx+1:], l.allocs[idx:])
	l.allocs[idx] = allocation{off: off, size: size, owner: owner}

	for _, a := range l.areas {
		for w := off; w < off+Offset(size); w += wordSize {
			a.Uint64(w).Store(0)
		}
	}
	return off
}

// Free releases an allocation made by Alloc. Freeing 0 or an unknown offset
// is a no-op.
func (l *Layout) Free(off Offset) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := sort.Search(len(l.allocs), func(i int) bool { return l.allocs[i].off >= off })
	if i < len(l.allocs) && l.allocs[i].off == off {
		l.allocs = append(l.allocs[:i], l.allocs[i+1:]...)
	}
}

// Owner returns the owner string passed to Alloc for off.
func (l *Layout) Owner(off Offset) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range l.allocs {
		if a.off == off {
			return a.owner, true
		}
	}
	return "", false
}

// Used returns the number of allocated bytes after the header.
func (l *Layout) Used() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n uint64
	for _, a := range l.allocs {
		n += a.size
	}
	return n
}
