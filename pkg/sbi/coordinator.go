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

// Package sbi implements the boot coordinator of a RISC-V supervisor binary
// interface firmware.
//
// Every hart enters Coordinator.Init at the same time. Exactly one hart that
// can run the next boot stage wins the cold-boot lottery and performs the
// one-time platform bring-up; every other hart parks until the bring-up is
// published, then runs its own per-hart initialization. No hart returns from
// Init: each either jumps to the next boot stage, resumes a suspended
// context, or hangs.
//
// Lock ordering:
//
//	Coordinator.waitMu
//	  Platform.SendIPI
//
// The only state shared between harts is owned by a Coordinator:
//
//   - lottery flips from 0 to 1 exactly once, by the elected hart.
//   - waiters is protected by waitMu.
//   - coldbootDone is written once by the elected hart with release
//     semantics after the whole cold-boot sequence, and read with acquire
//     semantics by parked harts. Everything the cold-boot sequence wrote is
//     visible to a hart that observed it set.
//   - initCountOffset is written by the elected hart before coldbootDone.
package sbi

import (
	"errors"
	"fmt"
	"time"

	"gvisor.dev/hartboot/pkg/atomicbitops"
	"gvisor.dev/hartboot/pkg/cpuid"
	"gvisor.dev/hartboot/pkg/hartmask"
	"gvisor.dev/hartboot/pkg/log"
	"gvisor.dev/hartboot/pkg/sbierr"
	"gvisor.dev/hartboot/pkg/scratch"
	"gvisor.dev/hartboot/pkg/sync"
)

// initCountOwner names the scratch allocation holding per-hart init counts.
const initCountOwner = "INIT_COUNT"

// Errors recorded as halt reasons.
var (
	// ErrInvalidHart is the halt reason of a hart whose ID is out of range
	// or rejected by the platform.
	ErrInvalidHart = errors.New("invalid hart")

	// ErrInvalidNextMode is the halt reason of a hart whose next stage
	// privilege is not M, S or U.
	ErrInvalidNextMode = errors.New("invalid next privilege mode")

	// ErrNoColdBootHart is the halt reason when no hart on the platform can
	// be elected.
	ErrNoColdBootHart = errors.New("no hart can perform cold boot")

	// ErrInitCountUnallocated is the halt reason of a hart that needs the
	// init counter before the cold-boot hart allocated it.
	ErrInitCountUnallocated = errors.New("init counter not allocated")
)

// Coordinator is the shared state of one boot episode.
//
// A Coordinator is created once per episode and never reset. It must not be
// copied.
type Coordinator struct {
	_ sync.NoCopy

	plat Platform

	// anyEligible is true if some valid hart can win the lottery. It is
	// immutable after New.
	anyEligible bool

	// lottery is set by the hart that wins the election.
	lottery atomicbitops.Uint32

	// coldbootDone is set once cold boot has finished.
	coldbootDone atomicbitops.Bool

	// waitMu protects waiters.
	waitMu sync.SpinMutex

	// waiters is the set of harts parked in ParkUntilColdbootDone.
	waiters hartmask.Mask

	// initCountOffset is the scratch offset of the init counter, or zero.
	initCountOffset atomicbitops.Uint64

	// releases counts ReleaseAllWaiters calls.
	releases atomicbitops.Uint32

	// states and paths are per-hart observations. They are written only by
	// the owning hart.
	states [hartmask.MaxHarts]atomicbitops.Uint32
	paths  [hartmask.MaxHarts]atomicbitops.Uint32

	// haltMu protects haltReasons.
	haltMu      sync.Mutex
	haltReasons map[uint32]error

	// spurious logs wakeups that were not caused by an IPI.
	spurious log.Logger
}

// New returns a Coordinator for p. The scratch area of every valid hart must
// already hold its next-stage descriptor.
func New(p Platform) *Coordinator {
	c := &Coordinator{
		plat:        p,
		haltReasons: make(map[uint32]error),
		spurious:    log.BasicRateLimitedLogger(time.Second),
	}
	for id := uint32(0); id < p.HartCount() && hartmask.Valid(id); id++ {
		if p.HartInvalid(id) {
			continue
		}
		a := p.HartScratch(id)
		if a == nil || !a.Next.Mode.Valid() {
			continue
		}
		if p.ColdBootAllowed(id) && p.SupportsPrivilege(id, a.Next.Mode) {
			c.anyEligible = true
			break
		}
	}
	return c
}

// Platform returns the platform the coordinator boots.
func (c *Coordinator) Platform() Platform {
	return c.plat
}

// TryBecomeLeader attempts to elect h as the cold-boot hart. A hart that
// cannot run next, or that the platform does not allow to cold boot, never
// wins. Among the others, exactly one caller per Coordinator gets true.
func (c *Coordinator) TryBecomeLeader(h Hart, next cpuid.Privilege) bool {
	id := h.ID()
	if !c.plat.SupportsPrivilege(id, next) || !c.plat.ColdBootAllowed(id) {
		return false
	}
	return c.lottery.Swap(1) == 0
}

// ParkUntilColdbootDone blocks h until cold boot has been published. Only
// the IPI enable bit is set while parked; the saved interrupt enables are
// restored on return. The pending IPI is left for the IPI subsystem to
// clear.
func (c *Coordinator) ParkUntilColdbootDone(h Hart) {
	id := h.ID()
	savedMIE := h.ReadMIE()
	h.SetMIE(MIPMSIP)

	c.waitMu.Lock()
	c.waiters.Set(id)
	c.waitMu.Unlock()

	for !c.coldbootDone.Load() {
		for {
			h.WaitForInterrupt()
			if h.ReadMIP()&MIPMSIP != 0 {
				break
			}
			c.spurious.Debugf("hart %d: spurious wakeup while parked", id)
		}
	}

	c.waitMu.Lock()
	c.waiters.Clear(id)
	c.waitMu.Unlock()

	h.WriteMIE(savedMIE)
}

// ReleaseAllWaiters publishes cold boot and sends an IPI to every parked
// hart other than h. IPI delivery failures are logged; the parked hart
// still observes the published flag on its next wakeup.
func (c *Coordinator) ReleaseAllWaiters(h Hart) {
	c.releases.Add(1)
	c.coldbootDone.Store(true)

	self := h.ID()
	c.waitMu.Lock()
	defer c.waitMu.Unlock()
	c.waiters.ForEach(func(id uint32) {
		if id == self {
			return
		}
		if err := c.plat.SendIPI(id); err != nil {
			log.Warningf("hart %d: IPI to hart %d failed: %v", self, id, err)
		}
	})
}

// ColdbootDone returns true once cold boot has been published.
func (c *Coordinator) ColdbootDone() bool {
	return c.coldbootDone.Load()
}

// Releases returns the number of times ReleaseAllWaiters was called.
func (c *Coordinator) Releases() uint32 {
	return c.releases.Load()
}

// Waiters returns the harts currently parked.
func (c *Coordinator) Waiters() hartmask.Mask {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()
	return c.waiters
}

// allocInitCount reserves the init counter in every scratch area.
func (c *Coordinator) allocInitCount() error {
	off := c.plat.ScratchLayout().Alloc(8, initCountOwner)
	if off == 0 {
		return fmt.Errorf("scratch %s: %w", initCountOwner, sbierr.ENOMEM)
	}
	c.initCountOffset.Store(uint64(off))
	return nil
}

func (c *Coordinator) initCountWord(id uint32) *atomicbitops.Uint64 {
	off := scratch.Offset(c.initCountOffset.Load())
	if off == 0 {
		return nil
	}
	a := c.plat.HartScratch(id)
	if a == nil {
		return nil
	}
	return a.Uint64(off)
}

// IncrementInitCount bumps the init counter of h. It hangs h if the counter
// has not been allocated.
func (c *Coordinator) IncrementInitCount(h Hart) {
	w := c.initCountWord(h.ID())
	if w == nil {
		c.hang(h, ErrInitCountUnallocated)
	}
	w.Add(1)
}

// InitCount returns how many times hart id completed an initialization
// path. It is 0 if the counter is not allocated or id has no scratch area.
func (c *Coordinator) InitCount(id uint32) uint64 {
	w := c.initCountWord(id)
	if w == nil {
		return 0
	}
	return w.Load()
}

// State returns the last boot state recorded for hart id.
func (c *Coordinator) State(id uint32) BootState {
	if !hartmask.Valid(id) {
		return StateEntry
	}
	return BootState(c.states[id].Load())
}

// Path returns the initialization path hart id took.
func (c *Coordinator) Path(id uint32) Path {
	if !hartmask.Valid(id) {
		return PathNone
	}
	return Path(c.paths[id].Load())
}

// HaltReason returns why hart id halted, or nil.
func (c *Coordinator) HaltReason(id uint32) error {
	c.haltMu.Lock()
	defer c.haltMu.Unlock()
	return c.haltReasons[id]
}

func (c *Coordinator) record(id uint32, s BootState) {
	if hartmask.Valid(id) {
		c.states[id].Store(uint32(s))
	}
}

func (c *Coordinator) setPath(id uint32, p Path) {
	if hartmask.Valid(id) {
		c.paths[id].Store(uint32(p))
	}
}

// hang records err as the halt reason of h and stops it.
func (c *Coordinator) hang(h Hart, err error) {
	id := h.ID()
	c.haltMu.Lock()
	c.haltReasons[id] = err
	c.haltMu.Unlock()
	c.record(id, StateHalted)
	log.Warningf("hart %d: halted: %v", id, err)
	h.Hang()
	panic(fmt.Sprintf("hart %d: Hang returned", id))
}
