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

package sbi

import (
	"fmt"

	"gvisor.dev/hartboot/pkg/hartmask"
	"gvisor.dev/hartboot/pkg/hsm"
	"gvisor.dev/hartboot/pkg/log"
	"gvisor.dev/hartboot/pkg/scratch"
)

// BootState is the externally visible state of a hart in the boot state
// machine.
type BootState uint32

// Boot states. StateRunning and StateHalted are terminal.
const (
	StateEntry BootState = iota
	StateColdLeader
	StateWarmParked
	StateWarmStartup
	StateWarmResume
	StateRunning
	StateHalted
)

var bootStateNames = [...]string{
	StateEntry:       "entry",
	StateColdLeader:  "cold-leader",
	StateWarmParked:  "warm-parked",
	StateWarmStartup: "warm-startup",
	StateWarmResume:  "warm-resume",
	StateRunning:     "running",
	StateHalted:      "halted",
}

// String implements fmt.Stringer.
func (s BootState) String() string {
	if int(s) < len(bootStateNames) {
		return bootStateNames[s]
	}
	return fmt.Sprintf("BootState(%d)", uint32(s))
}

// Path is the initialization path a hart took.
type Path uint32

// Paths.
const (
	PathNone Path = iota
	PathColdBoot
	PathWarmStartup
	PathWarmResume
)

var pathNames = [...]string{
	PathNone:        "none",
	PathColdBoot:    "cold-boot",
	PathWarmStartup: "warm-startup",
	PathWarmResume:  "warm-resume",
}

// String implements fmt.Stringer.
func (p Path) String() string {
	if int(p) < len(pathNames) {
		return pathNames[p]
	}
	return fmt.Sprintf("Path(%d)", uint32(p))
}

// bootContext is the per-hart context threaded through the state machine.
type bootContext struct {
	c   *Coordinator
	h   Hart
	id  uint32
	log log.Logger
}

// A bootState is a reified state in the boot state machine.
//
// Data-free states are represented as typecast nils to avoid allocation.
type bootState interface {
	// execute runs the code associated with this state on the given hart
	// and returns the following state. Terminal states call an operation
	// that does not return; execute returning nil means that operation
	// returned anyway.
	execute(*bootContext) bootState

	// state is the BootState recorded while this state executes.
	state() BootState
}

// Init runs the firmware boot sequence on h. It never returns.
func (c *Coordinator) Init(h Hart) {
	bc := &bootContext{
		c:   c,
		h:   h,
		id:  h.ID(),
		log: log.ForHart(h.ID()),
	}
	var s bootState = (*bootEntry)(nil)
	for s != nil {
		c.record(bc.id, s.state())
		s = s.execute(bc)
	}
	panic(fmt.Sprintf("hart %d: left the boot state machine", bc.id))
}

// runSteps runs steps in order and stops at the first failure.
func (bc *bootContext) runSteps(steps []Step, cold bool) error {
	for _, step := range steps {
		if err := bc.runStep(step, cold); err != nil {
			return fmt.Errorf("%v init failed: %w", step, err)
		}
	}
	return nil
}

func (bc *bootContext) runStep(step Step, cold bool) error {
	switch step {
	case StepInitCount:
		return bc.c.allocInitCount()
	case StepHSM:
		return bc.c.plat.HSM().Init(bc.h, cold)
	}
	init := bc.c.plat.Subsystem(step)
	if init == nil {
		return nil
	}
	return init.Init(bc.h, cold)
}

type bootEntry struct{}

func (*bootEntry) state() BootState { return StateEntry }

func (*bootEntry) execute(bc *bootContext) bootState {
	c := bc.c
	if !hartmask.Valid(bc.id) || bc.id >= c.plat.HartCount() || c.plat.HartInvalid(bc.id) {
		return &bootHalted{err: fmt.Errorf("hart %d: %w", bc.id, ErrInvalidHart)}
	}
	a := bc.h.Scratch()
	if a == nil {
		return &bootHalted{err: fmt.Errorf("hart %d has no scratch: %w", bc.id, ErrInvalidHart)}
	}
	next := a.Next.Mode
	if !next.Valid() {
		return &bootHalted{err: fmt.Errorf("mode %v: %w", next, ErrInvalidNextMode)}
	}
	if c.TryBecomeLeader(bc.h, next) {
		return (*bootColdLeader)(nil)
	}
	if !c.anyEligible {
		return &bootHalted{err: ErrNoColdBootHart}
	}
	return (*bootWarmParked)(nil)
}

type bootColdLeader struct{}

func (*bootColdLeader) state() BootState { return StateColdLeader }

func (*bootColdLeader) execute(bc *bootContext) bootState {
	bc.c.setPath(bc.id, PathColdBoot)
	bc.log.Infof("cold boot on %s", bc.c.plat.Name())
	if err := bc.runSteps(coldBootSteps, true); err != nil {
		return &bootHalted{err: err}
	}
	bc.c.ReleaseAllWaiters(bc.h)
	bc.c.IncrementInitCount(bc.h)
	next, err := bc.c.plat.HSM().PrepareNextJump(bc.h)
	if err != nil {
		return &bootHalted{err: err}
	}
	return &bootRunning{next: next}
}

type bootWarmParked struct{}

func (*bootWarmParked) state() BootState { return StateWarmParked }

func (*bootWarmParked) execute(bc *bootContext) bootState {
	bc.log.Debugf("parked")
	bc.c.ParkUntilColdbootDone(bc.h)
	s, err := bc.c.plat.HSM().State(bc.id)
	if err != nil {
		return &bootHalted{err: fmt.Errorf("hsm state: %w", err)}
	}
	if s == hsm.Suspended {
		return (*bootWarmResume)(nil)
	}
	return (*bootWarmStartup)(nil)
}

type bootWarmStartup struct{}

func (*bootWarmStartup) state() BootState { return StateWarmStartup }

func (*bootWarmStartup) execute(bc *bootContext) bootState {
	bc.c.setPath(bc.id, PathWarmStartup)
	if bc.c.initCountOffset.Load() == 0 {
		return &bootHalted{err: ErrInitCountUnallocated}
	}
	if err := bc.runSteps(warmStartupSteps, false); err != nil {
		return &bootHalted{err: err}
	}
	bc.c.IncrementInitCount(bc.h)
	next, err := bc.c.plat.HSM().PrepareNextJump(bc.h)
	if err != nil {
		return &bootHalted{err: err}
	}
	return &bootRunning{next: next}
}

type bootWarmResume struct{}

func (*bootWarmResume) state() BootState { return StateWarmResume }

func (*bootWarmResume) execute(bc *bootContext) bootState {
	bc.c.setPath(bc.id, PathWarmResume)
	m := bc.c.plat.HSM()
	if err := m.ResumeStart(bc.h); err != nil {
		return &bootHalted{err: fmt.Errorf("resume start: %w", err)}
	}
	if err := bc.runSteps(warmResumeSteps, false); err != nil {
		return &bootHalted{err: err}
	}
	if err := m.ResumeFinish(bc.h); err != nil {
		return &bootHalted{err: fmt.Errorf("resume finish: %w", err)}
	}
	return &bootRunning{resume: true}
}

type bootRunning struct {
	// next is the jump target. It is unused when resuming.
	next scratch.NextStage

	// resume is true if the hart returns to its suspended context.
	resume bool
}

func (*bootRunning) state() BootState { return StateRunning }

func (r *bootRunning) execute(bc *bootContext) bootState {
	if r.resume {
		bc.log.Infof("resuming suspended context")
		bc.h.RestoreSuspended()
		return nil
	}
	bc.log.Infof("jumping to %#x in %v-mode", r.next.Addr, r.next.Mode)
	bc.h.SwitchMode(r.next)
	return nil
}

type bootHalted struct {
	err error
}

func (*bootHalted) state() BootState { return StateHalted }

func (s *bootHalted) execute(bc *bootContext) bootState {
	bc.c.hang(bc.h, s.err)
	return nil
}
