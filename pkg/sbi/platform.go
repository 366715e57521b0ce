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
	"gvisor.dev/hartboot/pkg/cpuid"
	"gvisor.dev/hartboot/pkg/hsm"
	"gvisor.dev/hartboot/pkg/scratch"
)

// Interrupt bits shared by mie and mip.
const (
	// MIPMSIP is the machine software interrupt (IPI) bit.
	MIPMSIP uint64 = 1 << 3

	// MIPMTIP is the machine timer interrupt bit.
	MIPMTIP uint64 = 1 << 7

	// MIPMEIP is the machine external interrupt bit.
	MIPMEIP uint64 = 1 << 11
)

// Hart is the hardware thread executing the firmware. Every method is called
// only from the hart's own thread of execution.
type Hart interface {
	hsm.Hart

	// ReadMIE returns the interrupt-enable register.
	ReadMIE() uint64

	// WriteMIE replaces the interrupt-enable register.
	WriteMIE(v uint64)

	// SetMIE sets bits in the interrupt-enable register.
	SetMIE(bits uint64)

	// ReadMIP returns the interrupt-pending register.
	ReadMIP() uint64

	// WaitForInterrupt stalls until an enabled interrupt is pending. It may
	// return early without one.
	WaitForInterrupt()

	// Hang masks interrupts and stops the hart forever. It does not
	// return.
	Hang()

	// SwitchMode leaves the firmware by jumping to next. It does not
	// return.
	SwitchMode(next scratch.NextStage)

	// RestoreSuspended resumes the context saved when the hart suspended.
	// It does not return.
	RestoreSuspended()
}

// Initializer is a per-hart init hook for one Step.
type Initializer interface {
	// Init initializes the subsystem on h. cold is true only on the
	// cold-boot hart.
	Init(h Hart, cold bool) error
}

// Exiter is implemented by Initializers that have a teardown hook.
type Exiter interface {
	Exit(h Hart) error
}

// HartStateMachine is the hart lifecycle collaborator. *hsm.Machine
// satisfies it.
type HartStateMachine interface {
	// Init runs the HSM step of a boot path.
	Init(h hsm.Hart, cold bool) error

	// State returns the lifecycle state of hart id.
	State(id uint32) (hsm.State, error)

	// ResumeStart marks h as resuming.
	ResumeStart(h hsm.Hart) error

	// ResumeFinish marks h as running after a resume.
	ResumeFinish(h hsm.Hart) error

	// PrepareNextJump marks h as started and returns its next stage.
	PrepareNextJump(h hsm.Hart) (scratch.NextStage, error)

	// Exit stops h during teardown.
	Exit(h hsm.Hart) error
}

// Platform describes the machine being booted.
type Platform interface {
	// Name is a human readable platform name.
	Name() string

	// HartCount is one more than the highest hart ID.
	HartCount() uint32

	// HartInvalid returns true for IDs that must not run the firmware.
	HartInvalid(id uint32) bool

	// ColdBootAllowed returns false for harts that may never be elected.
	ColdBootAllowed(id uint32) bool

	// SupportsPrivilege returns true if hart id implements mode p.
	SupportsPrivilege(id uint32, p cpuid.Privilege) bool

	// SendIPI raises the software interrupt of hart id.
	SendIPI(id uint32) error

	// HSM returns the hart state machine.
	HSM() HartStateMachine

	// ScratchLayout returns the allocator shared by all scratch areas.
	ScratchLayout() *scratch.Layout

	// HartScratch returns the scratch area of hart id, or nil.
	HartScratch(id uint32) *scratch.Area

	// Subsystem returns the hook for step, or nil if the platform has
	// nothing to do for it. It is never called for StepHSM or
	// StepInitCount.
	Subsystem(step Step) Initializer
}
