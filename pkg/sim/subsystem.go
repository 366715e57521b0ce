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

package sim

import (
	"fmt"

	"gvisor.dev/hartboot/pkg/device"
	"gvisor.dev/hartboot/pkg/hsm"
	"gvisor.dev/hartboot/pkg/sbi"
	"gvisor.dev/hartboot/pkg/sbierr"
)

// errInjected wraps every injected failure.
var errInjected = fmt.Errorf("injected: %w", sbierr.ErrFailed)

func (m *Machine) fault(id uint32, step sbi.Step, exit bool) error {
	if m.faults[faultKey{hart: id, step: step, exit: exit}] {
		return fmt.Errorf("hart %d %v: %w", id, step, errInjected)
	}
	return nil
}

func (m *Machine) hart(h any) *Hart {
	sh, ok := h.(*Hart)
	if !ok {
		panic(fmt.Sprintf("foreign hart %T", h))
	}
	return sh
}

// subsystem is the platform hook of one step. It records every call in the
// calling hart's trace.
type subsystem struct {
	m    *Machine
	step sbi.Step
}

// Init implements sbi.Initializer.Init.
func (s *subsystem) Init(h sbi.Hart, cold bool) error {
	sh := s.m.hart(h)
	sh.trace = append(sh.trace, s.step)
	if err := s.m.fault(sh.spec.ID, s.step, false); err != nil {
		return err
	}
	if !cold {
		s.checkPublished(sh)
	}

	switch s.step {
	case sbi.StepDomainFinalize:
		s.m.published = platformState{
			domainsFinalized: true,
			rootDomain:       "root",
		}
	case sbi.StepIPI:
		// Clear any IPI left pending by the cold-boot release.
		sh.mip.Clear(sbi.MIPMSIP)
	case sbi.StepPlatformFinal:
		return s.m.platformFinal(sh, cold)
	}
	return nil
}

// checkPublished verifies that cold-boot state is visible to a warm hart.
// Reads of m.published are unsynchronized, so a missing happens-before edge
// is also reported by the race detector.
func (s *subsystem) checkPublished(h *Hart) {
	if s.step == sbi.StepHartReinit {
		return
	}
	if !s.m.published.domainsFinalized || s.m.published.rootDomain == "" {
		s.m.violation("hart %d ran %v before cold boot was published", h.spec.ID, s.step)
	}
}

// Exit implements sbi.Exiter.Exit.
func (s *subsystem) Exit(h sbi.Hart) error {
	sh := s.m.hart(h)
	switch s.step {
	case sbi.StepPlatformEarly, sbi.StepTimer, sbi.StepIPI, sbi.StepIRQChip, sbi.StepPlatformFinal:
	default:
		return nil
	}
	sh.exitTrace = append(sh.exitTrace, s.step)
	return s.m.fault(sh.spec.ID, s.step, true)
}

// platformFinal registers the clock and CPPC devices on cold boot and
// ungates the CPPC clock on every hart.
func (m *Machine) platformFinal(h *Hart, cold bool) error {
	c := m.desc.Clock
	if c == nil {
		return nil
	}
	if cold {
		if _, ok := m.clocks.Device(); !ok {
			return fmt.Errorf("clock %q: %w", c.Name, sbierr.ENODEV)
		}
		if c.CPPCClock != "" {
			p, err := device.NewClockCPPC(&m.clocks, c.CPPCClock, c.CPPCStep)
			if err != nil {
				return err
			}
			m.cppc.SetDevice(p)
		}
	}
	if c.CPPCClock == "" {
		return nil
	}
	return m.clocks.Enable(c.CPPCClock)
}

// hsmAdapter adds tracing and fault injection to the hart state machine.
type hsmAdapter struct {
	*hsm.Machine
	m *Machine
}

// Init implements sbi.HartStateMachine.Init.
func (a *hsmAdapter) Init(h hsm.Hart, cold bool) error {
	sh := a.m.hart(h)
	sh.trace = append(sh.trace, sbi.StepHSM)
	if err := a.m.fault(sh.spec.ID, sbi.StepHSM, false); err != nil {
		return err
	}
	if !cold {
		(&subsystem{m: a.m, step: sbi.StepHSM}).checkPublished(sh)
	}
	return a.Machine.Init(h, cold)
}

// State implements sbi.HartStateMachine.State.
func (a *hsmAdapter) State(id uint32) (hsm.State, error) {
	if h, ok := a.m.harts[id]; ok && h.spec.FailStateQuery {
		return 0, fmt.Errorf("hart %d state query: %w", id, errInjected)
	}
	return a.Machine.State(id)
}

// Exit implements sbi.HartStateMachine.Exit.
func (a *hsmAdapter) Exit(h hsm.Hart) error {
	sh := a.m.hart(h)
	sh.exitTrace = append(sh.exitTrace, sbi.StepHSM)
	if err := a.m.fault(sh.spec.ID, sbi.StepHSM, true); err != nil {
		return err
	}
	return a.Machine.Exit(h)
}
