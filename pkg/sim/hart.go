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
	"runtime"

	"gvisor.dev/hartboot/pkg/atomicbitops"
	"gvisor.dev/hartboot/pkg/cpuid"
	"gvisor.dev/hartboot/pkg/log"
	"gvisor.dev/hartboot/pkg/sbi"
	"gvisor.dev/hartboot/pkg/scratch"
)

// Outcome is how a hart left the firmware.
type Outcome uint32

// Outcomes.
const (
	// OutcomeNone means the hart has not left the firmware.
	OutcomeNone Outcome = iota

	// OutcomeRunning means the hart jumped to the next boot stage.
	OutcomeRunning

	// OutcomeResumed means the hart restored its suspended context.
	OutcomeResumed

	// OutcomeHalted means the hart hung.
	OutcomeHalted

	// OutcomePoweredOff means the machine was powered off while the hart
	// was waiting for an interrupt.
	OutcomePoweredOff
)

var outcomeNames = [...]string{
	OutcomeNone:       "none",
	OutcomeRunning:    "running",
	OutcomeResumed:    "resumed",
	OutcomeHalted:     "halted",
	OutcomePoweredOff: "powered-off",
}

// String implements fmt.Stringer.
func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", uint32(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(b []byte) error {
	for i, n := range outcomeNames {
		if n == string(b) {
			*o = Outcome(i)
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", b)
}

// Hart is a simulated hart. It implements sbi.Hart.
type Hart struct {
	m        *Machine
	spec     HartSpec
	features *cpuid.FeatureSet
	area     *scratch.Area

	mie atomicbitops.Uint64
	mip atomicbitops.Uint64

	// doorbell wakes the hart from WFI.
	doorbell chan struct{}

	// outcome is set once, just before the hart's goroutine exits.
	outcome atomicbitops.Uint32

	// ipis counts software interrupts raised on this hart.
	ipis atomicbitops.Uint32

	// The fields below are accessed only by the hart's own goroutine, or
	// after it has exited.
	spurious  int
	trace     []sbi.Step
	exitTrace []sbi.Step
	next      scratch.NextStage
	exitErr   error
}

// run releases the hart into the firmware and waits until it leaves. The
// hart executes on its own goroutine, locked to an OS thread that is
// discarded when the goroutine exits.
func (h *Hart) run() error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.LockOSThread()
		if h.m.desc.PinCPUs {
			if err := pinToCPU(int(h.spec.ID)); err != nil {
				log.Warningf("hart %d: pinning failed: %v", h.spec.ID, err)
			}
		}
		h.m.coord.Init(h)
	}()
	<-done
	if Outcome(h.outcome.Load()) == OutcomeNone {
		return fmt.Errorf("hart %d left the firmware without an outcome", h.spec.ID)
	}
	return nil
}

// raise sets bits in mip and rings the doorbell.
func (h *Hart) raise(bits uint64) {
	if bits&sbi.MIPMSIP != 0 {
		h.ipis.Add(1)
	}
	h.mip.Or(bits)
	select {
	case h.doorbell <- struct{}{}:
	default:
	}
}

// finish records the outcome and ends the hart's goroutine.
func (h *Hart) finish(o Outcome) {
	h.outcome.Store(uint32(o))
	runtime.Goexit()
}

// ID implements sbi.Hart.ID.
func (h *Hart) ID() uint32 {
	return h.spec.ID
}

// Scratch implements sbi.Hart.Scratch.
func (h *Hart) Scratch() *scratch.Area {
	return h.area
}

// ReadMIE implements sbi.Hart.ReadMIE.
func (h *Hart) ReadMIE() uint64 {
	return h.mie.Load()
}

// WriteMIE implements sbi.Hart.WriteMIE.
func (h *Hart) WriteMIE(v uint64) {
	h.mie.Store(v)
}

// SetMIE implements sbi.Hart.SetMIE.
func (h *Hart) SetMIE(bits uint64) {
	h.mie.Or(bits)
}

// ReadMIP implements sbi.Hart.ReadMIP.
func (h *Hart) ReadMIP() uint64 {
	return h.mip.Load()
}

// WaitForInterrupt implements sbi.Hart.WaitForInterrupt.
func (h *Hart) WaitForInterrupt() {
	if h.mip.Load()&h.mie.Load() != 0 {
		runtime.Gosched()
		return
	}
	if h.spurious > 0 {
		h.spurious--
		return
	}
	select {
	case <-h.doorbell:
	case <-h.m.powerOff:
		h.finish(OutcomePoweredOff)
	}
}

// Hang implements sbi.Hart.Hang.
func (h *Hart) Hang() {
	h.mie.Store(0)
	h.finish(OutcomeHalted)
}

// SwitchMode implements sbi.Hart.SwitchMode. With ExitAfterBoot the next
// stage immediately asks the firmware to exit.
func (h *Hart) SwitchMode(next scratch.NextStage) {
	h.next = next
	if h.m.desc.ExitAfterBoot {
		h.exitErr = h.m.coord.Exit(h)
	}
	h.finish(OutcomeRunning)
}

// RestoreSuspended implements sbi.Hart.RestoreSuspended.
func (h *Hart) RestoreSuspended() {
	h.finish(OutcomeResumed)
}
