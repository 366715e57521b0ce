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

package device

import (
	"fmt"

	"gvisor.dev/hartboot/pkg/sbierr"
)

// CPPCRegister identifies a CPPC register, numbered as in the SBI CPPC
// extension.
type CPPCRegister uint32

// CPPC registers.
const (
	CPPCHighestPerf CPPCRegister = iota
	CPPCNominalPerf
	CPPCLowestNonlinearPerf
	CPPCLowestPerf
	CPPCGuaranteedPerf
	CPPCDesiredPerf
	CPPCMinPerf
	CPPCMaxPerf
	CPPCPerfReductionTolerance
	CPPCTimeWindow
	CPPCCounterWraparoundTime
	CPPCReferencePerfCounter
	CPPCDeliveredPerfCounter
	CPPCPerfLimited
	CPPCEnable
	CPPCAutoSelEnable
	CPPCAutoActWindow
	CPPCEnergyPerfPreference
	CPPCReferencePerf
	CPPCLowestFreq
	CPPCNominalFreq

	CPPCTransitionLatency CPPCRegister = 0x80000000
)

// CPPCDevice provides collaborative processor performance control.
type CPPCDevice interface {
	Name() string

	// Read returns the value of reg.
	Read(reg CPPCRegister) (uint64, error)

	// Write sets reg.
	Write(reg CPPCRegister, val uint64) error

	// Probe returns the width of reg in bits, or 0 if it is not
	// implemented.
	Probe(reg CPPCRegister) int
}

// CPPC is the CPPC facade. Read and Write fail with sbierr.ErrFailed while
// no provider is registered.
type CPPC struct {
	slot Slot[CPPCDevice]
}

// SetDevice registers dev. Only the first registration takes effect.
func (c *CPPC) SetDevice(dev CPPCDevice) {
	c.slot.Set(dev)
}

// Device returns the registered provider.
func (c *CPPC) Device() (CPPCDevice, bool) {
	return c.slot.Get(nil)
}

// Read reads reg from the registered provider.
func (c *CPPC) Read(reg CPPCRegister) (uint64, error) {
	dev, ok := c.Device()
	if !ok {
		return 0, fmt.Errorf("no CPPC provider: %w", sbierr.ErrFailed)
	}
	return dev.Read(reg)
}

// Write writes reg on the registered provider.
func (c *CPPC) Write(reg CPPCRegister, val uint64) error {
	dev, ok := c.Device()
	if !ok {
		return fmt.Errorf("no CPPC provider: %w", sbierr.ErrFailed)
	}
	return dev.Write(reg, val)
}

// Probe returns the width of reg, or 0 with no provider.
func (c *CPPC) Probe(reg CPPCRegister) int {
	dev, ok := c.Device()
	if !ok {
		return 0
	}
	return dev.Probe(reg)
}

// cppcRegisterWidth is the width of every register ClockCPPC implements.
const cppcRegisterWidth = 64

// ClockCPPC is a CPPC provider that expresses desired performance as a
// clock rate divided by a fixed step. Only CPPCDesiredPerf is implemented.
type ClockCPPC struct {
	clocks      *Clocks
	clockName   string
	granularity uint64
}

// NewClockCPPC returns a provider driving clock name through clocks. It
// fails with sbierr.ENODEV if clocks has no controller (after probing) and
// with sbierr.ErrInvalidParam if the name is empty or step is zero.
func NewClockCPPC(clocks *Clocks, name string, step uint64) (*ClockCPPC, error) {
	if _, ok := clocks.Device(); !ok {
		return nil, sbierr.ENODEV
	}
	if name == "" || step == 0 {
		return nil, fmt.Errorf("clock %q step %d: %w", name, step, sbierr.ErrInvalidParam)
	}
	return &ClockCPPC{clocks: clocks, clockName: name, granularity: step}, nil
}

// Name implements CPPCDevice.Name.
func (*ClockCPPC) Name() string {
	return "clock-cppc"
}

// Read implements CPPCDevice.Read.
func (p *ClockCPPC) Read(reg CPPCRegister) (uint64, error) {
	if reg != CPPCDesiredPerf {
		return 0, sbierr.ErrNotSupported
	}
	rate, err := p.clocks.GetRate(p.clockName)
	if err != nil {
		return 0, err
	}
	return rate / p.granularity, nil
}

// Write implements CPPCDevice.Write.
func (p *ClockCPPC) Write(reg CPPCRegister, val uint64) error {
	if reg != CPPCDesiredPerf {
		return sbierr.ErrNotSupported
	}
	return p.clocks.SetRate(p.clockName, val*p.granularity)
}

// Probe implements CPPCDevice.Probe.
func (*ClockCPPC) Probe(reg CPPCRegister) int {
	if reg != CPPCDesiredPerf {
		return 0
	}
	return cppcRegisterWidth
}
