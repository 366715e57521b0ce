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
	"strconv"
	"time"

	"gvisor.dev/hartboot/pkg/cpuid"
	"gvisor.dev/hartboot/pkg/hartmask"
	"gvisor.dev/hartboot/pkg/hsm"
	"gvisor.dev/hartboot/pkg/sbi"
)

// Description describes a simulated platform and the conditions of one boot
// episode on it.
type Description struct {
	// Name is the platform name.
	Name string `toml:"name" yaml:"name" json:"name"`

	// HartCount is one more than the highest valid hart ID.
	HartCount uint32 `toml:"hart_count" yaml:"hart_count" json:"hart_count"`

	// ScratchSize is the size of each hart's scratch area. Zero means
	// scratch.DefaultSize.
	ScratchSize uint64 `toml:"scratch_size" yaml:"scratch_size" json:"scratch_size,omitempty"`

	// Harts lists the harts that enter the firmware. Harts with an ID of
	// HartCount or more still enter, and are treated as invalid.
	Harts []HartSpec `toml:"hart" yaml:"harts" json:"harts"`

	// Clock, if set, describes the clock controller registered during
	// platform final init.
	Clock *ClockSpec `toml:"clock" yaml:"clock" json:"clock,omitempty"`

	// Faults are injected initialization or teardown failures.
	Faults []Fault `toml:"fault" yaml:"faults" json:"faults,omitempty"`

	// PinCPUs pins each hart's thread to a host CPU.
	PinCPUs bool `toml:"pin_cpus" yaml:"pin_cpus" json:"pin_cpus,omitempty"`

	// ExitAfterBoot makes every hart that jumps to the next stage
	// immediately tear the firmware down again.
	ExitAfterBoot bool `toml:"exit_after_boot" yaml:"exit_after_boot" json:"exit_after_boot,omitempty"`
}

// HartSpec describes one hart.
type HartSpec struct {
	ID uint32 `toml:"id" yaml:"id" json:"id"`

	// ISA is the hart's ISA string, e.g. "rv64imafdcsu". Empty means
	// DefaultISA.
	ISA string `toml:"isa" yaml:"isa" json:"isa,omitempty"`

	// Invalid marks the hart as rejected by the platform.
	Invalid bool `toml:"invalid" yaml:"invalid" json:"invalid,omitempty"`

	// NoColdBoot excludes the hart from the cold-boot election.
	NoColdBoot bool `toml:"no_cold_boot" yaml:"no_cold_boot" json:"no_cold_boot,omitempty"`

	NextAddr uint64 `toml:"next_addr" yaml:"next_addr" json:"next_addr,omitempty"`
	NextArg1 uint64 `toml:"next_arg1" yaml:"next_arg1" json:"next_arg1,omitempty"`

	// NextMode is "M", "S", "U" or a raw numeric encoding. Empty means
	// "S".
	NextMode string `toml:"next_mode" yaml:"next_mode" json:"next_mode,omitempty"`

	// State is the HSM state the hart was left in by the previous episode.
	// Empty means "stopped".
	State string `toml:"state" yaml:"state" json:"state,omitempty"`

	// SpuriousWakes is the number of times WFI returns without an
	// interrupt while the hart is parked.
	SpuriousWakes int `toml:"spurious_wakes" yaml:"spurious_wakes" json:"spurious_wakes,omitempty"`

	// FailStateQuery makes HSM state queries for this hart fail.
	FailStateQuery bool `toml:"fail_state_query" yaml:"fail_state_query" json:"fail_state_query,omitempty"`
}

// ClockSpec describes a clock controller and the CPPC provider built on it.
type ClockSpec struct {
	Name string `toml:"name" yaml:"name" json:"name"`

	// Rates are the clocks and their initial rates in Hz.
	Rates map[string]uint64 `toml:"rates" yaml:"rates" json:"rates"`

	// CPPCClock names the clock that backs CPPC desired performance.
	// Empty disables CPPC.
	CPPCClock string `toml:"cppc_clock" yaml:"cppc_clock" json:"cppc_clock,omitempty"`

	// CPPCStep is the clock rate of one performance unit.
	CPPCStep uint64 `toml:"cppc_step" yaml:"cppc_step" json:"cppc_step,omitempty"`
}

// Fault fails one step on one hart.
type Fault struct {
	Hart uint32 `toml:"hart" yaml:"hart" json:"hart"`

	// Step is a step name as printed by sbi.Step.String.
	Step string `toml:"step" yaml:"step" json:"step"`

	// Exit selects the teardown hook instead of the init hook.
	Exit bool `toml:"exit" yaml:"exit" json:"exit,omitempty"`
}

// DefaultISA is the ISA of harts that do not specify one.
const DefaultISA = "rv64imafdcsu"

// DefaultTimeout bounds a boot episode when the caller has no deadline.
const DefaultTimeout = 10 * time.Second

// ParseMode parses a next-stage mode as accepted by HartSpec.NextMode.
func ParseMode(s string) (cpuid.Privilege, error) {
	if s == "" {
		return cpuid.PrivilegeSupervisor, nil
	}
	if p, err := cpuid.PrivilegeFromString(s); err == nil {
		return p, nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid next mode %q", s)
	}
	return cpuid.Privilege(v), nil
}

// Validate checks d for errors that would make it impossible to simulate.
// Conditions the firmware itself handles (invalid harts, unsupported
// modes) are not errors.
func (d *Description) Validate() error {
	if d.HartCount == 0 {
		return fmt.Errorf("hart_count must be positive")
	}
	if d.HartCount > hartmask.MaxHarts {
		return fmt.Errorf("hart_count %d exceeds %d", d.HartCount, hartmask.MaxHarts)
	}
	if len(d.Harts) == 0 {
		return fmt.Errorf("no harts")
	}
	seen := make(map[uint32]bool, len(d.Harts))
	for _, h := range d.Harts {
		if seen[h.ID] {
			return fmt.Errorf("duplicate hart %d", h.ID)
		}
		seen[h.ID] = true
		if h.ISA != "" {
			if _, err := cpuid.ParseISA(h.ISA); err != nil {
				return fmt.Errorf("hart %d: %w", h.ID, err)
			}
		}
		if _, err := ParseMode(h.NextMode); err != nil {
			return fmt.Errorf("hart %d: %w", h.ID, err)
		}
		if h.State != "" {
			if _, err := hsm.StateFromString(h.State); err != nil {
				return fmt.Errorf("hart %d: %w", h.ID, err)
			}
		}
		if h.SpuriousWakes < 0 {
			return fmt.Errorf("hart %d: negative spurious_wakes", h.ID)
		}
	}
	for _, f := range d.Faults {
		if _, err := sbi.StepFromString(f.Step); err != nil {
			return fmt.Errorf("fault on hart %d: %w", f.Hart, err)
		}
		if !seen[f.Hart] {
			return fmt.Errorf("fault on unknown hart %d", f.Hart)
		}
	}
	if c := d.Clock; c != nil && c.CPPCClock != "" {
		if _, ok := c.Rates[c.CPPCClock]; !ok {
			return fmt.Errorf("cppc_clock %q is not a clock", c.CPPCClock)
		}
		if c.CPPCStep == 0 {
			return fmt.Errorf("cppc_step must be positive")
		}
	}
	return nil
}

// Uniform returns a description of n identical harts that all start
// stopped and boot into S-mode.
func Uniform(name string, n uint32) Description {
	d := Description{Name: name, HartCount: n}
	for i := uint32(0); i < n; i++ {
		d.Harts = append(d.Harts, HartSpec{
			ID:       i,
			NextAddr: 0x80200000,
			NextArg1: 0x82200000,
		})
	}
	return d
}
