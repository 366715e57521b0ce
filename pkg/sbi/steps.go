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

import "fmt"

// Step is one initialization or teardown step of a boot path.
type Step int

// Steps, in cold-boot order.
const (
	StepScratch Step = iota
	StepDomain
	StepInitCount
	StepHSM
	StepPlatformEarly
	StepHart
	StepIRQChip
	StepIPI
	StepTLB
	StepTimer
	StepECall
	StepDomainFinalize
	StepPMP
	StepPlatformFinal
	StepHartReinit

	numSteps
)

var stepNames = [...]string{
	StepScratch:        "scratch",
	StepDomain:         "domain",
	StepInitCount:      "init-count",
	StepHSM:            "hsm",
	StepPlatformEarly:  "platform-early",
	StepHart:           "hart",
	StepIRQChip:        "irqchip",
	StepIPI:            "ipi",
	StepTLB:            "tlb",
	StepTimer:          "timer",
	StepECall:          "ecall",
	StepDomainFinalize: "domain-finalize",
	StepPMP:            "pmp",
	StepPlatformFinal:  "platform-final",
	StepHartReinit:     "hart-reinit",
}

// String implements fmt.Stringer.
func (s Step) String() string {
	if s >= 0 && s < numSteps {
		return stepNames[s]
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// StepFromString parses the names returned by Step.String.
func StepFromString(name string) (Step, error) {
	var s Step
	err := s.UnmarshalText([]byte(name))
	return s, err
}

var (
	// Scratch and domain setup must come first. Domains are finalized
	// after HSM init and before PMP. Platform final init is last.
	coldBootSteps = []Step{
		StepScratch,
		StepDomain,
		StepInitCount,
		StepHSM,
		StepPlatformEarly,
		StepHart,
		StepIRQChip,
		StepIPI,
		StepTLB,
		StepTimer,
		StepECall,
		StepDomainFinalize,
		StepPMP,
		StepPlatformFinal,
	}

	warmStartupSteps = []Step{
		StepHSM,
		StepPlatformEarly,
		StepHart,
		StepIRQChip,
		StepIPI,
		StepTLB,
		StepTimer,
		StepPMP,
		StepPlatformFinal,
	}

	warmResumeSteps = []Step{
		StepHartReinit,
		StepPMP,
	}

	exitSteps = []Step{
		StepPlatformEarly,
		StepTimer,
		StepIPI,
		StepIRQChip,
		StepPlatformFinal,
		StepHSM,
	}
)

// ColdBootSteps returns the steps run by the cold-boot hart, in order.
func ColdBootSteps() []Step { return append([]Step(nil), coldBootSteps...) }

// WarmStartupSteps returns the steps run by a hart starting fresh.
func WarmStartupSteps() []Step { return append([]Step(nil), warmStartupSteps...) }

// WarmResumeSteps returns the steps run by a hart resuming from suspend,
// between the HSM resume start and finish.
func WarmResumeSteps() []Step { return append([]Step(nil), warmResumeSteps...) }

// ExitSteps returns the teardown hooks, in order.
func ExitSteps() []Step { return append([]Step(nil), exitSteps...) }
