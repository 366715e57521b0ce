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

// Package sim simulates a multi-hart RISC-V machine on which the boot
// coordinator runs.
//
// Each hart is a goroutine locked to its own OS thread. Interrupt-enable and
// interrupt-pending registers are atomic words; WFI blocks on a per-hart
// doorbell. Operations that never return on hardware (jumping to the next
// stage, resuming, hanging) record the outcome and end the goroutine with
// runtime.Goexit.
package sim

import (
	"context"
	"fmt"
	"sort"

	"github.com/mohae/deepcopy"
	"golang.org/x/sync/errgroup"
	"gvisor.dev/hartboot/pkg/cpuid"
	"gvisor.dev/hartboot/pkg/device"
	"gvisor.dev/hartboot/pkg/hsm"
	"gvisor.dev/hartboot/pkg/log"
	"gvisor.dev/hartboot/pkg/sbi"
	"gvisor.dev/hartboot/pkg/sbierr"
	"gvisor.dev/hartboot/pkg/scratch"
	"gvisor.dev/hartboot/pkg/sync"
)

// platformState is the global state published by cold boot. It is
// deliberately unsynchronized: harts may only read it after observing
// cold-boot completion.
type platformState struct {
	domainsFinalized bool
	rootDomain       string
}

type faultKey struct {
	hart uint32
	step sbi.Step
	exit bool
}

// Machine is a simulated platform. It implements sbi.Platform.
type Machine struct {
	desc Description

	layout *scratch.Layout

	// harts is indexed by hart ID; order lists them as described.
	harts map[uint32]*Hart
	order []*Hart

	hsm        *hsmAdapter
	subsystems map[sbi.Step]*subsystem
	faults     map[faultKey]bool

	coord *sbi.Coordinator

	// published is written by the cold-boot hart before cold boot is
	// published.
	published platformState

	clocks device.Clocks
	cppc   device.CPPC

	// violMu protects violations.
	violMu     sync.Mutex
	violations []string

	powerOnce sync.Once
	powerOff  chan struct{}
	booted    bool
}

// NewMachine builds a machine from a copy of d.
func NewMachine(d Description) (*Machine, error) {
	d = deepcopy.Copy(d).(Description)
	if err := d.Validate(); err != nil {
		return nil, err
	}
	size := d.ScratchSize
	if size == 0 {
		size = scratch.DefaultSize
	}
	m := &Machine{
		desc:       d,
		layout:     scratch.NewLayout(size),
		harts:      make(map[uint32]*Hart, len(d.Harts)),
		subsystems: make(map[sbi.Step]*subsystem),
		faults:     make(map[faultKey]bool),
		powerOff:   make(chan struct{}),
	}
	m.hsm = &hsmAdapter{Machine: hsm.New(d.HartCount), m: m}

	for _, spec := range d.Harts {
		h, err := m.newHart(spec)
		if err != nil {
			return nil, err
		}
		m.harts[spec.ID] = h
		m.order = append(m.order, h)
	}

	for s := sbi.StepScratch; s <= sbi.StepHartReinit; s++ {
		if s == sbi.StepHSM || s == sbi.StepInitCount {
			continue
		}
		m.subsystems[s] = &subsystem{m: m, step: s}
	}
	for _, f := range d.Faults {
		step, _ := sbi.StepFromString(f.Step)
		m.faults[faultKey{hart: f.Hart, step: step, exit: f.Exit}] = true
	}

	if c := d.Clock; c != nil {
		m.clocks.Probe = func() {
			m.clocks.SetDevice(device.NewMemClock(c.Name, c.Rates))
		}
	}
	return m, nil
}

func (m *Machine) newHart(spec HartSpec) (*Hart, error) {
	isa := spec.ISA
	if isa == "" {
		isa = DefaultISA
	}
	fs, err := cpuid.ParseISA(isa)
	if err != nil {
		return nil, err
	}
	mode, err := ParseMode(spec.NextMode)
	if err != nil {
		return nil, err
	}
	h := &Hart{
		m:        m,
		spec:     spec,
		features: fs,
		area:     m.layout.NewArea(spec.ID),
		doorbell: make(chan struct{}, 1),
		spurious: spec.SpuriousWakes,
	}
	h.area.Next = scratch.NextStage{
		Addr: spec.NextAddr,
		Arg1: spec.NextArg1,
		Mode: mode,
	}
	if spec.ID < m.desc.HartCount && spec.State != "" {
		s, err := hsm.StateFromString(spec.State)
		if err != nil {
			return nil, err
		}
		if err := m.hsm.Set(spec.ID, s); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Coordinator returns the coordinator of the current or last boot, or nil
// before Boot.
func (m *Machine) Coordinator() *sbi.Coordinator {
	return m.coord
}

// Hart returns hart id, or nil if it was not described.
func (m *Machine) Hart(id uint32) *Hart {
	return m.harts[id]
}

// Clocks returns the machine's clock facade.
func (m *Machine) Clocks() *device.Clocks {
	return &m.clocks
}

// CPPC returns the machine's CPPC facade.
func (m *Machine) CPPC() *device.CPPC {
	return &m.cppc
}

// PowerOff stops every hart still waiting for an interrupt.
func (m *Machine) PowerOff() {
	m.powerOnce.Do(func() { close(m.powerOff) })
}

// Boot releases every hart into the firmware and waits until each one has
// left it or ctx is done, in which case the machine is powered off and the
// remaining harts are reported as hung. A machine boots only once.
func (m *Machine) Boot(ctx context.Context) (*Result, error) {
	if m.booted {
		return nil, fmt.Errorf("machine %q already booted", m.desc.Name)
	}
	m.booted = true
	m.coord = sbi.New(m)

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range m.order {
		g.Go(h.run)
	}
	waitErr := make(chan error, 1)
	go func() { waitErr <- g.Wait() }()

	var err error
	select {
	case err = <-waitErr:
	case <-gctx.Done():
		m.PowerOff()
		err = <-waitErr
	}
	if err != nil {
		return nil, err
	}
	return m.result(ctx.Err() != nil), nil
}

func (m *Machine) result(deadline bool) *Result {
	r := &Result{
		Platform: m.desc.Name,
		Leader:   -1,
		Releases: m.coord.Releases(),
	}
	for _, h := range m.order {
		hr := HartResult{
			ID:        h.spec.ID,
			State:     m.coord.State(h.spec.ID),
			Path:      m.coord.Path(h.spec.ID),
			Outcome:   Outcome(h.outcome.Load()),
			InitCount: m.coord.InitCount(h.spec.ID),
			IPIs:      h.ipis.Load(),
			Trace:     h.trace,
			ExitTrace: h.exitTrace,
		}
		if err := m.coord.HaltReason(h.spec.ID); err != nil {
			hr.HaltReason = err.Error()
		}
		if hr.Outcome == OutcomeRunning {
			next := h.next
			hr.Next = &next
		}
		if h.exitErr != nil {
			hr.ExitError = h.exitErr.Error()
		}
		if s, err := m.hsm.Machine.State(h.spec.ID); err == nil {
			hr.HSMState = s.String()
		}
		if hr.Path == sbi.PathColdBoot {
			r.Leader = int(h.spec.ID)
		}
		if hr.Outcome == OutcomePoweredOff {
			r.Hung = append(r.Hung, h.spec.ID)
		}
		r.Harts = append(r.Harts, hr)
	}
	sort.Slice(r.Harts, func(i, j int) bool { return r.Harts[i].ID < r.Harts[j].ID })
	r.TimedOut = deadline && len(r.Hung) > 0

	if perf, err := m.cppc.Read(device.CPPCDesiredPerf); err == nil {
		r.DesiredPerf = perf
	}

	m.violMu.Lock()
	r.Violations = append([]string(nil), m.violations...)
	m.violMu.Unlock()
	return r
}

func (m *Machine) violation(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	log.Warningf("ordering violation: %s", msg)
	m.violMu.Lock()
	m.violations = append(m.violations, msg)
	m.violMu.Unlock()
}

// Name implements sbi.Platform.Name.
func (m *Machine) Name() string {
	return m.desc.Name
}

// HartCount implements sbi.Platform.HartCount.
func (m *Machine) HartCount() uint32 {
	return m.desc.HartCount
}

// HartInvalid implements sbi.Platform.HartInvalid.
func (m *Machine) HartInvalid(id uint32) bool {
	h, ok := m.harts[id]
	return !ok || id >= m.desc.HartCount || h.spec.Invalid
}

// ColdBootAllowed implements sbi.Platform.ColdBootAllowed.
func (m *Machine) ColdBootAllowed(id uint32) bool {
	h, ok := m.harts[id]
	return ok && !h.spec.NoColdBoot
}

// SupportsPrivilege implements sbi.Platform.SupportsPrivilege.
func (m *Machine) SupportsPrivilege(id uint32, p cpuid.Privilege) bool {
	h, ok := m.harts[id]
	return ok && h.features.SupportsPrivilege(p)
}

// SendIPI implements sbi.Platform.SendIPI.
func (m *Machine) SendIPI(id uint32) error {
	h, ok := m.harts[id]
	if !ok {
		return fmt.Errorf("IPI to hart %d: %w", id, sbierr.ErrInvalidParam)
	}
	h.raise(sbi.MIPMSIP)
	return nil
}

// HSM implements sbi.Platform.HSM.
func (m *Machine) HSM() sbi.HartStateMachine {
	return m.hsm
}

// ScratchLayout implements sbi.Platform.ScratchLayout.
func (m *Machine) ScratchLayout() *scratch.Layout {
	return m.layout
}

// HartScratch implements sbi.Platform.HartScratch.
func (m *Machine) HartScratch(id uint32) *scratch.Area {
	h, ok := m.harts[id]
	if !ok || id >= m.desc.HartCount {
		return nil
	}
	return h.area
}

// Subsystem implements sbi.Platform.Subsystem.
func (m *Machine) Subsystem(step sbi.Step) sbi.Initializer {
	s, ok := m.subsystems[step]
	if !ok {
		return nil
	}
	return s
}
