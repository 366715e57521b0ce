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
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/hartboot/pkg/cpuid"
	"gvisor.dev/hartboot/pkg/sbi"
)

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		mutate  func(d *Description)
		wantErr string
	}{
		{"ok", func(d *Description) {}, ""},
		{"zero harts", func(d *Description) { d.HartCount = 0 }, "hart_count"},
		{"too many harts", func(d *Description) { d.HartCount = 1000 }, "exceeds"},
		{"empty", func(d *Description) { d.Harts = nil }, "no harts"},
		{"duplicate", func(d *Description) { d.Harts[1].ID = 0 }, "duplicate"},
		{"bad isa", func(d *Description) { d.Harts[0].ISA = "arm64" }, "rv"},
		{"bad mode", func(d *Description) { d.Harts[0].NextMode = "H" }, "next mode"},
		{"bad state", func(d *Description) { d.Harts[0].State = "dancing" }, "state"},
		{"bad step", func(d *Description) { d.Faults = []Fault{{Hart: 0, Step: "nope"}} }, "step"},
		{"fault hart", func(d *Description) { d.Faults = []Fault{{Hart: 7, Step: "ipi"}} }, "unknown hart"},
		{"cppc clock", func(d *Description) {
			d.Clock = &ClockSpec{Name: "c", CPPCClock: "cpu", CPPCStep: 1}
		}, "not a clock"},
		{"cppc step", func(d *Description) {
			d.Clock = &ClockSpec{Name: "c", Rates: map[string]uint64{"cpu": 1}, CPPCClock: "cpu"}
		}, "cppc_step"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := Uniform("v", 2)
			tc.mutate(&d)
			err := d.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]cpuid.Privilege{
		"":  cpuid.PrivilegeSupervisor,
		"M": cpuid.PrivilegeMachine,
		"u": cpuid.PrivilegeUser,
		"2": cpuid.Privilege(2),
	} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMode("300"); err == nil {
		t.Errorf("ParseMode(300) succeeded")
	}
}

func TestNewMachineCopiesDescription(t *testing.T) {
	d := Uniform("copy", 2)
	d.Clock = &ClockSpec{Name: "c", Rates: map[string]uint64{"cpu": 100}}
	m, err := NewMachine(d)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	d.Harts[0].Invalid = true
	d.Clock.Rates["cpu"] = 5
	if m.HartInvalid(0) {
		t.Errorf("mutating the description changed the machine")
	}
	dev, ok := m.Clocks().Device()
	if !ok {
		t.Fatalf("clock probe did not register a device")
	}
	if got := dev.GetRate("cpu"); got != 100 {
		t.Errorf("rate = %d, want 100", got)
	}
}

func TestPlatformQueries(t *testing.T) {
	d := Uniform("q", 3)
	d.Harts[1].ISA = "rv64imac"
	d.Harts[2].NoColdBoot = true
	d.Harts = append(d.Harts, HartSpec{ID: 5})
	m, err := NewMachine(d)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	if !m.SupportsPrivilege(0, cpuid.PrivilegeSupervisor) || m.SupportsPrivilege(1, cpuid.PrivilegeSupervisor) {
		t.Errorf("SupportsPrivilege does not follow the ISA")
	}
	if !m.ColdBootAllowed(0) || m.ColdBootAllowed(2) || m.ColdBootAllowed(4) {
		t.Errorf("ColdBootAllowed mismatch")
	}
	if m.HartInvalid(0) || !m.HartInvalid(4) || !m.HartInvalid(5) {
		t.Errorf("HartInvalid mismatch")
	}
	if m.HartScratch(0) == nil || m.HartScratch(5) != nil {
		t.Errorf("HartScratch mismatch")
	}
	if err := m.SendIPI(4); err == nil {
		t.Errorf("SendIPI to a missing hart succeeded")
	}
	if m.Subsystem(sbi.StepHSM) != nil || m.Subsystem(sbi.StepInitCount) != nil {
		t.Errorf("internal steps have platform hooks")
	}
	if m.Subsystem(sbi.StepTimer) == nil {
		t.Errorf("timer has no platform hook")
	}
}

func TestSendIPIWakesWFI(t *testing.T) {
	m, err := NewMachine(Uniform("ipi", 1))
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	h := m.Hart(0)
	h.SetMIE(sbi.MIPMSIP)
	done := make(chan struct{})
	go func() {
		h.WaitForInterrupt()
		close(done)
	}()
	if err := m.SendIPI(0); err != nil {
		t.Fatalf("SendIPI: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("WFI did not return after an IPI")
	}
	if h.ReadMIP()&sbi.MIPMSIP == 0 {
		t.Errorf("MSIP not pending after IPI")
	}
}

func TestBootOnce(t *testing.T) {
	m, err := NewMachine(Uniform("once", 2))
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	if _, err := m.Boot(context.Background()); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if _, err := m.Boot(context.Background()); err == nil {
		t.Errorf("second Boot succeeded")
	}
}

func TestBootTimeoutPowersOff(t *testing.T) {
	d := Uniform("hang", 3)
	d.Harts[1].ISA = "rv64imac"
	d.Harts[2].ISA = "rv64imac"
	d.Faults = []Fault{{Hart: 0, Step: "timer"}}
	m, err := NewMachine(d)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r, err := m.Boot(ctx)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if !r.TimedOut {
		t.Errorf("TimedOut = false")
	}
	if diff := cmp.Diff([]uint32{1, 2}, r.Hung); diff != "" {
		t.Errorf("hung mismatch (-want +got):\n%s", diff)
	}
	for _, id := range []uint32{1, 2} {
		h, _ := r.Hart(id)
		if h.Outcome != OutcomePoweredOff || h.State != sbi.StateWarmParked {
			t.Errorf("hart %d: outcome %v state %v", id, h.Outcome, h.State)
		}
	}
}

func TestPinnedBoot(t *testing.T) {
	d := Uniform("pinned", 4)
	d.PinCPUs = true
	m, err := NewMachine(d)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	r, err := m.Boot(context.Background())
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if got := r.Count(sbi.StateRunning); got != 4 {
		t.Errorf("%d harts running, want 4", got)
	}
}

func TestResultJSON(t *testing.T) {
	m, err := NewMachine(Uniform("json", 2))
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	r, err := m.Boot(context.Background())
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"state":"running"`, `"outcome":"running"`, `"mode":"S"`, `"trace":["`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("JSON %s does not contain %s", b, want)
		}
	}
	var back Result
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(*r, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
