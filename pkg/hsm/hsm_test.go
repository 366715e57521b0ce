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

package hsm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/hartboot/pkg/cpuid"
	"gvisor.dev/hartboot/pkg/sbierr"
	"gvisor.dev/hartboot/pkg/scratch"
)

type testHart struct {
	id   uint32
	area *scratch.Area
}

func (h *testHart) ID() uint32             { return h.id }
func (h *testHart) Scratch() *scratch.Area { return h.area }

func newHart(id uint32) *testHart {
	a := scratch.NewLayout(scratch.DefaultSize).NewArea(id)
	a.Next = scratch.NextStage{Addr: 0x80200000, Arg1: 0x82200000, Mode: cpuid.PrivilegeSupervisor}
	return &testHart{id: id, area: a}
}

func TestStartPath(t *testing.T) {
	m := New(2)
	h := newHart(1)
	if err := m.Init(h, false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if s, _ := m.State(1); s != StartPending {
		t.Errorf("state after Init = %v, want %v", s, StartPending)
	}
	next, err := m.PrepareNextJump(h)
	if err != nil {
		t.Fatalf("PrepareNextJump: %v", err)
	}
	if diff := cmp.Diff(h.area.Next, next); diff != "" {
		t.Errorf("next stage mismatch (-want +got):\n%s", diff)
	}
	if s, _ := m.State(1); s != Started {
		t.Errorf("state = %v, want %v", s, Started)
	}
	if _, err := m.PrepareNextJump(h); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second PrepareNextJump = %v, want %v", err, ErrInvalidState)
	}
}

func TestResumePath(t *testing.T) {
	m := New(1)
	h := newHart(0)
	if err := m.ResumeStart(h); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("ResumeStart from stopped = %v, want %v", err, ErrInvalidState)
	}
	if err := m.Set(0, Suspended); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.ResumeStart(h); err != nil {
		t.Fatalf("ResumeStart: %v", err)
	}
	if s, _ := m.State(0); s != ResumePending {
		t.Errorf("state = %v, want %v", s, ResumePending)
	}
	if err := m.ResumeFinish(h); err != nil {
		t.Fatalf("ResumeFinish: %v", err)
	}
	if s, _ := m.State(0); s != Started {
		t.Errorf("state = %v, want %v", s, Started)
	}
}

func TestInitFromSuspendedFails(t *testing.T) {
	m := New(1)
	m.Set(0, Suspended)
	if err := m.Init(newHart(0), false); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Init from suspended = %v, want %v", err, ErrInvalidState)
	}
}

func TestColdInitFromAnyState(t *testing.T) {
	for _, from := range []State{Started, Stopped, Suspended, ResumePending} {
		m := New(1)
		m.Set(0, from)
		if err := m.Init(newHart(0), true); err != nil {
			t.Fatalf("cold Init from %v: %v", from, err)
		}
		if s, _ := m.State(0); s != StartPending {
			t.Errorf("cold Init from %v left %v, want %v", from, s, StartPending)
		}
	}
}

func TestWarmInitFromStartedFails(t *testing.T) {
	m := New(1)
	m.Set(0, Started)
	if err := m.Init(newHart(0), false); !errors.Is(err, ErrInvalidState) {
		t.Errorf("warm Init from started = %v, want %v", err, ErrInvalidState)
	}
}

func TestInvalidHart(t *testing.T) {
	m := New(2)
	if _, err := m.State(2); !errors.Is(err, sbierr.ErrInvalidParam) {
		t.Errorf("State(2) = %v, want %v", err, sbierr.ErrInvalidParam)
	}
}

func TestExitAndSuspend(t *testing.T) {
	m := New(1)
	h := newHart(0)
	m.Set(0, Started)
	if err := m.Suspend(0); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if err := m.Exit(h); err != nil {
		t.Fatalf("Exit: %v", err)
	}
	if s, _ := m.State(0); s != Stopped {
		t.Errorf("state = %v, want %v", s, Stopped)
	}
}

func TestStateNames(t *testing.T) {
	for s := Started; s <= ResumePending; s++ {
		got, err := StateFromString(s.String())
		if err != nil || got != s {
			t.Errorf("StateFromString(%q) = %v, %v", s.String(), got, err)
		}
	}
	if _, err := StateFromString("running"); err == nil {
		t.Errorf("StateFromString(running) succeeded")
	}
}
