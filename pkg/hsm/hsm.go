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

// Package hsm implements the hart state machine: the per-hart lifecycle
// state that survives across boot episodes and decides whether a hart that
// wakes up is starting fresh or resuming from suspend.
//
// All transitions are compare-and-swap on a per-hart word. A transition
// whose source state does not match fails with ErrInvalidState and leaves
// the state unchanged.
package hsm

import (
	"fmt"

	"gvisor.dev/hartboot/pkg/atomicbitops"
	"gvisor.dev/hartboot/pkg/hartmask"
	"gvisor.dev/hartboot/pkg/sbierr"
	"gvisor.dev/hartboot/pkg/scratch"
)

// State is the lifecycle state of a hart.
type State uint32

// Hart states, numbered as in the SBI HSM extension.
const (
	Started State = iota
	Stopped
	StartPending
	StopPending
	Suspended
	SuspendPending
	ResumePending
)

var stateNames = [...]string{
	Started:        "started",
	Stopped:        "stopped",
	StartPending:   "start-pending",
	StopPending:    "stop-pending",
	Suspended:      "suspended",
	SuspendPending: "suspend-pending",
	ResumePending:  "resume-pending",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

// StateFromString parses the names returned by State.String.
func StateFromString(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return State(s), nil
		}
	}
	return 0, fmt.Errorf("unknown hart state %q", name)
}

// ErrInvalidState is returned for a transition from the wrong state.
var ErrInvalidState = sbierr.ErrInvalidState

// Hart is the subset of a hart that the state machine needs.
type Hart interface {
	ID() uint32
	Scratch() *scratch.Area
}

// Machine holds the state of every hart on a platform.
type Machine struct {
	states [hartmask.MaxHarts]atomicbitops.Uint32
	count  uint32
}

// New returns a machine for count harts. Every hart starts in Stopped.
func New(count uint32) *Machine {
	if count > hartmask.MaxHarts {
		panic(fmt.Sprintf("hart count %d exceeds %d", count, hartmask.MaxHarts))
	}
	m := &Machine{count: count}
	for i := uint32(0); i < count; i++ {
		m.states[i].Store(uint32(Stopped))
	}
	return m
}

func (m *Machine) word(id uint32) (*atomicbitops.Uint32, error) {
	if id >= m.count {
		return nil, fmt.Errorf("hart %d: %w", id, sbierr.ErrInvalidParam)
	}
	return &m.states[id], nil
}

// State returns the current state of hart id.
func (m *Machine) State(id uint32) (State, error) {
	w, err := m.word(id)
	if err != nil {
		return 0, err
	}
	return State(w.Load()), nil
}

// Set forces the state of hart id. It is used to describe the state a hart
// was left in before the current boot episode.
func (m *Machine) Set(id uint32, s State) error {
	w, err := m.word(id)
	if err != nil {
		return err
	}
	w.Store(uint32(s))
	return nil
}

func (m *Machine) transition(id uint32, from, to State) error {
	w, err := m.word(id)
	if err != nil {
		return err
	}
	if !w.CompareAndSwap(uint32(from), uint32(to)) {
		return fmt.Errorf("hart %d: %v -> %v from %v: %w", id, from, to, State(w.Load()), ErrInvalidState)
	}
	return nil
}

// Init prepares the calling hart to start. On cold boot the calling hart
// becomes start-pending whatever state it was left in, and every other hart
// keeps its state. On warm boot a stopped hart becomes start-pending; a hart
// that is already start-pending is left alone.
func (m *Machine) Init(h Hart, cold bool) error {
	id := h.ID()
	w, err := m.word(id)
	if err != nil {
		return err
	}
	if cold {
		w.Store(uint32(StartPending))
		return nil
	}
	switch s := State(w.Load()); s {
	case StartPending:
		return nil
	case Stopped:
		return m.transition(id, Stopped, StartPending)
	default:
		return fmt.Errorf("hart %d: cannot start from %v: %w", id, s, ErrInvalidState)
	}
}

// PrepareNextJump marks the calling hart started and returns where it
// should jump.
func (m *Machine) PrepareNextJump(h Hart) (scratch.NextStage, error) {
	if err := m.transition(h.ID(), StartPending, Started); err != nil {
		return scratch.NextStage{}, err
	}
	return h.Scratch().Next, nil
}

// ResumeStart begins resuming a suspended hart.
func (m *Machine) ResumeStart(h Hart) error {
	return m.transition(h.ID(), Suspended, ResumePending)
}

// ResumeFinish completes a resume started with ResumeStart.
func (m *Machine) ResumeFinish(h Hart) error {
	return m.transition(h.ID(), ResumePending, Started)
}

// Suspend moves a started hart to suspended.
func (m *Machine) Suspend(id uint32) error {
	return m.transition(id, Started, Suspended)
}

// Exit stops the calling hart as part of firmware teardown.
func (m *Machine) Exit(h Hart) error {
	w, err := m.word(h.ID())
	if err != nil {
		return err
	}
	w.Store(uint32(Stopped))
	return nil
}
