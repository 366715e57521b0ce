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

// Package device holds the firmware's singleton device registrations.
//
// A platform registers at most one device per class (clock controller, CPPC
// provider, ...). The first registration wins and later ones are silently
// ignored, which lets several probe paths race without coordination.
package device

import (
	"sync/atomic"
)

type entry[T any] struct {
	dev T
}

// Slot holds the registered device of one class.
//
// The zero value is an empty slot.
type Slot[T any] struct {
	p atomic.Pointer[entry[T]]
}

// Set registers dev if the slot is empty. It returns false if dev is nil or
// a device is already registered.
func (s *Slot[T]) Set(dev T) bool {
	if any(dev) == nil {
		return false
	}
	return s.p.CompareAndSwap(nil, &entry[T]{dev: dev})
}

// Get returns the registered device. If the slot is empty and probe is not
// nil, probe is called to give it a chance to register a device. Every Get
// on an empty slot probes again.
func (s *Slot[T]) Get(probe func()) (T, bool) {
	e := s.p.Load()
	if e == nil && probe != nil {
		probe()
		e = s.p.Load()
	}
	if e == nil {
		var zero T
		return zero, false
	}
	return e.dev, true
}
