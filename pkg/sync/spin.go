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

package sync

import (
	"runtime"
	"sync/atomic"
)

// spinsBeforeYield is the number of failed acquisition attempts after which
// a waiter yields its thread instead of issuing another atomic.
const spinsBeforeYield = 64

// SpinMutex is a test-and-set spin lock.
//
// Unlike Mutex it never parks the calling goroutine with the scheduler, which
// makes it usable on paths that model hardware harts: a hart waiting for the
// lock keeps issuing instructions, exactly as it would on bare metal.
// Critical sections must be short and must not block.
//
// The zero value is an unlocked SpinMutex.
type SpinMutex struct {
	_     NoCopy
	state uint32
}

// Lock acquires m, spinning until it is available.
func (m *SpinMutex) Lock() {
	for spins := 0; ; spins++ {
		// Test before test-and-set: spinning on a plain load keeps the
		// line shared until the holder releases it.
		if atomic.LoadUint32(&m.state) == 0 && atomic.CompareAndSwapUint32(&m.state, 0, 1) {
			return
		}
		if spins >= spinsBeforeYield {
			runtime.Gosched()
			spins = 0
		}
	}
}

// TryLock attempts to acquire m without spinning.
func (m *SpinMutex) TryLock() bool {
	return atomic.CompareAndSwapUint32(&m.state, 0, 1)
}

// Unlock releases m.
//
// Preconditions: m is locked.
func (m *SpinMutex) Unlock() {
	if atomic.SwapUint32(&m.state, 0) != 1 {
		panic("unlock of unlocked SpinMutex")
	}
}
