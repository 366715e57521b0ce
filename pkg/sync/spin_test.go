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
	"testing"
)

func TestSpinMutexTryLock(t *testing.T) {
	var m SpinMutex
	if !m.TryLock() {
		t.Fatalf("TryLock failed on an unlocked mutex")
	}
	if m.TryLock() {
		t.Fatalf("TryLock succeeded on a locked mutex")
	}
	m.Unlock()
	if !m.TryLock() {
		t.Fatalf("TryLock failed after Unlock")
	}
	m.Unlock()
}

func TestSpinMutexUnlockUnlocked(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Unlock of an unlocked SpinMutex did not panic")
		}
	}()
	var m SpinMutex
	m.Unlock()
}

func TestSpinMutexExclusion(t *testing.T) {
	const (
		goroutines = 16
		iterations = 1000
	)
	var (
		m       SpinMutex
		counter int
		wg      WaitGroup
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				m.Lock()
				counter++
				m.Unlock()
			}
		}()
	}
	wg.Wait()
	if want := goroutines * iterations; counter != want {
		t.Errorf("counter = %d, want %d", counter, want)
	}
}

func BenchmarkSpinMutexUncontended(b *testing.B) {
	var m SpinMutex
	for i := 0; i < b.N; i++ {
		m.Lock()
		m.Unlock()
	}
}
