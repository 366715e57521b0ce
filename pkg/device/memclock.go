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
	"gvisor.dev/hartboot/pkg/sync"
)

// MemClock is a clock controller whose clocks are entries in a table. It
// backs simulated platforms.
type MemClock struct {
	name string

	mu      sync.Mutex
	rates   map[string]uint64
	enabled map[string]bool
}

// NewMemClock returns a controller with the given clocks and initial rates.
// All clocks start disabled.
func NewMemClock(name string, rates map[string]uint64) *MemClock {
	c := &MemClock{
		name:    name,
		rates:   make(map[string]uint64, len(rates)),
		enabled: make(map[string]bool, len(rates)),
	}
	for n, r := range rates {
		c.rates[n] = r
	}
	return c
}

// Name implements ClockDevice.Name.
func (c *MemClock) Name() string {
	return c.name
}

// SetRate implements ClockDevice.SetRate.
func (c *MemClock) SetRate(name string, rate uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rates[name]; !ok {
		return fmt.Errorf("clock %q: %w", name, sbierr.ENOENT)
	}
	c.rates[name] = rate
	return nil
}

// GetRate implements ClockDevice.GetRate. Unknown clocks have rate 0.
func (c *MemClock) GetRate(name string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rates[name]
}

// Enable implements ClockDevice.Enable.
func (c *MemClock) Enable(name string) error {
	return c.gate(name, true)
}

// Disable implements ClockDevice.Disable.
func (c *MemClock) Disable(name string) error {
	return c.gate(name, false)
}

func (c *MemClock) gate(name string, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rates[name]; !ok {
		return fmt.Errorf("clock %q: %w", name, sbierr.ENOENT)
	}
	c.enabled[name] = on
	return nil
}

// Enabled returns whether clock name is ungated.
func (c *MemClock) Enabled(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled[name]
}
