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
)

// ClockDevice is a clock controller.
type ClockDevice interface {
	// Name identifies the controller.
	Name() string

	// SetRate sets the rate of clock name in Hz.
	SetRate(name string, rate uint64) error

	// GetRate returns the rate of clock name in Hz.
	GetRate(name string) uint64

	// Enable ungates clock name.
	Enable(name string) error

	// Disable gates clock name.
	Disable(name string) error
}

// Clocks is the clock facade. All operations fail with sbierr.ErrFailed
// while no controller is registered.
type Clocks struct {
	slot Slot[ClockDevice]

	// Probe, if set, is called by Device when no controller is registered.
	Probe func()
}

// SetDevice registers dev. Only the first registration takes effect.
func (c *Clocks) SetDevice(dev ClockDevice) {
	c.slot.Set(dev)
}

// Device returns the registered controller, probing for one if necessary.
func (c *Clocks) Device() (ClockDevice, bool) {
	return c.slot.Get(c.Probe)
}

func (c *Clocks) registered() (ClockDevice, error) {
	dev, ok := c.slot.Get(nil)
	if !ok {
		return nil, fmt.Errorf("no clock controller: %w", sbierr.ErrFailed)
	}
	return dev, nil
}

// SetRate sets the rate of clock name.
func (c *Clocks) SetRate(name string, rate uint64) error {
	dev, err := c.registered()
	if err != nil {
		return err
	}
	return dev.SetRate(name, rate)
}

// GetRate returns the rate of clock name.
func (c *Clocks) GetRate(name string) (uint64, error) {
	dev, err := c.registered()
	if err != nil {
		return 0, err
	}
	return dev.GetRate(name), nil
}

// Enable ungates clock name.
func (c *Clocks) Enable(name string) error {
	dev, err := c.registered()
	if err != nil {
		return err
	}
	return dev.Enable(name)
}

// Disable gates clock name.
func (c *Clocks) Disable(name string) error {
	dev, err := c.registered()
	if err != nil {
		return err
	}
	return dev.Disable(name)
}
