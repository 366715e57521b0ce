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

import (
	"errors"
	"fmt"

	"gvisor.dev/hartboot/pkg/hartmask"
	"gvisor.dev/hartboot/pkg/log"
)

// Exit tears down the firmware on h. Invalid harts hang. Every teardown hook
// runs even if an earlier one failed; failures are logged and returned
// joined.
func (c *Coordinator) Exit(h Hart) error {
	id := h.ID()
	if !hartmask.Valid(id) || id >= c.plat.HartCount() || c.plat.HartInvalid(id) {
		c.hang(h, fmt.Errorf("exit on hart %d: %w", id, ErrInvalidHart))
	}

	var errs []error
	for _, step := range exitSteps {
		if err := c.exitStep(h, step); err != nil {
			log.Warningf("hart %d: %v exit failed: %v", id, step, err)
			errs = append(errs, fmt.Errorf("%v exit: %w", step, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Coordinator) exitStep(h Hart, step Step) error {
	if step == StepHSM {
		return c.plat.HSM().Exit(h)
	}
	e, ok := c.plat.Subsystem(step).(Exiter)
	if !ok {
		return nil
	}
	return e.Exit(h)
}
