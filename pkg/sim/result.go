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
	"gvisor.dev/hartboot/pkg/sbi"
	"gvisor.dev/hartboot/pkg/scratch"
)

// Result is the outcome of one boot episode.
type Result struct {
	Platform string `json:"platform"`

	// Leader is the hart that took the cold-boot path, or -1.
	Leader int `json:"leader"`

	// Releases is the number of times parked harts were released.
	Releases uint32 `json:"releases"`

	Harts []HartResult `json:"harts"`

	// Hung lists harts still parked when the machine was powered off.
	Hung []uint32 `json:"hung,omitempty"`

	// TimedOut is set if the episode hit its deadline with harts hung.
	TimedOut bool `json:"timed_out,omitempty"`

	// DesiredPerf is the CPPC desired performance after boot, if a CPPC
	// provider was registered.
	DesiredPerf uint64 `json:"desired_perf,omitempty"`

	// Violations lists warm-path steps that ran before cold boot was
	// published.
	Violations []string `json:"violations,omitempty"`
}

// HartResult is the outcome of one hart.
type HartResult struct {
	ID         uint32             `json:"id"`
	State      sbi.BootState      `json:"state"`
	Path       sbi.Path           `json:"path"`
	Outcome    Outcome            `json:"outcome"`
	HaltReason string             `json:"halt_reason,omitempty"`
	InitCount  uint64             `json:"init_count"`
	IPIs       uint32             `json:"ipis"`
	HSMState   string             `json:"hsm_state,omitempty"`
	Next       *scratch.NextStage `json:"next,omitempty"`
	Trace      []sbi.Step         `json:"trace,omitempty"`
	ExitTrace  []sbi.Step         `json:"exit_trace,omitempty"`
	ExitError  string             `json:"exit_error,omitempty"`
}

// Hart returns the result for hart id.
func (r *Result) Hart(id uint32) (HartResult, bool) {
	for _, h := range r.Harts {
		if h.ID == id {
			return h, true
		}
	}
	return HartResult{}, false
}

// Count returns the number of harts in state s.
func (r *Result) Count(s sbi.BootState) int {
	n := 0
	for _, h := range r.Harts {
		if h.State == s {
			n++
		}
	}
	return n
}
