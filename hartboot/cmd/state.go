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


package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"gvisor.dev/hartboot/hartboot/cmd/util"
	"gvisor.dev/hartboot/hartboot/config"
	"gvisor.dev/hartboot/hartboot/flag"
	"gvisor.dev/hartboot/hartboot/report"
	"gvisor.dev/hartboot/pkg/log"
)

// State implements subcommands.Command for the "state" command.
type State struct {
	// hart, if not negative, limits the output to one hart.
	hart int

	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*State) Name() string {
	return "state"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*State) Synopsis() string {
	return "get the saved state of a boot episode"
}

// Usage implements subcommands.Command.Usage.
func (*State) Usage() string {
	return `state [flags] <report id> - get the saved state of a boot episode`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *State) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.hart, "hart", -1, "only print the state of this hart.")
}

// Execute implements subcommands.Command.Execute.
func (s *State) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	id := f.Arg(0)
	conf := args[0].(*config.Config)

	r, err := report.Load(conf.RootDir, id)
	if err != nil {
		util.Fatalf("loading report: %v", err)
	}
	log.Debugf("Returning state for report %q", r.ID)

	var v any = r
	if s.hart >= 0 {
		h, ok := r.Result.Hart(uint32(s.hart))
		if !ok {
			util.Fatalf("report %q has no hart %d", r.ID, s.hart)
		}
		v = h
	}

	// Write json-encoded state directly to stdout.
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		util.Fatalf("marshaling report: %v", err)
	}
	out := s.out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "%s\n", b)
	return subcommands.ExitSuccess
}
