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

	"github.com/google/subcommands"
	"gvisor.dev/hartboot/hartboot/cmd/util"
	"gvisor.dev/hartboot/hartboot/config"
	"gvisor.dev/hartboot/hartboot/flag"
	"gvisor.dev/hartboot/hartboot/report"
)

// Delete implements subcommands.Command for the "delete" command.
type Delete struct{}

// Name implements subcommands.Command.Name.
func (*Delete) Name() string {
	return "delete"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Delete) Synopsis() string {
	return "delete saved boot reports"
}

// Usage implements subcommands.Command.Usage.
func (*Delete) Usage() string {
	return `delete <report id> [report id...]`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Delete) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Delete) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	conf := args[0].(*config.Config)
	for _, id := range f.Args() {
		if err := report.Delete(conf.RootDir, id); err != nil {
			util.Fatalf("deleting report %q: %v", id, err)
		}
		util.Infof("Deleted report %q", id)
	}
	return subcommands.ExitSuccess
}
