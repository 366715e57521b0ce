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
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"gvisor.dev/hartboot/hartboot/cmd/util"
	"gvisor.dev/hartboot/hartboot/config"
	"gvisor.dev/hartboot/hartboot/flag"
	"gvisor.dev/hartboot/hartboot/report"
	"gvisor.dev/hartboot/pkg/sbi"
)

// List implements subcommands.Command for the "list" command.
type List struct {
	quiet  bool
	format string

	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*List) Name() string {
	return "list"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*List) Synopsis() string {
	return "list saved boot reports"
}

// Usage implements subcommands.Command.Usage.
func (*List) Usage() string {
	return `list [flags]`
}

// SetFlags implements subcommands.Command.SetFlags.
func (l *List) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&l.quiet, "quiet", false, "only list report ids")
	f.StringVar(&l.format, "format", "text", "output format: 'text' (default) or 'json'")
}

// reportSummary is the JSON form of one list entry.
type reportSummary struct {
	ID       string    `json:"id"`
	Platform string    `json:"platform"`
	Created  time.Time `json:"created"`
	Leader   int       `json:"leader"`
	Running  int       `json:"running"`
	Halted   int       `json:"halted"`
	Hung     int       `json:"hung"`
}

// Execute implements subcommands.Command.Execute.
func (l *List) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	conf := args[0].(*config.Config)
	ids, err := report.List(conf.RootDir)
	if err != nil {
		util.Fatalf("%v", err)
	}

	out := l.out
	if out == nil {
		out = os.Stdout
	}
	if l.quiet {
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return subcommands.ExitSuccess
	}

	// Collect the reports.
	var summaries []reportSummary
	for _, id := range ids {
		r, err := report.Load(conf.RootDir, id)
		if err != nil {
			util.Fatalf("loading report %q: %v", id, err)
		}
		s := reportSummary{ID: r.ID, Created: r.Created, Leader: -1}
		if res := r.Result; res != nil {
			s.Platform = res.Platform
			s.Leader = res.Leader
			s.Running = res.Count(sbi.StateRunning)
			s.Halted = res.Count(sbi.StateHalted)
			s.Hung = len(res.Hung)
		}
		summaries = append(summaries, s)
	}

	switch l.format {
	case "text":
		// Print a nice table.
		w := tabwriter.NewWriter(out, 12, 1, 3, ' ', 0)
		fmt.Fprint(w, "ID\tPLATFORM\tLEADER\tRUNNING\tHALTED\tHUNG\tCREATED\n")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
				s.ID,
				s.Platform,
				s.Leader,
				s.Running,
				s.Halted,
				s.Hung,
				s.Created.Format(time.RFC3339Nano))
		}
		w.Flush()
	case "json":
		if err := json.NewEncoder(out).Encode(summaries); err != nil {
			util.Fatalf("marshaling report summaries: %v", err)
		}
	default:
		util.Fatalf("unknown list format %q", l.format)
	}
	return subcommands.ExitSuccess
}
