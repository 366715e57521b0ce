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


// Package cmd holds implementations of the hartboot commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"gvisor.dev/hartboot/hartboot/cmd/util"
	"gvisor.dev/hartboot/hartboot/config"
	"gvisor.dev/hartboot/hartboot/flag"
	"gvisor.dev/hartboot/hartboot/report"
	"gvisor.dev/hartboot/pkg/hartmask"
	"gvisor.dev/hartboot/pkg/log"
	"gvisor.dev/hartboot/pkg/sbi"
	"gvisor.dev/hartboot/pkg/sim"
)

// Boot implements subcommands.Command for the "boot" command.
type Boot struct {
	// id is the report ID. Empty means one is generated from the platform
	// name and the current time.
	id string

	// harts, if set, boots a uniform machine with that many harts instead
	// of a description file.
	harts uint

	// format is the output format.
	format string

	// noReport disables saving the report under --root.
	noReport bool

	// out is where the result is printed. nil means stdout.
	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Boot) Name() string {
	return "boot"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Boot) Synopsis() string {
	return "simulate one boot episode of a platform"
}

// Usage implements subcommands.Command.Usage.
func (*Boot) Usage() string {
	return `boot [flags] <description file> - release every hart of the described
platform into the firmware and report how each one left it.

The description is a TOML, YAML or JSON file. With --harts, a uniform
platform is booted instead and no description file is read.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (b *Boot) SetFlags(f *flag.FlagSet) {
	f.StringVar(&b.id, "id", "", "report ID, generated from the platform name if empty.")
	f.UintVar(&b.harts, "harts", 0, "boot a uniform platform with this many harts.")
	f.StringVar(&b.format, "format", "text", "output format: text (default) or json.")
	f.BoolVar(&b.noReport, "no-report", false, "do not save a report.")
}

// Execute implements subcommands.Command.Execute.
func (b *Boot) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)

	var (
		d    *sim.Description
		path string
	)
	if b.harts > hartmask.MaxHarts {
		log.Warningf("--harts=%d exceeds the maximum of %d harts", b.harts, hartmask.MaxHarts)
		f.Usage()
		return subcommands.ExitUsageError
	}
	switch {
	case b.harts > 0 && f.NArg() == 0:
		u := sim.Uniform("uniform", uint32(b.harts))
		d = &u
	case b.harts == 0 && f.NArg() == 1:
		path = f.Arg(0)
		var err error
		if d, err = config.LoadDescription(path); err != nil {
			util.Fatalf("loading description: %v", err)
		}
	default:
		f.Usage()
		return subcommands.ExitUsageError
	}
	if b.format != "text" && b.format != "json" {
		util.Fatalf("invalid format %q, must be text or json", b.format)
	}
	conf.Apply(d)

	m, err := sim.NewMachine(*d)
	if err != nil {
		util.Fatalf("creating machine: %v", err)
	}
	ctx, cancel := context.WithTimeout(ctx, conf.Timeout)
	defer cancel()

	log.Infof("Booting platform %q with %d harts", d.Name, len(d.Harts))
	start := time.Now()
	res, err := m.Boot(ctx)
	if err != nil {
		util.Fatalf("boot failed: %v", err)
	}
	log.Infof("Boot of %q finished in %v: leader %d, %d running, %d halted", res.Platform, time.Since(start), res.Leader, res.Count(sbi.StateRunning), res.Count(sbi.StateHalted))

	out := b.out
	if out == nil {
		out = os.Stdout
	}
	if err := printResult(out, res, b.format); err != nil {
		util.Fatalf("printing result: %v", err)
	}

	if !b.noReport {
		id := b.id
		if id == "" {
			id = reportID(res.Platform, start)
		}
		r := &report.Report{
			ID:          id,
			Description: path,
			Created:     start,
			Flags:       conf.ToFlags(),
			Result:      res,
		}
		if err := report.Save(conf.RootDir, r); err != nil {
			util.Fatalf("saving report: %v", err)
		}
		log.Infof("Saved report %q", id)
	}

	if res.TimedOut {
		log.Warningf("Harts %v never left the firmware", res.Hung)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

var unsafeIDChars = regexp.MustCompile(`[^\w.-]`)

// reportID returns a report ID for a boot of platform at t.
func reportID(platform string, t time.Time) string {
	name := unsafeIDChars.ReplaceAllString(platform, "_")
	if name == "" {
		name = "platform"
	}
	return fmt.Sprintf("%s-%s", name, t.UTC().Format("20060102-150405.000000"))
}

// printResult writes res to w as a table or as JSON.
func printResult(w io.Writer, res *sim.Result, format string) error {
	if format == "json" {
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}

	fmt.Fprintf(w, "platform %s: leader %d, releases %d\n", res.Platform, res.Leader, res.Releases)
	tw := tabwriter.NewWriter(w, 10, 1, 3, ' ', 0)
	fmt.Fprint(tw, "HART\tSTATE\tPATH\tOUTCOME\tINIT\tIPIS\tHSM\tNEXT\tREASON\n")
	for _, h := range res.Harts {
		next := "-"
		if h.Next != nil {
			next = fmt.Sprintf("%#x/%s", h.Next.Addr, h.Next.Mode)
		}
		reason := h.HaltReason
		if h.ExitError != "" {
			reason = strings.TrimSpace(strings.Join([]string{reason, "exit: " + h.ExitError}, " "))
		}
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			h.ID, h.State, h.Path, h.Outcome, h.InitCount, h.IPIs, orDash(h.HSMState), next, reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if res.DesiredPerf != 0 {
		fmt.Fprintf(w, "cppc desired performance: %d\n", res.DesiredPerf)
	}
	for _, v := range res.Violations {
		fmt.Fprintf(w, "ordering violation: %s\n", v)
	}
	if len(res.Hung) > 0 {
		fmt.Fprintf(w, "hung: %v\n", res.Hung)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
