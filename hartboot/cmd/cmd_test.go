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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/subcommands"
	"gvisor.dev/hartboot/hartboot/config"
	"gvisor.dev/hartboot/hartboot/flag"
	"gvisor.dev/hartboot/hartboot/report"
	"gvisor.dev/hartboot/pkg/sbi"
	"gvisor.dev/hartboot/pkg/sim"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	config.RegisterFlags(fs)
	if err := fs.Parse([]string{"--root=" + t.TempDir(), "--timeout=5s"}); err != nil {
		t.Fatal(err)
	}
	conf, err := config.NewFromFlags(fs)
	if err != nil {
		t.Fatal(err)
	}
	return conf
}

// execute parses args into cmd's flags and runs it.
func execute(t *testing.T, cmd subcommands.Command, conf *config.Config, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parsing %v: %v", args, err)
	}
	return cmd.Execute(context.Background(), fs, conf)
}

func TestBootUniform(t *testing.T) {
	conf := testConfig(t)
	var out bytes.Buffer
	b := &Boot{out: &out}
	if got := execute(t, b, conf, "--harts=4", "--id=uniform-4"); got != subcommands.ExitSuccess {
		t.Fatalf("boot = %v, want success; output:\n%s", got, out.String())
	}
	if !strings.Contains(out.String(), "HART") || !strings.Contains(out.String(), "cold-boot") {
		t.Errorf("unexpected boot output:\n%s", out.String())
	}

	r, err := report.Load(conf.RootDir, "uniform-4")
	if err != nil {
		t.Fatalf("report.Load() failed: %v", err)
	}
	if got := r.Result.Count(sbi.StateRunning); got != 4 {
		t.Errorf("running harts = %d, want 4", got)
	}
	if want := []string{"--root=" + conf.RootDir, "--timeout=5s"}; !cmp.Equal(r.Flags, want) {
		t.Errorf("report flags = %v, want %v", r.Flags, want)
	}
}

func TestBootDescription(t *testing.T) {
	conf := testConfig(t)
	path := filepath.Join(t.TempDir(), "board.yaml")
	desc := `
name: board
hart_count: 2
harts:
  - id: 0
    no_cold_boot: true
  - id: 1
clock:
  name: board-clk
  cppc_clock: cpu
  cppc_step: 1000000
  rates:
    cpu: 1800000000
`
	if err := os.WriteFile(path, []byte(desc), 0644); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	b := &Boot{out: &out}
	if got := execute(t, b, conf, "--format=json", "--no-report", path); got != subcommands.ExitSuccess {
		t.Fatalf("boot = %v, want success", got)
	}
	var res sim.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("unmarshaling output: %v\n%s", err, out.String())
	}
	if res.Leader != 1 {
		t.Errorf("leader = %d, want 1", res.Leader)
	}
	if res.DesiredPerf != 1800 {
		t.Errorf("desired perf = %d, want 1800", res.DesiredPerf)
	}
	ids, err := report.List(conf.RootDir)
	if err != nil || len(ids) != 0 {
		t.Errorf("report.List() = %v, %v, want no reports", ids, err)
	}
}

func TestBootUsage(t *testing.T) {
	conf := testConfig(t)
	for _, args := range [][]string{
		{},
		{"--harts=2", "extra.toml"},
		{"a.toml", "b.toml"},
		{"--harts=129"},
		{"--harts=4294967297"},
	} {
		b := &Boot{out: &bytes.Buffer{}}
		if got := execute(t, b, conf, args...); got != subcommands.ExitUsageError {
			t.Errorf("boot %v = %v, want usage error", args, got)
		}
	}
}

func TestStateListDelete(t *testing.T) {
	conf := testConfig(t)
	for _, id := range []string{"first", "second"} {
		if got := execute(t, &Boot{out: &bytes.Buffer{}}, conf, "--harts=2", "--id="+id); got != subcommands.ExitSuccess {
			t.Fatalf("boot %q = %v", id, got)
		}
	}

	var out bytes.Buffer
	if got := execute(t, &State{out: &out}, conf, "--hart=1", "sec"); got != subcommands.ExitSuccess {
		t.Fatalf("state = %v", got)
	}
	var h sim.HartResult
	if err := json.Unmarshal(out.Bytes(), &h); err != nil {
		t.Fatalf("unmarshaling state: %v\n%s", err, out.String())
	}
	if h.ID != 1 || h.State != sbi.StateRunning {
		t.Errorf("state = %+v, want hart 1 running", h)
	}

	out.Reset()
	if got := execute(t, &List{out: &out}, conf, "--quiet"); got != subcommands.ExitSuccess {
		t.Fatalf("list = %v", got)
	}
	if diff := cmp.Diff("first\nsecond\n", out.String()); diff != "" {
		t.Errorf("list --quiet mismatch (-want +got):\n%s", diff)
	}

	out.Reset()
	if got := execute(t, &List{out: &out}, conf, "--format=json"); got != subcommands.ExitSuccess {
		t.Fatalf("list = %v", got)
	}
	var summaries []reportSummary
	if err := json.Unmarshal(out.Bytes(), &summaries); err != nil {
		t.Fatalf("unmarshaling list: %v", err)
	}
	if len(summaries) != 2 || summaries[0].Running != 2 || summaries[0].Platform != "uniform" {
		t.Errorf("list summaries = %+v", summaries)
	}

	if got := execute(t, &Delete{}, conf, "first"); got != subcommands.ExitSuccess {
		t.Fatalf("delete = %v", got)
	}
	ids, err := report.List(conf.RootDir)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"second"}, ids); diff != "" {
		t.Errorf("reports after delete mismatch (-want +got):\n%s", diff)
	}
}

func TestReportID(t *testing.T) {
	ts := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	for _, tc := range []struct {
		platform string
		want     string
	}{
		{"sg2044", "sg2044-20261019-083000.000000"},
		{"milk-v pioneer/1", "milk-v_pioneer_1-20261019-083000.000000"},
		{"", "platform-20261019-083000.000000"},
	} {
		got := reportID(tc.platform, ts)
		if got != tc.want {
			t.Errorf("reportID(%q) = %q, want %q", tc.platform, got, tc.want)
		}
		if err := report.ValidateID(got); err != nil {
			t.Errorf("reportID(%q) is not a valid id: %v", tc.platform, err)
		}
	}
}
