// Copyright 2018 The gVisor Authors.
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

package log

import (
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/time/rate"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	expected := []string{
		"line 1\n",
		"line 2\n",
		"\n*** Dropped 2 log messages ***\n",
	}
	if diff := cmp.Diff(expected, tw.lines); diff != "" {
		t.Errorf("unexpected lines (-want +got):\n%s", diff)
	}
}

func TestWriterAppendsNewline(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("no newline")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}
	if diff := cmp.Diff([]string{"no newline", "\n"}, tw.lines); diff != "" {
		t.Errorf("unexpected lines (-want +got):\n%s", diff)
	}
}

func TestWriterEmitSingleWrite(t *testing.T) {
	tw := &testWriter{}
	w := &Writer{Next: tw}
	w.Emit(0, Info, time.Now(), "hart %d: parked", 4)
	w.Emit(0, Info, time.Now(), "already terminated\n")
	want := []string{"hart 4: parked\n", "already terminated\n"}
	if diff := cmp.Diff(want, tw.lines); diff != "" {
		t.Errorf("unexpected writes (-want +got):\n%s", diff)
	}
}

func TestGoogleEmitterFormat(t *testing.T) {
	tw := &testWriter{}
	e := GoogleEmitter{&Writer{Next: tw}}
	ts := time.Date(2024, time.March, 7, 9, 5, 3, 42000, time.UTC)
	e.Emit(0, Warning, ts, "hart %d: %s", 3, "halted")

	out := strings.Join(tw.lines, "")
	re := regexp.MustCompile(`^W0307 09:05:03\.000042 +\d+ log_test\.go:\d+\] hart 3: halted\n$`)
	if !re.MatchString(out) {
		t.Errorf("unexpected google line %q", out)
	}
}

func TestGoogleEmitterSingleLine(t *testing.T) {
	tw := &testWriter{}
	e := GoogleEmitter{&Writer{Next: tw}}
	ts := time.Date(2024, time.December, 31, 23, 59, 59, 999999000, time.UTC)
	e.Emit(0, Debug, ts, "done\n")

	if len(tw.lines) != 1 {
		t.Fatalf("got writes %q, want exactly one", tw.lines)
	}
	re := regexp.MustCompile(`^D1231 23:59:59\.999999 +\d+ log_test\.go:\d+\] done\n$`)
	if !re.MatchString(tw.lines[0]) {
		t.Errorf("unexpected google line %q", tw.lines[0])
	}
}

func TestLevelFiltering(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}
	l.Debugf("hidden")
	l.Infof("shown %d", 1)
	l.Warningf("shown %d", 2)
	if diff := cmp.Diff([]string{"shown 1\n", "shown 2\n"}, tw.lines); diff != "" {
		t.Errorf("unexpected lines (-want +got):\n%s", diff)
	}

	l.SetLevel(Debug)
	if !l.IsLogging(Debug) {
		t.Errorf("IsLogging(Debug) = false after SetLevel(Debug)")
	}
}

func TestMultiEmitter(t *testing.T) {
	a, b := &testWriter{}, &testWriter{}
	m := MultiEmitter{&Writer{Next: a}, &Writer{Next: b}}
	m.Emit(0, Info, time.Now(), "boot %s", "done")
	for _, tw := range []*testWriter{a, b} {
		if diff := cmp.Diff([]string{"boot done\n"}, tw.lines); diff != "" {
			t.Errorf("unexpected lines (-want +got):\n%s", diff)
		}
	}
}

func TestForHart(t *testing.T) {
	tw := &testWriter{}
	old := Log()
	SetTarget(&Writer{Next: tw})
	defer SetTarget(old.Emitter)

	ForHart(7).Infof("parked")
	ForHart(2).Warningf("init %s failed", "ipi")
	want := []string{"hart 7: parked\n", "hart 2: init ipi failed\n"}
	if diff := cmp.Diff(want, tw.lines); diff != "" {
		t.Errorf("unexpected lines (-want +got):\n%s", diff)
	}
}

func TestRateLimitedLogger(t *testing.T) {
	tw := &testWriter{}
	l := RateLimitedLogger(&BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}, time.Hour)
	for i := 0; i < 10; i++ {
		l.Infof("spurious wake %d", i)
	}
	if diff := cmp.Diff([]string{"spurious wake 0\n"}, tw.lines); diff != "" {
		t.Errorf("unexpected lines (-want +got):\n%s", diff)
	}
}

func TestRateLimitedLoggerReportsSuppressed(t *testing.T) {
	tw := &testWriter{}
	l := RateLimitedLogger(&BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}, time.Hour)
	for i := 0; i < 3; i++ {
		l.Infof("spurious wake %d", i)
	}
	l.(*rateLimitedLogger).limit.SetLimit(rate.Inf)
	l.Infof("spurious wake %d", 3)
	want := []string{
		"spurious wake 0\n",
		"spurious wake 3 (2 similar messages suppressed)\n",
	}
	if diff := cmp.Diff(want, tw.lines); diff != "" {
		t.Errorf("unexpected lines (-want +got):\n%s", diff)
	}
}
