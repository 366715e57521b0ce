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
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// Tests that Level can marshal/unmarshal properly.
func TestLevelMarshal(t *testing.T) {
	lvs := []Level{Warning, Info, Debug}
	for _, lv := range lvs {
		bs, err := lv.MarshalJSON()
		if err != nil {
			t.Errorf("error marshaling %v: %v", lv, err)
		}
		var lv2 Level
		if err := lv2.UnmarshalJSON(bs); err != nil {
			t.Errorf("error unmarshaling %v: %v", bs, err)
		}
		if lv != lv2 {
			t.Errorf("marshal/unmarshal level got %v wanted %v", lv2, lv)
		}
	}
}

// Test that integers can be properly unmarshaled.
func TestUnmarshalFromInt(t *testing.T) {
	tcs := []struct {
		i    int
		want Level
	}{
		{0, Warning},
		{1, Info},
		{2, Debug},
	}

	for _, tc := range tcs {
		j, err := json.Marshal(tc.i)
		if err != nil {
			t.Errorf("error marshaling %v: %v", tc.i, err)
		}
		var lv Level
		if err := lv.UnmarshalJSON(j); err != nil {
			t.Errorf("error unmarshaling %v: %v", j, err)
		}
		if lv != tc.want {
			t.Errorf("marshal/unmarshal %v got %v want %v", tc.i, lv, tc.want)
		}
	}
}

func TestJSONEmitter(t *testing.T) {
	ts := time.Date(2024, time.March, 7, 9, 5, 3, 0, time.UTC)
	for _, tc := range []struct {
		name   string
		format string
		v      []any
		msg    string
		hart   *uint32
	}{
		{
			name:   "plain",
			format: "cold boot done in %v",
			v:      []any{time.Millisecond},
			msg:    "cold boot done in 1ms",
		},
		{
			name:   "hart",
			format: "hart %d: running",
			v:      []any{1},
			msg:    "running",
			hart:   func() *uint32 { h := uint32(1); return &h }(),
		},
		{
			name:   "not a hart",
			format: "hart x: running",
			msg:    "hart x: running",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tw := &testWriter{}
			e := JSONEmitter{&Writer{Next: tw}}
			e.Emit(0, Info, ts, tc.format, tc.v...)

			if len(tw.lines) != 1 || !strings.HasSuffix(tw.lines[0], "\n") {
				t.Fatalf("got writes %q, want one newline-terminated record", tw.lines)
			}
			var got jsonLog
			if err := json.Unmarshal([]byte(tw.lines[0]), &got); err != nil {
				t.Fatalf("unmarshal %q: %v", tw.lines[0], err)
			}
			if !strings.HasPrefix(got.Caller, "json_test.go:") {
				t.Errorf("caller = %q, want json_test.go:N", got.Caller)
			}
			got.Caller = ""
			want := jsonLog{Msg: tc.msg, Level: Info, Time: ts, Hart: tc.hart}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("unexpected log line (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLevelMarshalNames(t *testing.T) {
	b, err := json.Marshal([]Level{Warning, Info, Debug})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), `["warning","info","debug"]`; got != want {
		t.Errorf("json.Marshal(levels) = %s, want %s", got, want)
	}
	if _, err := Level(7).MarshalJSON(); err == nil {
		t.Errorf("MarshalJSON of an invalid level succeeded")
	}
}
