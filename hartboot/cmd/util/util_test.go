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


package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDebugLogFile(t *testing.T) {
	ts := time.Date(2026, 10, 19, 8, 30, 0, 123456000, time.UTC)
	for _, tc := range []struct {
		name    string
		pattern string
		want    string
	}{
		{
			name:    "directory",
			pattern: "logs/",
			want:    "logs/hartboot.log.20261019-083000.123456.boot.txt",
		},
		{
			name:    "variables",
			pattern: "out/%COMMAND%-%TIMESTAMP%.log",
			want:    "out/boot-20261019-083000.123456.log",
		},
		{
			name:    "plain",
			pattern: "debug.log",
			want:    "debug.log",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			f, err := DebugLogFile(filepath.Join(dir, tc.pattern)+trailingSlash(tc.pattern), "boot", ts)
			if err != nil {
				t.Fatalf("DebugLogFile() failed: %v", err)
			}
			defer f.Close()
			if _, err := os.Stat(filepath.Join(dir, tc.want)); err != nil {
				t.Errorf("log file not created: %v", err)
			}
		})
	}
}

// trailingSlash restores the slash that filepath.Join strips.
func trailingSlash(p string) string {
	if len(p) > 0 && p[len(p)-1] == '/' {
		return "/"
	}
	return ""
}
