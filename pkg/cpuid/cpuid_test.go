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

package cpuid

import (
	"testing"
)

var justI = &FeatureSet{
	XLEN: 64,
	Set: map[Feature]bool{
		RISCVFeatureI: true,
	}}

var justIandS = &FeatureSet{
	XLEN: 64,
	Set: map[Feature]bool{
		RISCVFeatureI: true,
		RISCVFeatureS: true,
	}}

func TestSubtract(t *testing.T) {
	if diff := justI.Subtract(justIandS); diff != nil {
		t.Errorf("Got %v is not subset of %v, want diff (%v) to be nil", justI, justIandS, diff)
	}

	if justIandS.Subtract(justI) == nil {
		t.Errorf("Got %v is a subset of %v, want diff to be nil", justI, justIandS)
	}
}

func TestHasFeature(t *testing.T) {
	if !justI.HasFeature(RISCVFeatureI) {
		t.Errorf("HasFeature failed, %v should contain %v", justI, RISCVFeatureI)
	}

	if justI.HasFeature(RISCVFeatureS) {
		t.Errorf("HasFeature failed, %v should not contain %v", justI, RISCVFeatureS)
	}
}

func TestFeatureFromString(t *testing.T) {
	f, ok := FeatureFromString("S")
	if f != RISCVFeatureS || !ok {
		t.Errorf("got %v want s", f)
	}

	f, ok = FeatureFromString("zicsr")
	if ok {
		t.Errorf("got %v want nothing", f)
	}
}

func TestParseISA(t *testing.T) {
	for _, tc := range []struct {
		isa     string
		want    string
		wantErr bool
	}{
		{isa: "rv64imafdcsu", want: "rv64acdfimsu"},
		{isa: "RV32IMAC", want: "rv32acim"},
		{isa: "rv64gc_zicsr_zifencei", want: "rv64acdfim"},
		{isa: "rv64ec", want: "rv64ce"},
		{isa: "x86_64", wantErr: true},
		{isa: "rv128i", wantErr: true},
		{isa: "rv64", wantErr: true},
		{isa: "rv64mac", wantErr: true},
		{isa: "rv64i9", wantErr: true},
	} {
		t.Run(tc.isa, func(t *testing.T) {
			fs, err := ParseISA(tc.isa)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseISA(%q) = %v, want error", tc.isa, fs)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseISA(%q) failed: %v", tc.isa, err)
			}
			if got := fs.String(); got != tc.want {
				t.Errorf("ParseISA(%q) = %s, want %s", tc.isa, got, tc.want)
			}
		})
	}
}

func TestSupportsPrivilege(t *testing.T) {
	for _, tc := range []struct {
		isa  string
		mode Privilege
		want bool
	}{
		{"rv64imac", PrivilegeMachine, true},
		{"rv64imac", PrivilegeSupervisor, false},
		{"rv64imac", PrivilegeUser, false},
		{"rv64imacu", PrivilegeUser, true},
		{"rv64imacsu", PrivilegeSupervisor, true},
		{"rv64imacsu", Privilege(2), false},
	} {
		fs, err := ParseISA(tc.isa)
		if err != nil {
			t.Fatalf("ParseISA(%q) failed: %v", tc.isa, err)
		}
		if got := fs.SupportsPrivilege(tc.mode); got != tc.want {
			t.Errorf("%s.SupportsPrivilege(%v) = %v, want %v", tc.isa, tc.mode, got, tc.want)
		}
	}
}

func TestPrivilegeFromString(t *testing.T) {
	for s, want := range map[string]Privilege{"M": PrivilegeMachine, "s": PrivilegeSupervisor, "U": PrivilegeUser} {
		got, err := PrivilegeFromString(s)
		if err != nil || got != want {
			t.Errorf("PrivilegeFromString(%q) = %v, %v; want %v", s, got, err, want)
		}
		if !got.Valid() {
			t.Errorf("%v.Valid() = false", got)
		}
	}
	if _, err := PrivilegeFromString("H"); err == nil {
		t.Errorf("PrivilegeFromString(H) succeeded")
	}
	if Privilege(2).Valid() {
		t.Errorf("Privilege(2).Valid() = true")
	}
}
