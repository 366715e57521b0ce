// Copyright 2019 The gVisor Authors.
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

// Package cpuid provides basic functionality for describing the ISA
// extensions and privilege modes implemented by a RISC-V hart.
//
// To use FeatureSets, one should start with an ISA string (as found in a
// platform description or the misa CSR) and then test for features as
// desired. For example, a hart can only enter supervisor mode if it
// implements the S extension:
//
//	fs, err := cpuid.ParseISA("rv64imafdcsu")
//	if err == nil && fs.SupportsPrivilege(cpuid.PrivilegeSupervisor) {
//		...
//	}
package cpuid

import (
	"fmt"
	"sort"
	"strings"
)

// Feature is a unique identifier for a particular single-letter ISA
// extension. Features are numbered by their bit position in misa, so 'A' is
// 0 and 'Z' is 25.
type Feature int

// Single-letter extensions that this package knows by name.
const (
	RISCVFeatureA Feature = iota
	RISCVFeatureB
	RISCVFeatureC
	RISCVFeatureD
	RISCVFeatureE
	RISCVFeatureF
	RISCVFeatureG
	RISCVFeatureH
	RISCVFeatureI
	RISCVFeatureJ
	RISCVFeatureK
	RISCVFeatureL
	RISCVFeatureM
	RISCVFeatureN
	RISCVFeatureO
	RISCVFeatureP
	RISCVFeatureQ
	RISCVFeatureR
	RISCVFeatureS
	RISCVFeatureT
	RISCVFeatureU
	RISCVFeatureV
	RISCVFeatureW
	RISCVFeatureX
	RISCVFeatureY
	RISCVFeatureZ

	numFeatures
)

// String returns the lowercase extension letter.
func (f Feature) String() string {
	if f < 0 || f >= numFeatures {
		return fmt.Sprintf("<cpuflag %d>", int(f))
	}
	return string(rune('a' + int(f)))
}

// FeatureFromString returns the Feature associated with the given extension
// letter.
func FeatureFromString(s string) (Feature, bool) {
	if len(s) != 1 {
		return 0, false
	}
	c := s[0] | 0x20 // Fold to lowercase.
	if c < 'a' || c > 'z' {
		return 0, false
	}
	return Feature(c - 'a'), true
}

// Privilege is a RISC-V privilege mode, encoded as in mstatus.MPP.
type Privilege uint8

// Privilege modes.
const (
	PrivilegeUser       Privilege = 0
	PrivilegeSupervisor Privilege = 1
	PrivilegeMachine    Privilege = 3
)

// Valid returns true if p is one of the modes a next boot stage may run in.
func (p Privilege) Valid() bool {
	switch p {
	case PrivilegeUser, PrivilegeSupervisor, PrivilegeMachine:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (p Privilege) String() string {
	switch p {
	case PrivilegeUser:
		return "U"
	case PrivilegeSupervisor:
		return "S"
	case PrivilegeMachine:
		return "M"
	default:
		return fmt.Sprintf("Privilege(%d)", uint8(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Privilege) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Privilege) UnmarshalText(b []byte) error {
	v, err := PrivilegeFromString(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// PrivilegeFromString parses "M", "S" or "U" (case-insensitive).
func PrivilegeFromString(s string) (Privilege, error) {
	switch strings.ToUpper(s) {
	case "M":
		return PrivilegeMachine, nil
	case "S":
		return PrivilegeSupervisor, nil
	case "U":
		return PrivilegeUser, nil
	default:
		return 0, fmt.Errorf("unknown privilege mode %q", s)
	}
}

// FeatureSet is a set of Features for a hart.
type FeatureSet struct {
	// XLEN is the register width, 32 or 64.
	XLEN int

	// Set is the set of features that are enabled in this FeatureSet.
	Set map[Feature]bool
}

// ParseISA parses an ISA string of the form "rv64imafdc". Multi-letter
// extensions introduced by an underscore (e.g. "_zicsr") are accepted and
// ignored. 'g' expands to "imafd".
func ParseISA(isa string) (*FeatureSet, error) {
	s := strings.ToLower(strings.TrimSpace(isa))
	if !strings.HasPrefix(s, "rv") {
		return nil, fmt.Errorf("ISA string %q does not start with rv", isa)
	}
	s = s[2:]
	fs := &FeatureSet{Set: make(map[Feature]bool)}
	switch {
	case strings.HasPrefix(s, "32"):
		fs.XLEN = 32
	case strings.HasPrefix(s, "64"):
		fs.XLEN = 64
	default:
		return nil, fmt.Errorf("ISA string %q has no valid XLEN", isa)
	}
	s = s[2:]
	if i := strings.IndexByte(s, '_'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return nil, fmt.Errorf("ISA string %q has no base extension", isa)
	}
	for _, c := range s {
		f, ok := FeatureFromString(string(c))
		if !ok {
			return nil, fmt.Errorf("ISA string %q has invalid extension %q", isa, c)
		}
		if f == RISCVFeatureG {
			for _, g := range []Feature{RISCVFeatureI, RISCVFeatureM, RISCVFeatureA, RISCVFeatureF, RISCVFeatureD} {
				fs.Set[g] = true
			}
			continue
		}
		fs.Set[f] = true
	}
	if !fs.Set[RISCVFeatureI] && !fs.Set[RISCVFeatureE] {
		return nil, fmt.Errorf("ISA string %q has neither I nor E base", isa)
	}
	return fs, nil
}

// HasFeature tests whether or not a feature is in the given feature set.
func (fs *FeatureSet) HasFeature(feature Feature) bool {
	return fs.Set[feature]
}

// Add adds a feature to the set.
func (fs *FeatureSet) Add(feature Feature) {
	fs.Set[feature] = true
}

// Remove removes a feature from the set.
func (fs *FeatureSet) Remove(feature Feature) {
	delete(fs.Set, feature)
}

// Subtract returns the features present in fs that are not present in other.
// If all features in fs are present in other, Subtract returns nil.
func (fs *FeatureSet) Subtract(other *FeatureSet) map[Feature]bool {
	var diff map[Feature]bool
	for f, present := range fs.Set {
		if present && !other.HasFeature(f) {
			if diff == nil {
				diff = make(map[Feature]bool)
			}
			diff[f] = true
		}
	}
	return diff
}

// SupportsPrivilege returns true if a hart with this feature set can run
// code in mode p. Machine mode is always implemented; supervisor and user
// mode need the S and U extensions respectively.
func (fs *FeatureSet) SupportsPrivilege(p Privilege) bool {
	switch p {
	case PrivilegeMachine:
		return true
	case PrivilegeSupervisor:
		return fs.HasFeature(RISCVFeatureS)
	case PrivilegeUser:
		return fs.HasFeature(RISCVFeatureU)
	default:
		return false
	}
}

// String returns the canonical ISA string, with extensions in misa order.
func (fs *FeatureSet) String() string {
	var letters []string
	for f, present := range fs.Set {
		if present {
			letters = append(letters, f.String())
		}
	}
	sort.Strings(letters)
	return fmt.Sprintf("rv%d%s", fs.XLEN, strings.Join(letters, ""))
}
