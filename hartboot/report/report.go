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


// Package report stores the results of boot episodes under a root
// directory, one subdirectory per report.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"gvisor.dev/hartboot/pkg/cleanup"
	"gvisor.dev/hartboot/pkg/log"
	"gvisor.dev/hartboot/pkg/sim"
)

const (
	// reportFilename is the name of the report file relative to the report
	// directory.
	reportFilename = "report.json"

	// reportLockFilename is the name of a lock file used to serialize
	// access to the report file.
	reportLockFilename = "report.lock"
)

// ErrExist is returned by Save if a report with the same ID exists.
var ErrExist = errors.New("report already exists")

var idRegex = regexp.MustCompile(`^[\w+.-]+$`)

// ValidateID validates the report id. An id names exactly one directory
// entry below the root, so "." and ".." are rejected.
func ValidateID(id string) error {
	if !idRegex.MatchString(id) || id == "." || id == ".." || filepath.Base(id) != id {
		return fmt.Errorf("invalid report id: %v", id)
	}
	return nil
}

// reportDir returns the directory of report id, which must lie directly
// below rootDir.
func reportDir(rootDir, id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	dir := filepath.Join(rootDir, id)
	rel, err := filepath.Rel(rootDir, dir)
	if err != nil || rel != id {
		return "", fmt.Errorf("report %q escapes root dir %q", id, rootDir)
	}
	return dir, nil
}

// Report is a saved boot episode.
type Report struct {
	// ID is the report's unique identifier.
	ID string `json:"id"`

	// Description is the path of the platform description that was booted.
	Description string `json:"description,omitempty"`

	// Created is the time the report was saved.
	Created time.Time `json:"created"`

	// Flags are the non-default flags the episode ran with.
	Flags []string `json:"flags,omitempty"`

	Result *sim.Result `json:"result"`
}

// Save writes r under rootDir. It fails with ErrExist if a report with the
// same ID already exists.
func Save(rootDir string, r *Report) error {
	log.Debugf("Save report %q in root dir: %s", r.ID, rootDir)
	dir, err := reportDir(rootDir, r.ID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(dir, reportFilename)); err == nil {
		return fmt.Errorf("report %q: %w", r.ID, ErrExist)
	}

	unlock, err := lockReport(dir)
	if err != nil {
		return err
	}
	defer unlock()

	// Remove the report directory if anything below fails.
	cu := cleanup.Make(func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warningf("Failed to remove report directory %q: %v", dir, err)
		}
	})
	defer cu.Clean()

	// Check again under the lock.
	if _, err := os.Stat(filepath.Join(dir, reportFilename)); err == nil {
		cu.Release()
		return fmt.Errorf("report %q: %w", r.ID, ErrExist)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling report: %w", err)
	}
	tmp := filepath.Join(dir, reportFilename+".tmp")
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, reportFilename)); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	cu.Release()
	return nil
}

// Load loads the report with the given id. id may be an abbreviation of the
// full report id, in which case Load loads the report to which id
// unambiguously refers. Returns an error satisfying errors.Is(err,
// os.ErrNotExist) if the report doesn't exist.
func Load(rootDir, id string) (*Report, error) {
	log.Debugf("Load report %q %q", rootDir, id)
	if err := ValidateID(id); err != nil {
		return nil, fmt.Errorf("error validating id: %w", err)
	}

	dir, err := findReportDir(rootDir, id)
	if err != nil {
		// Preserve error so that callers can distinguish 'not found' errors.
		return nil, err
	}

	// Lock the report to prevent a concurrent Save from being observed half
	// written.
	unlock, err := lockReport(dir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	f := filepath.Join(dir, reportFilename)
	data, err := os.ReadFile(f)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("error reading report file %q: %w", f, err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("error unmarshaling report from %q: %w", f, err)
	}
	return &r, nil
}

func findReportDir(rootDir, partialID string) (string, error) {
	// Check whether the id fully specifies an existing report.
	dir, err := reportDir(rootDir, partialID)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	}

	// Now see whether id could be an abbreviation of exactly 1 of the report
	// ids. If id is ambiguous it is an error.
	match := ""
	ids, err := List(rootDir)
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		if strings.HasPrefix(id, partialID) {
			if match != "" {
				return "", fmt.Errorf("id %q is ambiguous and could refer to multiple reports: %q, %q", partialID, match, id)
			}
			match = id
		}
	}
	if match == "" {
		return "", fmt.Errorf("report %q: %w", partialID, os.ErrNotExist)
	}
	log.Debugf("abbreviated id %q resolves to full id %q", partialID, match)
	return filepath.Join(rootDir, match), nil
}

// List returns all report ids in the given root directory, sorted. A root
// directory that does not exist holds no reports.
func List(rootDir string) ([]string, error) {
	log.Debugf("List reports %q", rootDir)
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ReadDir(%s) failed: %w", rootDir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Delete removes the report with the given id.
func Delete(rootDir, id string) error {
	log.Debugf("Delete report %q %q", rootDir, id)
	dir, err := reportDir(rootDir, id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); err != nil {
		return err
	}
	unlock, err := lockReport(dir)
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("error removing report %q: %w", id, err)
	}
	return nil
}

// lockReport takes a file lock on the lock file in the given report
// directory, creating the directory if needed.
func lockReport(dir string) (func() error, error) {
	if err := os.MkdirAll(dir, 0711); err != nil {
		return nil, fmt.Errorf("error creating report directory %q: %w", dir, err)
	}
	f := filepath.Join(dir, reportLockFilename)
	l := flock.NewFlock(f)
	if err := l.Lock(); err != nil {
		return nil, fmt.Errorf("error acquiring lock on report lock file %q: %w", f, err)
	}
	return l.Unlock, nil
}
