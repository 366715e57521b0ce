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


// Package config provides basic infrastructure to set configuration settings
// for hartboot. Each setting that can be changed from the command line is
// declared as a flag and a field of Config, tied together by the field's
// `flag` tag.
package config

import (
	"fmt"
	"time"

	"gvisor.dev/hartboot/pkg/log"
	"gvisor.dev/hartboot/pkg/sim"
)

// Config holds configuration that is shared by every hartboot command.
type Config struct {
	// RootDir is the directory where boot reports are stored.
	RootDir string `flag:"root"`

	// LogFilename is the filename to log to, if not empty.
	LogFilename string `flag:"log"`

	// LogFormat is the log format.
	LogFormat string `flag:"log-format"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug"`

	// DebugLog is an additional log file for debug output. Unlike
	// LogFilename, the text "%COMMAND%" is replaced with the command name.
	DebugLog string `flag:"debug-log"`

	// DebugLogFormat is the log format for DebugLog.
	DebugLogFormat string `flag:"debug-log-format"`

	// AlsoLogToStderr allows to send log messages to stderr.
	AlsoLogToStderr bool `flag:"alsologtostderr"`

	// Timeout bounds a single boot episode. Harts that have not left the
	// firmware when it expires are reported as hung.
	Timeout time.Duration `flag:"timeout"`

	// PinCPUs pins each simulated hart to a host CPU, overriding the
	// platform description.
	PinCPUs bool `flag:"pin-cpus"`

	// ExitAfterBoot runs firmware teardown on every hart that reaches the
	// next stage, overriding the platform description.
	ExitAfterBoot bool `flag:"exit-after-boot"`
}

func (c *Config) validate() error {
	if err := validateLogFormat(c.LogFormat); err != nil {
		return fmt.Errorf("--log-format: %w", err)
	}
	if err := validateLogFormat(c.DebugLogFormat); err != nil {
		return fmt.Errorf("--debug-log-format: %w", err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

func validateLogFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid log format %q, must be text or json", format)
	}
}

// Apply applies the settings in c that override the platform description.
func (c *Config) Apply(d *sim.Description) {
	if c.PinCPUs {
		d.PinCPUs = true
	}
	if c.ExitAfterBoot {
		d.ExitAfterBoot = true
	}
}

// Log logs important aspects of the configuration to the global logger.
func (c *Config) Log() {
	log.Infof("Config:")
	log.Infof("\t\tRootDir: %s", c.RootDir)
	log.Infof("\t\tTimeout: %v", c.Timeout)
	log.Infof("\t\tPinCPUs: %t", c.PinCPUs)
	log.Infof("\t\tExitAfterBoot: %t", c.ExitAfterBoot)
	if log.IsLogging(log.Debug) {
		log.Debugf("\t\tFlags: %v", c.ToFlags())
	}
}
