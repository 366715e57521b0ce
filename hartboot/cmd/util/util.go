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


// Package util groups a bunch of common helper functions used by commands.
package util

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gvisor.dev/hartboot/pkg/log"
)

// ErrorLogger is where error messages should be written to. These messages are
// consumed by the caller of hartboot, not the user.
var ErrorLogger io.Writer

// Infof writes message to log and stdout.
func Infof(format string, args ...any) {
	log.Infof(format, args...)
	fmt.Printf(format+"\n", args...)
}

// errorf logs error to internal log and also writes it to ErrorLogger in
// json format, if set.
func errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warningf("FATAL ERROR: %s", msg)
	if ErrorLogger == nil {
		return
	}
	type jsonError struct {
		Msg   string    `json:"msg"`
		Level string    `json:"level"`
		Time  time.Time `json:"time"`
	}
	b, err := json.Marshal(jsonError{Msg: msg, Level: "error", Time: time.Now()})
	if err != nil {
		log.Warningf("error marshaling error message: %v", err)
		return
	}
	if _, err := ErrorLogger.Write(append(b, '\n')); err != nil {
		log.Warningf("error writing to error log: %v", err)
	}
}

// Fatalf logs the same way as Errorf, writes a message to stderr and exits
// with status 128.
func Fatalf(format string, args ...any) {
	errorf(format, args...)
	// Also print to stderr.
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(128)
}

// DebugLogFile opens a log file using 'logPattern' as location. If
// 'logPattern' ends with '/', it's used as a directory with default file
// name. 'logPattern' can contain variables %TIMESTAMP% and %COMMAND% that
// are replaced with the current time and the command name.
func DebugLogFile(logPattern, command string, timestamp time.Time) (*os.File, error) {
	if strings.HasSuffix(logPattern, "/") {
		// Default format: <debug-log>/hartboot.log.<yyyymmdd-hhmmss.uuuuuu>.<command>.txt
		logPattern += "hartboot.log.%TIMESTAMP%.%COMMAND%.txt"
	}
	logPattern = strings.ReplaceAll(logPattern, "%TIMESTAMP%", timestamp.Format("20060102-150405.000000"))
	logPattern = strings.ReplaceAll(logPattern, "%COMMAND%", command)

	dir := filepath.Dir(logPattern)
	if err := os.MkdirAll(dir, 0775); err != nil {
		return nil, fmt.Errorf("error creating dir %q: %w", dir, err)
	}
	return os.OpenFile(logPattern, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0664)
}
