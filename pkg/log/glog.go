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
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// GoogleEmitter is a wrapper that emits logs in a format compatible with
// package github.com/golang/glog. Each line has the form
//
//	Lmmdd hh:mm:ss.uuuuuu pid file:line] msg
//
// where L is the severity letter and the pid column is padded to 7 columns
// as glog pads its thread ID.
type GoogleEmitter struct {
	// Emitter is the underlying emitter.
	Emitter
}

// glogSeverity maps a Level to its glog severity letter.
var glogSeverity = [...]byte{
	Warning: 'W',
	Info:    'I',
	Debug:   'D',
}

// glogTime is the time layout of the header.
const glogTime = "0102 15:04:05.000000"

var pid = fmt.Sprintf("%7d", os.Getpid())

// callerOf returns the "file:line" of the function skip frames above its
// caller, or "x:0" if the stack is not that deep.
func callerOf(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "x:0"
	}
	if slash := strings.LastIndexByte(file, '/'); slash >= 0 {
		file = file[slash+1:]
	}
	return file + ":" + strconv.Itoa(line)
}

// Emit emits the message, google-style.
func (g GoogleEmitter) Emit(depth int, level Level, timestamp time.Time, format string, args ...any) {
	b := make([]byte, 0, 128)
	if int(level) < len(glogSeverity) {
		b = append(b, glogSeverity[level])
	} else {
		b = append(b, '?')
	}
	b = timestamp.AppendFormat(b, glogTime)
	b = append(b, ' ')
	b = append(b, pid...)
	b = append(b, ' ')
	b = append(b, callerOf(depth+1)...)
	b = append(b, "] "...)
	b = fmt.Appendf(b, format, args...)
	if b[len(b)-1] != '\n' {
		b = append(b, '\n')
	}
	g.Emitter.Emit(depth+1, level, timestamp, "%s", b)
}
