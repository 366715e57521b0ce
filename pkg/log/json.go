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


package log

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// jsonLog is one line of JSONEmitter output. Messages logged through
// ForHart carry the hart in its own field instead of the message prefix.
type jsonLog struct {
	Msg    string    `json:"msg"`
	Level  Level     `json:"level"`
	Time   time.Time `json:"time"`
	Caller string    `json:"caller,omitempty"`
	Hart   *uint32   `json:"hart,omitempty"`
}

// MarshalJSON implements json.Marshaler.MarshalJSON.
func (l Level) MarshalJSON() ([]byte, error) {
	if l > Debug {
		return nil, fmt.Errorf("unknown level %v", l)
	}
	return []byte(`"` + strings.ToLower(l.String()) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.UnmarshalJSON. It can unmarshal
// from both string names and integers.
func (l *Level) UnmarshalJSON(b []byte) error {
	s := string(b)
	for lv := Warning; lv <= Debug; lv++ {
		if s == strconv.Itoa(int(lv)) || s == `"`+strings.ToLower(lv.String())+`"` {
			*l = lv
			return nil
		}
	}
	return fmt.Errorf("unknown level %q", s)
}

// splitHart removes a "hart N: " prefix from msg.
func splitHart(msg string) (*uint32, string) {
	rest, ok := strings.CutPrefix(msg, "hart ")
	if !ok {
		return nil, msg
	}
	num, tail, ok := strings.Cut(rest, ": ")
	if !ok {
		return nil, msg
	}
	id, err := strconv.ParseUint(num, 10, 32)
	if err != nil {
		return nil, msg
	}
	h := uint32(id)
	return &h, tail
}

// JSONEmitter logs messages in json format.
type JSONEmitter struct {
	*Writer
}

// Emit implements Emitter.Emit.
func (e JSONEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	j := jsonLog{
		Level: level,
		Time:  timestamp,
	}
	j.Hart, j.Msg = splitHart(fmt.Sprintf(format, v...))
	j.Caller = callerOf(depth + 1)
	b, err := json.Marshal(j)
	if err != nil {
		panic(err)
	}
	e.Writer.Write(append(b, '\n'))
}
