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

// Package sbierr contains the SBI error codes exported as error interface
// pointers. This allows for fast comparison with errors.Is while keeping the
// numeric code that is returned to supervisor software.
package sbierr

import (
	"errors"
)

// Code is a numeric SBI error code. Zero is success; everything else is
// negative.
type Code int

// Error represents an SBI error code with a descriptive message.
type Error struct {
	code    Code
	message string
}

// New creates a new *Error.
func New(code Code, message string) *Error {
	return &Error{
		code:    code,
		message: message,
	}
}

// Error implements error.Error.
func (e *Error) Error() string { return e.message }

// Code returns the underlying numeric code.
func (e *Error) Code() Code { return e.code }

// Standard SBI errors, as returned in a0 by the SBI calling convention.
var (
	ErrFailed           = New(-1, "failed")
	ErrNotSupported     = New(-2, "not supported")
	ErrInvalidParam     = New(-3, "invalid parameter")
	ErrDenied           = New(-4, "denied")
	ErrInvalidAddress   = New(-5, "invalid address")
	ErrAlreadyAvailable = New(-6, "already available")
	ErrAlreadyStarted   = New(-7, "already started")
	ErrAlreadyStopped   = New(-8, "already stopped")
	ErrNoShmem          = New(-9, "shared memory not available")
	ErrInvalidState     = New(-10, "invalid state")
	ErrBadRange         = New(-11, "bad range")
	ErrTimeout          = New(-12, "timeout")
	ErrIO               = New(-13, "input/output error")
)

// Firmware-internal errors. These never leave the firmware.
var (
	ENODEV    = New(-1000, "no such device")
	ENOSYS    = New(-1001, "function not implemented")
	ETIMEDOUT = New(-1002, "timed out")
	EIO       = New(-1003, "I/O error")
	EILL      = New(-1004, "illegal instruction")
	ENOSPC    = New(-1005, "no space left")
	ENOMEM    = New(-1006, "out of memory")
	EUNKNOWN  = New(-1007, "unknown error")
	ENOENT    = New(-1008, "no such entry")
)

var byCode = func() map[Code]*Error {
	m := make(map[Code]*Error)
	for _, e := range []*Error{
		ErrFailed, ErrNotSupported, ErrInvalidParam, ErrDenied,
		ErrInvalidAddress, ErrAlreadyAvailable, ErrAlreadyStarted,
		ErrAlreadyStopped, ErrNoShmem, ErrInvalidState, ErrBadRange,
		ErrTimeout, ErrIO,
		ENODEV, ENOSYS, ETIMEDOUT, EIO, EILL, ENOSPC, ENOMEM, EUNKNOWN, ENOENT,
	} {
		m[e.code] = e
	}
	return m
}()

// FromCode returns the *Error for code. It returns nil for zero and EUNKNOWN
// for codes that are not defined.
func FromCode(code Code) *Error {
	if code == 0 {
		return nil
	}
	if e, ok := byCode[code]; ok {
		return e
	}
	return EUNKNOWN
}

// ToCode converts err into the code that would be returned to the caller of
// an SBI function. Errors that do not wrap an *Error map to ErrFailed.
func ToCode(err error) Code {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ErrFailed.code
}
