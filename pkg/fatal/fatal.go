// Copyright 2026 The rvos Authors.
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

// Package fatal is the kernel's last-resort failure path. Entering it prints
// a diagnostic on the SBI console and powers the machine off; nothing after
// it executes.
//
// The path is one-way: the first entry moves the kernel from Normal to Fatal.
// A failure while already Fatal (for example a panic while formatting the
// diagnostic) skips straight to the halt state.
package fatal

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"

	"rvos.dev/rvos/pkg/console"
	"rvos.dev/rvos/pkg/sbi"
)

// Location is a point in kernel source.
type Location struct {
	File string
	Line int
}

// Report describes an unrecoverable condition.
type Report struct {
	// Message is the panic value or explicit reason.
	Message string

	// Location is where the condition was raised, or nil if unknown.
	Location *Location
}

// entered is set on the first transition to Fatal.
var entered atomic.Bool

// Format renders r as the text printed on the console.
func Format(r Report) string {
	if r.Location != nil {
		return fmt.Sprintf("[kernel] panic occurred in file '%s' at line %d: %s\n", r.Location.File, r.Location.Line, r.Message)
	}
	return fmt.Sprintf("[kernel] panic occurred at an unknown location: %s\n", r.Message)
}

// Handle enters the fatal path with r. It never returns.
func Handle(r Report) {
	if !entered.CompareAndSwap(false, true) {
		sbi.Halt()
	}
	console.Print(Format(r))
	sbi.Shutdown()
}

// Panicf signals an unrecoverable condition at the caller's location. It
// never returns.
func Panicf(format string, v ...any) {
	r := Report{Message: fmt.Sprintf(format, v...)}
	if _, file, line, ok := runtime.Caller(1); ok {
		r.Location = &Location{File: file, Line: line}
	}
	Handle(r)
}

// Recover routes a Go panic in the current goroutine into the fatal path.
// It must be deferred directly:
//
//	defer fatal.Recover()
//
// It does nothing if the goroutine is not panicking.
func Recover() {
	v := recover()
	if v == nil {
		return
	}
	Handle(Report{Message: fmt.Sprint(v), Location: panicSite()})
}

// panicSite returns the location of the frame that called panic, if it is
// still on the stack.
func panicSite() *Location {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(1, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	sawPanic := false
	for {
		f, more := frames.Next()
		if f.Function == "runtime.gopanic" {
			sawPanic = true
		} else if sawPanic && !strings.HasPrefix(f.Function, "runtime.") {
			return &Location{File: f.File, Line: f.Line}
		}
		if !more {
			return nil
		}
	}
}
