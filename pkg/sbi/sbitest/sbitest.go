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

// Package sbitest provides a scripted firmware for tests of code that sits
// on top of package sbi.
package sbitest

import (
	"bytes"
	"runtime"
	"sync"

	"rvos.dev/rvos/pkg/sbi"
)

// Call records one environment call.
type Call struct {
	Which uintptr
	Arg0  uintptr
	Arg1  uintptr
	Arg2  uintptr
}

// Firmware is an sbi.Firmware that records every call.
//
// Requests that would stop the machine end the calling goroutine with
// runtime.Goexit instead, so tests run the code under test with Diverges.
type Firmware struct {
	mu sync.Mutex

	// Calls holds every call in issue order.
	Calls []Call

	// Console holds every byte written with console_putchar.
	Console bytes.Buffer

	// Input is consumed by console_getchar.
	Input []byte

	// Deadline is the last value passed to set_timer.
	Deadline uint64

	// RefuseShutdown makes shutdown return SBI_ERR_DENIED instead of
	// powering off.
	RefuseShutdown bool

	// PoweredOff is set when shutdown was honored.
	PoweredOff bool

	// Idles counts calls to Idle.
	Idles int
}

// Call implements sbi.Firmware.Call.
func (f *Firmware) Call(which, arg0, arg1, arg2 uintptr) uintptr {
	f.mu.Lock()
	f.Calls = append(f.Calls, Call{which, arg0, arg1, arg2})
	switch which {
	case sbi.SetTimerID:
		f.Deadline = uint64(arg0)
	case sbi.ConsolePutcharID:
		f.Console.WriteByte(byte(arg0))
	case sbi.ConsoleGetcharID:
		if len(f.Input) == 0 {
			f.mu.Unlock()
			return ^uintptr(0)
		}
		c := f.Input[0]
		f.Input = f.Input[1:]
		f.mu.Unlock()
		return uintptr(c)
	case sbi.ShutdownID:
		if f.RefuseShutdown {
			f.mu.Unlock()
			return sbi.ErrDenied.Word()
		}
		f.PoweredOff = true
		f.mu.Unlock()
		runtime.Goexit()
	default:
		f.mu.Unlock()
		return sbi.ErrNotSupported.Word()
	}
	f.mu.Unlock()
	return 0
}

// Idle implements sbi.Firmware.Idle. The machine never wakes up again.
func (f *Firmware) Idle() {
	f.mu.Lock()
	f.Idles++
	f.mu.Unlock()
	runtime.Goexit()
}

// Output returns the console contents.
func (f *Firmware) Output() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Console.String()
}

// Cleaner is implemented by testing.T and testing.B.
type Cleaner interface {
	Cleanup(func())
}

// Install installs a new Firmware for the duration of a test.
func Install(t Cleaner) *Firmware {
	f := &Firmware{}
	old := sbi.Install(f)
	t.Cleanup(func() { sbi.Install(old) })
	return f
}

// Diverges runs fn on a new goroutine and reports whether it failed to
// return normally, that is, whether it halted or powered off.
func Diverges(fn func()) bool {
	returned := false
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
		returned = true
	}()
	<-done
	return !returned
}
