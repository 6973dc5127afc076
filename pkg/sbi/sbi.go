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

// Package sbi is the kernel's only path to the supervisor execution
// environment (SBI firmware such as RustSBI or OpenSBI).
//
// Calls use the legacy SBI convention: the function selector in a7, a6
// fixed at zero, up to three arguments in a0-a2 and the result returned in
// a0. The raw ecall is confined to ecall_riscv64.s; everything else in the
// kernel goes through the typed wrappers below.
package sbi

import (
	"fmt"

	"rvos.dev/rvos/pkg/errors/kerr"
	"rvos.dev/rvos/pkg/log"
)

// Legacy SBI function selectors.
const (
	SetTimerID       = 0
	ConsolePutcharID = 1
	ConsoleGetcharID = 2
	ShutdownID       = 8
)

// Firmware is the execution environment beneath the kernel.
type Firmware interface {
	// Call issues one synchronous environment call and returns the raw
	// value firmware left in a0.
	Call(which, arg0, arg1, arg2 uintptr) uintptr

	// Idle parks the hart until the next interrupt. It may return.
	Idle()
}

// firmware is the installed Firmware. It defaults to Native.
var firmware = Native()

// Install replaces the firmware used by this package and returns the
// previous one. It is called once during boot, or by tests.
func Install(f Firmware) Firmware {
	old := firmware
	firmware = f
	return old
}

// Call issues one environment call. There are no retries; the result is
// whatever firmware returns.
func Call(which, arg0, arg1, arg2 uintptr) uintptr {
	return firmware.Call(which, arg0, arg1, arg2)
}

// SetTimer programs the next timer interrupt to fire when the time CSR
// reaches deadline. The previous deadline, if any, is replaced.
func SetTimer(deadline uint64) {
	Call(SetTimerID, uintptr(deadline), 0, 0)
}

// ConsolePutchar writes c to the debug console. It blocks while firmware
// applies backpressure.
func ConsolePutchar(c byte) {
	Call(ConsolePutcharID, uintptr(c), 0, 0)
}

// ConsoleGetchar reads one byte from the debug console. ok is false if no
// input is pending.
func ConsoleGetchar() (c byte, ok bool) {
	ret := int64(Call(ConsoleGetcharID, 0, 0, 0))
	if ret < 0 {
		return 0, false
	}
	return byte(ret), true
}

// Shutdown asks firmware to power off the machine. It never returns: if the
// request is refused, unsupported, or firmware returns for any other reason,
// the hart enters Halt.
func Shutdown() {
	ret := ErrorCode(Call(ShutdownID, 0, 0, 0))
	log.Warningf("Firmware returned from shutdown (%v), halting", ret)
	Halt()
}

// Halt is the irrecoverable halt state. The hart idles forever; interrupts
// may wake it, but control never returns to the caller.
func Halt() {
	for {
		firmware.Idle()
	}
}

// ErrorCode is a standard SBI error value as returned in a0.
type ErrorCode int64

// Standard SBI error codes.
const (
	Success             ErrorCode = 0
	ErrFailed           ErrorCode = -1
	ErrNotSupported     ErrorCode = -2
	ErrInvalidParam     ErrorCode = -3
	ErrDenied           ErrorCode = -4
	ErrInvalidAddress   ErrorCode = -5
	ErrAlreadyAvailable ErrorCode = -6
)

// Word returns e as a register value.
func (e ErrorCode) Word() uintptr {
	return uintptr(e)
}

// String implements fmt.Stringer.String.
func (e ErrorCode) String() string {
	switch e {
	case Success:
		return "SBI_SUCCESS"
	case ErrFailed:
		return "SBI_ERR_FAILED"
	case ErrNotSupported:
		return "SBI_ERR_NOT_SUPPORTED"
	case ErrInvalidParam:
		return "SBI_ERR_INVALID_PARAM"
	case ErrDenied:
		return "SBI_ERR_DENIED"
	case ErrInvalidAddress:
		return "SBI_ERR_INVALID_ADDRESS"
	case ErrAlreadyAvailable:
		return "SBI_ERR_ALREADY_AVAILABLE"
	default:
		return fmt.Sprintf("SBI error %d", int64(e))
	}
}

// Err converts e to a kernel error. Success maps to nil.
func (e ErrorCode) Err() error {
	switch e {
	case Success:
		return nil
	case ErrNotSupported:
		return kerr.ENOSYS
	case ErrInvalidParam:
		return kerr.EINVAL
	case ErrDenied:
		return kerr.EPERM
	case ErrInvalidAddress:
		return kerr.EFAULT
	case ErrAlreadyAvailable:
		return kerr.EEXIST
	default:
		return kerr.EIO
	}
}
