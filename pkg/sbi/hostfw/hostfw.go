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

//go:build linux
// +build linux

// Package hostfw implements sbi.Firmware on a Linux host, so the kernel core
// can run inside the rvsim simulator. The console is a pair of file
// descriptors and shutdown exits the process.
package hostfw

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sys/unix"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/sbi"
)

// Firmware is a host-backed sbi.Firmware.
type Firmware struct {
	// console and input are the console file descriptors.
	console int
	input   int

	// deadline is the last armed timer deadline.
	deadline atomic.Uint64

	// inputClosed is set once input reads return end of file.
	inputClosed atomic.Bool

	// exit terminates the machine. It is unix.Exit outside of tests.
	exit func(code int)

	// timerLog is rate limited; the timer is re-armed on every tick.
	timerLog log.Logger
}

// New returns a firmware writing the console to console and reading it from
// input.
func New(console, input int) *Firmware {
	return &Firmware{
		console:  console,
		input:    input,
		exit:     unix.Exit,
		timerLog: log.BasicRateLimitedLogger(time.Second),
	}
}

// Call implements sbi.Firmware.Call.
func (f *Firmware) Call(which, arg0, arg1, arg2 uintptr) uintptr {
	switch which {
	case sbi.SetTimerID:
		f.deadline.Store(uint64(arg0))
		f.timerLog.Debugf("Timer armed for tick %d", arg0)
		return sbi.Success.Word()
	case sbi.ConsolePutcharID:
		return f.putchar(byte(arg0)).Word()
	case sbi.ConsoleGetcharID:
		return f.getchar()
	case sbi.ShutdownID:
		log.Infof("Shutdown requested, exiting")
		f.exit(0)
		return sbi.ErrFailed.Word()
	default:
		log.Debugf("Unsupported SBI call %d(%#x, %#x, %#x)", which, arg0, arg1, arg2)
		return sbi.ErrNotSupported.Word()
	}
}

// Idle implements sbi.Firmware.Idle. The host has no interrupts to wait for,
// so this just yields the CPU for a while.
func (f *Firmware) Idle() {
	ts := unix.NsecToTimespec(int64(10 * time.Millisecond))
	unix.Nanosleep(&ts, nil)
}

// Deadline returns the last armed timer deadline.
func (f *Firmware) Deadline() uint64 {
	return f.deadline.Load()
}

func (f *Firmware) putchar(c byte) sbi.ErrorCode {
	b := [1]byte{c}
	op := func() error {
		n, err := unix.Write(f.console, b[:])
		switch {
		case err == unix.EINTR || err == unix.EAGAIN:
			return err
		case err != nil:
			return backoff.Permanent(err)
		case n != 1:
			return backoff.Permanent(io.ErrShortWrite)
		}
		return nil
	}
	if err := backoff.Retry(op, writeBackOff()); err != nil {
		log.Debugf("Console write failed: %v", err)
		return sbi.ErrFailed
	}
	return sbi.Success
}

// writeBackOff bounds how long a full console may stall the machine.
func writeBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Microsecond
	b.MaxInterval = 10 * time.Millisecond
	b.MaxElapsedTime = time.Second
	return b
}

// getchar returns the next input byte, or -1 if none is pending.
func (f *Firmware) getchar() uintptr {
	none := ^uintptr(0)
	if f.inputClosed.Load() {
		return none
	}
	fds := []unix.PollFd{{Fd: int32(f.input), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	if err != nil || n == 0 || fds[0].Revents&(unix.POLLIN|unix.POLLHUP) == 0 {
		return none
	}
	var b [1]byte
	n, err = unix.Read(f.input, b[:])
	if n == 0 && err == nil {
		log.Infof("Console input closed")
		f.inputClosed.Store(true)
	}
	if err != nil || n != 1 {
		return none
	}
	return uintptr(b[0])
}

// InputClosed returns true once the console input has reached end of file.
func (f *Firmware) InputClosed() bool {
	return f.inputClosed.Load()
}
