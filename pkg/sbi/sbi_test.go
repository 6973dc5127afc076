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

package sbi_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"rvos.dev/rvos/pkg/errors/kerr"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/sbi"
	"rvos.dev/rvos/pkg/sbi/sbitest"
)

func TestTypedWrappers(t *testing.T) {
	fw := sbitest.Install(t)

	sbi.SetTimer(0x1234)
	sbi.ConsolePutchar('o')
	sbi.ConsolePutchar('k')

	want := []sbitest.Call{
		{Which: sbi.SetTimerID, Arg0: 0x1234},
		{Which: sbi.ConsolePutcharID, Arg0: 'o'},
		{Which: sbi.ConsolePutcharID, Arg0: 'k'},
	}
	if diff := cmp.Diff(want, fw.Calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if fw.Deadline != 0x1234 {
		t.Errorf("deadline = %#x, want 0x1234", fw.Deadline)
	}
	if got := fw.Output(); got != "ok" {
		t.Errorf("console = %q, want %q", got, "ok")
	}
}

func TestConsoleGetchar(t *testing.T) {
	fw := sbitest.Install(t)
	fw.Input = []byte("a")

	if c, ok := sbi.ConsoleGetchar(); !ok || c != 'a' {
		t.Errorf("ConsoleGetchar() = %q, %t, want 'a', true", c, ok)
	}
	if c, ok := sbi.ConsoleGetchar(); ok {
		t.Errorf("ConsoleGetchar() = %q, true on empty input", c)
	}
}

func TestCallReturnsRawResult(t *testing.T) {
	sbitest.Install(t)
	if got := sbi.ErrorCode(sbi.Call(0x42, 1, 2, 3)); got != sbi.ErrNotSupported {
		t.Errorf("Call(unknown) = %v, want %v", got, sbi.ErrNotSupported)
	}
}

func TestShutdownPowersOff(t *testing.T) {
	fw := sbitest.Install(t)

	after := false
	if !sbitest.Diverges(func() {
		sbi.Shutdown()
		after = true
	}) {
		t.Fatalf("Shutdown returned")
	}
	if after {
		t.Errorf("code after Shutdown executed")
	}
	if !fw.PoweredOff {
		t.Errorf("firmware shutdown was not requested")
	}
	if fw.Idles != 0 {
		t.Errorf("halted %d times after an honored shutdown", fw.Idles)
	}
}

func TestShutdownRefusedHalts(t *testing.T) {
	log.SetTestTarget(t)
	fw := sbitest.Install(t)
	fw.RefuseShutdown = true

	after := false
	if !sbitest.Diverges(func() {
		sbi.Shutdown()
		after = true
	}) {
		t.Fatalf("Shutdown returned after firmware refused")
	}
	if after {
		t.Errorf("code after Shutdown executed")
	}
	if fw.PoweredOff {
		t.Errorf("PoweredOff set although firmware refused")
	}
	if fw.Idles == 0 {
		t.Errorf("refused shutdown did not enter the halt state")
	}
	if got := fw.Calls[len(fw.Calls)-1].Which; got != sbi.ShutdownID {
		t.Errorf("last call = %d, want shutdown", got)
	}
}

func TestErrorCode(t *testing.T) {
	for _, tc := range []struct {
		code sbi.ErrorCode
		name string
		err  error
	}{
		{sbi.Success, "SBI_SUCCESS", nil},
		{sbi.ErrFailed, "SBI_ERR_FAILED", kerr.EIO},
		{sbi.ErrNotSupported, "SBI_ERR_NOT_SUPPORTED", kerr.ENOSYS},
		{sbi.ErrInvalidParam, "SBI_ERR_INVALID_PARAM", kerr.EINVAL},
		{sbi.ErrDenied, "SBI_ERR_DENIED", kerr.EPERM},
		{sbi.ErrInvalidAddress, "SBI_ERR_INVALID_ADDRESS", kerr.EFAULT},
		{sbi.ErrAlreadyAvailable, "SBI_ERR_ALREADY_AVAILABLE", kerr.EEXIST},
	} {
		if got := tc.code.String(); got != tc.name {
			t.Errorf("%d.String() = %q, want %q", int64(tc.code), got, tc.name)
		}
		if got := tc.code.Err(); got != tc.err {
			t.Errorf("%v.Err() = %v, want %v", tc.code, got, tc.err)
		}
		if got := sbi.ErrorCode(tc.code.Word()); got != tc.code {
			t.Errorf("ErrorCode(%v.Word()) = %v", tc.code, got)
		}
	}
}
