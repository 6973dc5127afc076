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

package mm_test

import (
	"bytes"
	"debug/elf"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"rvos.dev/rvos/pkg/errors/kerr"
	"rvos.dev/rvos/pkg/mm"
	"rvos.dev/rvos/pkg/mm/mmtest"
	"rvos.dev/rvos/pkg/riscv"
)

var (
	text = bytes.Repeat([]byte{0x13, 0x00, 0x00, 0x00}, 0x500) // nop
	data = []byte("hello, world")
)

func testImage() []byte {
	return mmtest.BuildELF(0x10000,
		mmtest.Segment{Vaddr: 0x10000, Data: text, Flags: elf.PF_R | elf.PF_X},
		mmtest.Segment{Vaddr: 0x12010, Data: data, Memsz: 0x100, Flags: elf.PF_R | elf.PF_W},
	)
}

func TestFromELF(t *testing.T) {
	env := mmtest.NewEnv(t, 64)
	ms, sp, entry, err := mm.FromELF(env.Frames, env.Trampoline, testImage())
	if err != nil {
		t.Fatalf("FromELF: %v", err)
	}
	if entry != 0x10000 {
		t.Errorf("entry = %#x, want 0x10000", entry)
	}
	// Segments end at 0x13000, then a guard page and the stack.
	wantSP := uintptr(0x14000 + mm.UserStackSize)
	if sp != wantSP {
		t.Errorf("user sp = %#x, want %#x", sp, wantSP)
	}

	userRW := mm.PermRead | mm.PermWrite | mm.PermUser
	trapVPN := riscv.NewVirtAddr(mm.TrapContextBase).Floor()
	want := []mm.AreaInfo{
		{Range: riscv.VPNRange{Start: 0x10, End: 0x12}, Type: mm.Framed, Perm: mm.PermRead | mm.PermExecute | mm.PermUser, Frames: 2},
		{Range: riscv.VPNRange{Start: 0x12, End: 0x13}, Type: mm.Framed, Perm: userRW, Frames: 1},
		{Range: riscv.VPNRange{Start: 0x14, End: 0x16}, Type: mm.Framed, Perm: userRW, Frames: 2},
		{Range: riscv.VPNRange{Start: 0x16, End: 0x16}, Type: mm.Framed, Perm: userRW},
		{Range: riscv.VPNRange{Start: trapVPN, End: trapVPN + 1}, Type: mm.Framed, Perm: mm.PermRead | mm.PermWrite, Frames: 1},
	}
	if diff := cmp.Diff(want, ms.Areas()); diff != "" {
		t.Errorf("Areas() mismatch (-want +got):\n%s", diff)
	}

	if _, ok := ms.Translate(0x13); ok {
		t.Errorf("guard page is mapped")
	}

	pte, ok := ms.Translate(riscv.NewVirtAddr(mm.Trampoline).Floor())
	if !ok || pte.PPN() != env.Trampoline || !pte.Executable() || pte.User() {
		t.Errorf("trampoline = %v %v, %v; want %v r-x kernel only", pte.PPN(), pte.Flags(), ok, env.Trampoline)
	}

	// Segment contents land at their page offsets.
	pte, ok = ms.Translate(0x12)
	if !ok {
		t.Fatalf("data page not mapped")
	}
	page := env.Memory.Page(pte.PPN())
	if got := page[0x10 : 0x10+len(data)]; !bytes.Equal(got, data) {
		t.Errorf("data page = %q, want %q", got, data)
	}
	if page[0x10+len(data)] != 0 {
		t.Errorf("bss not zeroed")
	}
	pte, _ = ms.Translate(0x11)
	if got := env.Memory.Page(pte.PPN())[:4]; !bytes.Equal(got, text[:4]) {
		t.Errorf("second text page starts with %x, want %x", got, text[:4])
	}
}

func TestFromELFRejects(t *testing.T) {
	for _, tc := range []struct {
		name  string
		image []byte
	}{
		{"garbage", []byte("#!/bin/sh\necho hi\n")},
		{"empty", nil},
		{"wrong machine", mmtest.BuildELFForMachine(elf.EM_X86_64, 0x10000, mmtest.Segment{Vaddr: 0x10000, Data: text, Flags: elf.PF_R | elf.PF_X})},
		{"no segments", mmtest.BuildELF(0x10000)},
		{"kernel address", mmtest.BuildELF(0x10000, mmtest.Segment{Vaddr: 0x40_0000_0000, Data: text, Flags: elf.PF_R})},
		{"overlapping segments", mmtest.BuildELF(0x10000,
			mmtest.Segment{Vaddr: 0x10000, Data: text, Flags: elf.PF_R},
			mmtest.Segment{Vaddr: 0x11000, Data: data, Flags: elf.PF_R})},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := mmtest.NewEnv(t, 64)
			free := env.Frames.Free()
			_, _, _, err := mm.FromELF(env.Frames, env.Trampoline, tc.image)
			if err == nil {
				t.Fatalf("FromELF succeeded")
			}
			if tc.name != "overlapping segments" && !errors.Is(err, kerr.ENOEXEC) {
				t.Errorf("FromELF = %v, want ENOEXEC", err)
			}
			if got := env.Frames.Free(); got != free {
				t.Errorf("failed FromELF leaked %d frames", free-got)
			}
		})
	}
}

func TestFromELFOutOfMemory(t *testing.T) {
	env := mmtest.NewEnv(t, 12)
	free := env.Frames.Free()
	if _, _, _, err := mm.FromELF(env.Frames, env.Trampoline, testImage()); !errors.Is(err, kerr.ENOMEM) {
		t.Fatalf("FromELF = %v, want ENOMEM", err)
	}
	if got := env.Frames.Free(); got != free {
		t.Errorf("failed FromELF leaked %d frames", free-got)
	}
}
