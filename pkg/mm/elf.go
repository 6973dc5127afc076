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

package mm

import (
	"bytes"
	"debug/elf"
	"fmt"

	"rvos.dev/rvos/pkg/cleanup"
	"rvos.dev/rvos/pkg/errors/kerr"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/riscv"
)

// maxUserAddr bounds user segments to the lower half of the Sv39 space.
const maxUserAddr = 1 << (riscv.VirtAddrWidth - 1)

// FromELF builds a user address space from an ELF executable image.
//
// The space contains the trampoline, every PT_LOAD segment (user accessible,
// with the segment's R/W/X bits), a guard page, the user stack, an empty heap
// area starting at the stack top, and the trap context page. It returns the
// initial user stack pointer and the entry point.
func FromELF(alloc *FrameAllocator, trampoline riscv.PhysPageNum, image []byte) (ms *MemorySet, userSP, entry uintptr, err error) {
	f, err := elf.NewFile(bytes.NewReader(image))
	if err != nil {
		log.Infof("Unable to parse ELF header: %v", err)
		return nil, 0, 0, fmt.Errorf("%v: %w", err, kerr.ENOEXEC)
	}
	if f.Class != elf.ELFCLASS64 || f.Data != elf.ELFDATA2LSB || f.Machine != elf.EM_RISCV {
		log.Warningf("Unsupported ELF %v %v %v", f.Class, f.Data, f.Machine)
		return nil, 0, 0, kerr.ENOEXEC
	}

	ms, err = NewMemorySet(alloc)
	if err != nil {
		return nil, 0, 0, err
	}
	cu := cleanup.Make(ms.Release)
	defer cu.Clean()

	if err := ms.MapTrampoline(trampoline); err != nil {
		return nil, 0, 0, err
	}

	var maxEnd riscv.VirtPageNum
	loaded := 0
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if p.Filesz > p.Memsz {
			log.Warningf("PT_LOAD segment filesz %#x > memsz %#x", p.Filesz, p.Memsz)
			return nil, 0, 0, kerr.ENOEXEC
		}
		end := p.Vaddr + p.Memsz
		if end < p.Vaddr || end > maxUserAddr {
			log.Warningf("PT_LOAD segment [%#x, %#x) outside user space", p.Vaddr, end)
			return nil, 0, 0, kerr.ENOEXEC
		}
		if p.Off+p.Filesz < p.Off || p.Off+p.Filesz > uint64(len(image)) {
			log.Warningf("PT_LOAD segment data extends beyond end of file %#x", len(image))
			return nil, 0, 0, kerr.ENOEXEC
		}

		perm := PermUser
		if p.Flags&elf.PF_R != 0 {
			perm |= PermRead
		}
		if p.Flags&elf.PF_W != 0 {
			perm |= PermWrite
		}
		if p.Flags&elf.PF_X != 0 {
			perm |= PermExecute
		}
		start := riscv.VirtAddr(p.Vaddr)
		area := newMapArea(start, riscv.VirtAddr(end), Framed, perm)
		if err := ms.push(area, image[p.Off:p.Off+p.Filesz], start.PageOffset()); err != nil {
			return nil, 0, 0, fmt.Errorf("loading segment at %v: %w", start, err)
		}
		maxEnd = max(maxEnd, area.vpns.End)
		loaded++
	}
	if loaded == 0 {
		log.Warningf("ELF has no PT_LOAD segments")
		return nil, 0, 0, kerr.ENOEXEC
	}

	// One unmapped guard page separates the image from the stack.
	stackBottom := maxEnd.Addr() + riscv.PageSize
	stackTop := stackBottom + UserStackSize
	userRW := PermRead | PermWrite | PermUser
	if err := ms.InsertFramedArea(stackBottom, stackTop, userRW); err != nil {
		return nil, 0, 0, fmt.Errorf("mapping user stack: %w", err)
	}
	if err := ms.InsertFramedArea(stackTop, stackTop, userRW); err != nil {
		return nil, 0, 0, fmt.Errorf("mapping heap: %w", err)
	}
	if err := ms.InsertFramedArea(riscv.NewVirtAddr(TrapContextBase), riscv.NewVirtAddr(Trampoline), PermRead|PermWrite); err != nil {
		return nil, 0, 0, fmt.Errorf("mapping trap context: %w", err)
	}

	cu.Release()
	return ms, uintptr(stackTop), uintptr(f.Entry), nil
}
