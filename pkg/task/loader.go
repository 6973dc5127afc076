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

package task

import (
	"rvos.dev/rvos/pkg/mm"
	"rvos.dev/rvos/pkg/riscv"
)

// AddressSpace is a task's private address space.
type AddressSpace interface {
	// Token returns the satp value that installs the space.
	Token() uintptr

	// Translate returns the leaf entry for vpn if it is mapped.
	Translate(vpn riscv.VirtPageNum) (riscv.PageTableEntry, bool)

	// ShrinkTo moves the end of the area starting at start down to newEnd.
	ShrinkTo(start, newEnd riscv.VirtAddr) bool

	// AppendTo moves the end of the area starting at start up to newEnd,
	// mapping every new page or none.
	AppendTo(start, newEnd riscv.VirtAddr) bool

	// Release frees everything the space owns.
	Release()
}

// Loader builds address spaces from application images.
type Loader interface {
	// Load returns the space for image with its initial user stack
	// pointer and entry point.
	Load(image []byte) (space AddressSpace, userSP, entry uintptr, err error)
}

// ELFLoader loads ELF executables with mm.FromELF.
type ELFLoader struct {
	Frames     *mm.FrameAllocator
	Trampoline riscv.PhysPageNum
}

// Load implements Loader.Load.
func (l ELFLoader) Load(image []byte) (AddressSpace, uintptr, uintptr, error) {
	ms, userSP, entry, err := mm.FromELF(l.Frames, l.Trampoline, image)
	if err != nil {
		return nil, 0, 0, err
	}
	return ms, userSP, entry, nil
}
