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

package riscv

import "strings"

// PTEFlags are the low bits of a page table entry.
type PTEFlags uint8

// Page table entry flag bits.
const (
	PTEValid PTEFlags = 1 << iota
	PTERead
	PTEWrite
	PTEExecute
	PTEUser
	PTEGlobal
	PTEAccessed
	PTEDirty
)

// String implements fmt.Stringer.String.
func (f PTEFlags) String() string {
	var b strings.Builder
	for _, bit := range []struct {
		flag PTEFlags
		c    byte
	}{
		{PTEValid, 'V'}, {PTERead, 'R'}, {PTEWrite, 'W'}, {PTEExecute, 'X'},
		{PTEUser, 'U'}, {PTEGlobal, 'G'}, {PTEAccessed, 'A'}, {PTEDirty, 'D'},
	} {
		if f&bit.flag != 0 {
			b.WriteByte(bit.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// PageTableEntry is a single Sv39 page table entry.
type PageTableEntry uint64

// NewPageTableEntry returns an entry pointing at ppn with flags.
func NewPageTableEntry(ppn PhysPageNum, flags PTEFlags) PageTableEntry {
	return PageTableEntry(uint64(ppn)<<10 | uint64(flags))
}

// PPN returns the frame referenced by e.
func (e PageTableEntry) PPN() PhysPageNum {
	return PhysPageNum((uint64(e) >> 10) & (1<<PhysPageNumWidth - 1))
}

// Flags returns the flag bits of e.
func (e PageTableEntry) Flags() PTEFlags { return PTEFlags(e) }

// IsValid returns true if the V bit is set.
func (e PageTableEntry) IsValid() bool { return e.Flags()&PTEValid != 0 }

// Readable returns true if the R bit is set.
func (e PageTableEntry) Readable() bool { return e.Flags()&PTERead != 0 }

// Writable returns true if the W bit is set.
func (e PageTableEntry) Writable() bool { return e.Flags()&PTEWrite != 0 }

// Executable returns true if the X bit is set.
func (e PageTableEntry) Executable() bool { return e.Flags()&PTEExecute != 0 }

// User returns true if the U bit is set.
func (e PageTableEntry) User() bool { return e.Flags()&PTEUser != 0 }

// Leaf returns true if e maps a page rather than pointing at the next level.
func (e PageTableEntry) Leaf() bool {
	return e.Flags()&(PTERead|PTEWrite|PTEExecute) != 0
}

// SatpModeSv39 is the satp MODE field value selecting Sv39 translation.
const SatpModeSv39 = 8

// SatpToken returns the satp value that installs the page table rooted at
// root.
func SatpToken(root PhysPageNum) uintptr {
	return uintptr(SatpModeSv39<<60 | uint64(root))
}

// SatpRoot returns the root page table frame encoded in token.
func SatpRoot(token uintptr) PhysPageNum {
	return PhysPageNum(uint64(token) & (1<<PhysPageNumWidth - 1))
}
