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
	"fmt"
	"sync"

	"github.com/google/btree"
	"rvos.dev/rvos/pkg/errors/kerr"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/riscv"
)

// FrameAllocator hands out physical frames from the range [start, end).
//
// Frames are handed out in address order until the range is exhausted, after
// which released frames are reused lowest first.
type FrameAllocator struct {
	mem PhysicalMemory

	// mu protects the fields below.
	mu sync.Mutex

	// current is the lowest frame never handed out.
	current riscv.PhysPageNum

	// end is the end of the managed range.
	end riscv.PhysPageNum

	// recycled holds released frames.
	recycled *btree.BTreeG[riscv.PhysPageNum]
}

// NewFrameAllocator returns an allocator for frames [start, end) of mem.
func NewFrameAllocator(mem PhysicalMemory, start, end riscv.PhysPageNum) *FrameAllocator {
	log.Debugf("Frame allocator managing %v..%v", start, end)
	return &FrameAllocator{
		mem:     mem,
		current: start,
		end:     end,
		recycled: btree.NewG(2, func(a, b riscv.PhysPageNum) bool {
			return a < b
		}),
	}
}

// Memory returns the physical memory the allocator's frames live in.
func (a *FrameAllocator) Memory() PhysicalMemory {
	return a.mem
}

// Alloc returns a zeroed frame, or ENOMEM when none are left.
func (a *FrameAllocator) Alloc() (*Frame, error) {
	ppn, ok := a.take()
	if !ok {
		return nil, kerr.ENOMEM
	}
	clear(a.mem.Page(ppn))
	return &Frame{PPN: ppn, alloc: a}, nil
}

func (a *FrameAllocator) take() (riscv.PhysPageNum, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ppn, ok := a.recycled.DeleteMin(); ok {
		return ppn, true
	}
	if a.current == a.end {
		return 0, false
	}
	ppn := a.current
	a.current++
	return ppn, true
}

func (a *FrameAllocator) dealloc(ppn riscv.PhysPageNum) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ppn >= a.current || a.recycled.Has(ppn) {
		panic(fmt.Sprintf("frame %v has not been allocated", ppn))
	}
	a.recycled.ReplaceOrInsert(ppn)
}

// Free returns the number of frames that can still be allocated.
func (a *FrameAllocator) Free() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.end-a.current) + a.recycled.Len()
}

// Frame is an allocated physical frame. It must be released exactly once.
type Frame struct {
	// PPN is the frame's page number.
	PPN riscv.PhysPageNum

	alloc    *FrameAllocator
	released bool
}

// Bytes returns the frame's contents.
func (f *Frame) Bytes() []byte {
	return f.alloc.mem.Page(f.PPN)
}

// Release returns the frame to its allocator.
func (f *Frame) Release() {
	if f.released {
		panic(fmt.Sprintf("frame %v released twice", f.PPN))
	}
	f.released = true
	f.alloc.dealloc(f.PPN)
}
