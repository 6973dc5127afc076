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
	"errors"
	"testing"

	"rvos.dev/rvos/pkg/errors/kerr"
	"rvos.dev/rvos/pkg/riscv"
)

const testBase = riscv.PhysPageNum(0x80000)

func newTestAllocator(frames int) *FrameAllocator {
	mem := NewSimulatedMemory(testBase, frames)
	return NewFrameAllocator(mem, mem.Base(), mem.End())
}

func TestFrameAllocatorExhaustion(t *testing.T) {
	a := newTestAllocator(4)
	var frames []*Frame
	for i := 0; i < 4; i++ {
		f, err := a.Alloc()
		if err != nil {
			t.Fatalf("Alloc #%d: %v", i, err)
		}
		if want := testBase + riscv.PhysPageNum(i); f.PPN != want {
			t.Errorf("Alloc #%d = %v, want %v", i, f.PPN, want)
		}
		frames = append(frames, f)
	}
	if _, err := a.Alloc(); !errors.Is(err, kerr.ENOMEM) {
		t.Fatalf("Alloc on empty allocator = %v, want ENOMEM", err)
	}
	if got := a.Free(); got != 0 {
		t.Errorf("Free() = %d, want 0", got)
	}

	frames[2].Release()
	frames[1].Release()
	if got := a.Free(); got != 2 {
		t.Errorf("Free() = %d, want 2", got)
	}
	f, err := a.Alloc()
	if err != nil {
		t.Fatalf("Alloc after release: %v", err)
	}
	if f.PPN != frames[1].PPN {
		t.Errorf("Alloc after release = %v, want lowest released %v", f.PPN, frames[1].PPN)
	}
}

func TestFrameZeroed(t *testing.T) {
	a := newTestAllocator(1)
	f, err := a.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	for i := range f.Bytes() {
		f.Bytes()[i] = 0xa5
	}
	f.Release()

	f, err = a.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	for i, b := range f.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d of reused frame = %#x, want 0", i, b)
		}
	}
}

func TestFrameDoubleRelease(t *testing.T) {
	a := newTestAllocator(1)
	f, err := a.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	f.Release()
	defer func() {
		if recover() == nil {
			t.Errorf("second Release did not panic")
		}
	}()
	f.Release()
}

func TestDeallocUnallocated(t *testing.T) {
	a := newTestAllocator(2)
	defer func() {
		if recover() == nil {
			t.Errorf("dealloc of a never allocated frame did not panic")
		}
	}()
	a.dealloc(testBase + 1)
}

func TestSimulatedMemoryBounds(t *testing.T) {
	mem := NewSimulatedMemory(testBase, 2)
	if got := len(mem.Page(testBase + 1)); got != riscv.PageSize {
		t.Errorf("len(Page) = %d, want %d", got, riscv.PageSize)
	}
	defer func() {
		if recover() == nil {
			t.Errorf("Page outside memory did not panic")
		}
	}()
	mem.Page(testBase + 2)
}
