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
	"sync"
	"sync/atomic"

	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/riscv"
)

// KernelSpace is the kernel's address space, shared by every task. Access is
// only granted for the duration of a call to Do.
type KernelSpace struct {
	mu sync.Mutex
	ms *MemorySet
}

// NewKernelSpace takes ownership of ms.
func NewKernelSpace(ms *MemorySet) *KernelSpace {
	return &KernelSpace{ms: ms}
}

// Do calls fn with exclusive access to the kernel's memory set. The lock is
// released when fn returns or panics. fn must not retain ms.
func (k *KernelSpace) Do(fn func(ms *MemorySet) error) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return fn(k.ms)
}

// Token returns the satp value of the kernel space.
func (k *KernelSpace) Token() uintptr {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.ms.Token()
}

var kernel atomic.Pointer[KernelSpace]

// SetKernel installs the process-wide kernel space.
func SetKernel(k *KernelSpace) {
	kernel.Store(k)
}

// Kernel returns the process-wide kernel space, or nil if none has been
// installed.
func Kernel() *KernelSpace {
	return kernel.Load()
}

// Region is a range of physical memory the kernel maps onto itself.
type Region struct {
	Name  string
	Start riscv.PhysAddr
	End   riscv.PhysAddr
	Perm  MapPermission
}

// NewKernelMemorySet builds the kernel's memory set: the trampoline and an
// identity mapping of every region.
func NewKernelMemorySet(alloc *FrameAllocator, trampoline riscv.PhysPageNum, regions []Region) (*MemorySet, error) {
	ms, err := NewMemorySet(alloc)
	if err != nil {
		return nil, err
	}
	if err := ms.MapTrampoline(trampoline); err != nil {
		ms.Release()
		return nil, err
	}
	for _, r := range regions {
		log.Infof("Mapping %s [%v, %v) %v", r.Name, r.Start, r.End, r.Perm)
		if err := ms.InsertIdenticalArea(riscv.VirtAddr(r.Start), riscv.VirtAddr(r.End), r.Perm); err != nil {
			ms.Release()
			return nil, err
		}
	}
	return ms, nil
}
