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

// Package task implements task control blocks and the slot manager that
// builds them from application images.
package task

import (
	"fmt"

	"rvos.dev/rvos/pkg/arch"
	"rvos.dev/rvos/pkg/errors/kerr"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/pkg/mm"
	"rvos.dev/rvos/pkg/riscv"
)

// TaskControlBlock is the kernel's record of one task.
//
// A TaskControlBlock is used by a single hart and is not safe for concurrent
// use.
type TaskControlBlock struct {
	slot int

	// ctx is the saved kernel context, read and written by the context
	// switch.
	ctx arch.TaskContext

	status TaskStatus

	// space is the task's address space. It is nil once the task is
	// retired.
	space AddressSpace

	// mem is the kernel's window onto physical memory.
	mem mm.PhysicalMemory

	// trapCxPPN is the frame backing mm.TrapContextBase in space.
	trapCxPPN riscv.PhysPageNum

	// baseSize is the top of the initially mapped user region.
	baseSize uintptr

	// heapBottom is fixed at the initial user stack pointer.
	heapBottom uintptr

	// programBrk is the current top of the heap. heapBottom <= programBrk.
	programBrk uintptr

	kstackBottom uintptr
	kstackTop    uintptr
}

// Slot returns the slot the task occupies.
func (t *TaskControlBlock) Slot() int {
	return t.slot
}

// Status returns the task's status.
func (t *TaskControlBlock) Status() TaskStatus {
	return t.status
}

// TaskContext returns the saved kernel context for the context switch.
func (t *TaskControlBlock) TaskContext() *arch.TaskContext {
	return &t.ctx
}

// TrapContext returns the task's trap context, or nil if the task has been
// retired.
func (t *TaskControlBlock) TrapContext() *arch.TrapContext {
	if t.space == nil {
		return nil
	}
	return trapContextAt(t.mem.Page(t.trapCxPPN))
}

// TrapContextPPN returns the frame holding the trap context.
func (t *TaskControlBlock) TrapContextPPN() riscv.PhysPageNum {
	return t.trapCxPPN
}

// UserToken returns the satp value of the task's address space, or zero if
// the task has been retired.
func (t *TaskControlBlock) UserToken() uintptr {
	if t.space == nil {
		return 0
	}
	return t.space.Token()
}

// Space returns the task's address space, or nil if the task has been
// retired.
func (t *TaskControlBlock) Space() AddressSpace {
	return t.space
}

// BaseSize returns the top of the initially mapped user region.
func (t *TaskControlBlock) BaseSize() uintptr {
	return t.baseSize
}

// HeapBottom returns the lowest possible program break.
func (t *TaskControlBlock) HeapBottom() uintptr {
	return t.heapBottom
}

// ProgramBrk returns the current program break.
func (t *TaskControlBlock) ProgramBrk() uintptr {
	return t.programBrk
}

// KernelStack returns the bounds of the task's kernel stack.
func (t *TaskControlBlock) KernelStack() (bottom, top uintptr) {
	return t.kstackBottom, t.kstackTop
}

// ChangeProgramBrk moves the program break by delta bytes and returns the
// previous break. The heap is shrunk for a negative delta and grown
// otherwise. It fails, leaving the task unchanged, if the new break would lie
// below the heap bottom or the address space cannot be resized.
func (t *TaskControlBlock) ChangeProgramBrk(delta int32) (uintptr, bool) {
	if t.space == nil {
		return 0, false
	}
	old := t.programBrk
	newBrk := int64(old) + int64(delta)
	if newBrk < int64(t.heapBottom) {
		return 0, false
	}
	start := riscv.NewVirtAddr(t.heapBottom)
	end := riscv.NewVirtAddr(uintptr(newBrk))
	var ok bool
	if delta < 0 {
		ok = t.space.ShrinkTo(start, end)
	} else {
		ok = t.space.AppendTo(start, end)
	}
	if !ok {
		log.Debugf("Task %d: brk %#x%+d failed", t.slot, old, delta)
		return 0, false
	}
	t.programBrk = uintptr(newBrk)
	return old, true
}

// Transition moves the task to status to. Moves not permitted by the task
// state machine fail with EINVAL.
func (t *TaskControlBlock) Transition(to TaskStatus) error {
	if !CanTransition(t.status, to) {
		return fmt.Errorf("task %d: %v -> %v: %w", t.slot, t.status, to, kerr.EINVAL)
	}
	log.Debugf("Task %d: %v -> %v", t.slot, t.status, to)
	t.status = to
	return nil
}

// Dispatch marks a ready task as running.
func (t *TaskControlBlock) Dispatch() error {
	return t.Transition(Running)
}

// Yield returns a running task to the ready state.
func (t *TaskControlBlock) Yield() error {
	return t.Transition(Ready)
}

// Exit marks a running task as exited.
func (t *TaskControlBlock) Exit() error {
	return t.Transition(Exited)
}

// String implements fmt.Stringer.
func (t *TaskControlBlock) String() string {
	return fmt.Sprintf("task %d (%v)", t.slot, t.status)
}
