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
	"rvos.dev/rvos/pkg/riscv"
)

const (
	// UserStackSize is the size of every task's user stack.
	UserStackSize = 2 * riscv.PageSize

	// KernelStackSize is the size of every task's kernel stack.
	KernelStackSize = 2 * riscv.PageSize

	// Trampoline is the page holding the trap entry and return code,
	// mapped at the same address in every space.
	Trampoline = ^uintptr(0) - riscv.PageSize + 1

	// TrapContextBase is where the trap context page is mapped in every
	// user space.
	TrapContextBase = Trampoline - riscv.PageSize

	// MaxSlots bounds the number of kernel stack slots.
	MaxSlots = 4096
)

// KernelStackPosition returns the bounds [bottom, top) of slot's kernel
// stack. Stacks are laid out downwards from Trampoline with an unmapped guard
// page below each of them.
func KernelStackPosition(slot int) (bottom, top uintptr) {
	top = Trampoline - uintptr(slot)*(KernelStackSize+riscv.PageSize)
	bottom = top - KernelStackSize
	return bottom, top
}
