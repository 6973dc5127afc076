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

package arch

// TaskContext holds the callee-saved registers switched by the kernel's
// context switch routine.
type TaskContext struct {
	// RA is the address the switch routine returns to.
	RA uintptr

	// SP is the kernel stack pointer.
	SP uintptr

	// S holds s0..s11.
	S [12]uintptr
}

// GotoTrapReturn returns a context that, when switched to, starts executing
// at trapReturn on the kernel stack whose top is kstackTop.
func GotoTrapReturn(kstackTop, trapReturn uintptr) TaskContext {
	return TaskContext{
		RA: trapReturn,
		SP: kstackTop,
	}
}
