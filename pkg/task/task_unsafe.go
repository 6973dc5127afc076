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
	"unsafe"

	"rvos.dev/rvos/pkg/arch"
)

// trapContextAt returns the trap context stored at the start of page.
func trapContextAt(page []byte) *arch.TrapContext {
	_ = page[arch.TrapContextSize-1]
	return (*arch.TrapContext)(unsafe.Pointer(&page[0]))
}
