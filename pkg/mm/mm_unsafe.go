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
	"unsafe"

	"rvos.dev/rvos/pkg/riscv"
)

// directPage returns the page at identity mapped address addr.
//
//go:nocheckptr
func directPage(addr uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), riscv.PageSize)
}

// wordsAsPage returns the bytes of a page's worth of words. Backing frames
// with words keeps them 8-byte aligned for page table and trap context views.
func wordsAsPage(w []uint64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&w[0])), riscv.PageSize)
}

// ptesOf returns the page table entries stored in page.
func ptesOf(page []byte) *PTEs {
	return (*PTEs)(unsafe.Pointer(&page[0]))
}
