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


// Package errors defines the error type returned by kernel components. Every
// kernel error carries the number user space sees when a system call fails.
package errors

// Errno is the number a failed operation reports to user space. Values
// follow the Linux numbering so that user libraries need no translation.
type Errno uint32

// Error is a kernel failure: an Errno and the text logged for it.
type Error struct {
	errno   Errno
	message string
}

// New returns an Error for errno described by message. Kernel code uses the
// sentinels in package kerr rather than calling New directly.
func New(errno Errno, message string) *Error {
	return &Error{errno: errno, message: message}
}

// Error implements error.Error.
func (e *Error) Error() string { return e.message }

// Errno returns the number reported to user space.
func (e *Error) Errno() Errno { return e.errno }

// Is lets errors.Is match any Error carrying the same number, such as one
// rebuilt from a number returned by firmware.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t != nil && t.errno == e.errno
}
