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

// Package console prints kernel text on the SBI debug console.
package console

import (
	"fmt"

	"rvos.dev/rvos/pkg/sbi"
)

// Writer is an io.Writer that emits every byte through
// sbi.ConsolePutchar. It never fails.
type Writer struct{}

// Write implements io.Writer.Write.
func (Writer) Write(p []byte) (int, error) {
	for _, c := range p {
		sbi.ConsolePutchar(c)
	}
	return len(p), nil
}

// Print writes s to the console.
func Print(s string) {
	for i := 0; i < len(s); i++ {
		sbi.ConsolePutchar(s[i])
	}
}

// Printf formats according to a format specifier and writes to the console.
func Printf(format string, v ...any) {
	fmt.Fprintf(Writer{}, format, v...)
}

// Println writes its operands and a newline to the console.
func Println(v ...any) {
	fmt.Fprintln(Writer{}, v...)
}

// Getchar returns the next console input byte, if any.
func Getchar() (byte, bool) {
	return sbi.ConsoleGetchar()
}
