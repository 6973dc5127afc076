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

package log

import (
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// GoogleEmitter prefixes each message with a glog header and passes it on to
// Emitter. Lines have the form
//
//	Lmmdd hh:mm:ss.uuuuuu file:line] msg
//
// glog's thread ID column is left out; the kernel runs on one hart.
type GoogleEmitter struct {
	Emitter
}

const glogTime = "0102 15:04:05.000000"

// Emit implements Emitter.Emit.
func (g GoogleEmitter) Emit(depth int, level Level, timestamp time.Time, format string, args ...any) {
	var local [192]byte
	b := append(local[:0], levelLetter(level))
	b = timestamp.AppendFormat(b, glogTime)
	b = append(b, ' ')
	b = append(b, caller(depth+1)...)
	b = append(b, "] "...)
	b = append(b, format...)
	b = append(b, '\n')
	g.Emitter.Emit(depth+1, level, timestamp, string(b), args...)
}

func levelLetter(l Level) byte {
	switch l {
	case Debug:
		return 'D'
	case Info:
		return 'I'
	default:
		return 'W'
	}
}

// caller returns "file:line" for the frame skip levels above the function
// that calls it.
func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "x:0"
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}
