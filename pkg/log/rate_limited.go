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
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// rateLimitedLogger drops statements over its limit. The number dropped is
// appended to the next statement that passes.
type rateLimitedLogger struct {
	Logger
	limit   *rate.Limiter
	dropped atomic.Int64
}

func (rl *rateLimitedLogger) pass(emit func(string, ...any), format string, v []any) {
	if !rl.limit.Allow() {
		rl.dropped.Add(1)
		return
	}
	if n := rl.dropped.Swap(0); n > 0 {
		format += " (%d similar messages suppressed)"
		v = append(v[:len(v):len(v)], n)
	}
	emit(format, v...)
}

func (rl *rateLimitedLogger) Debugf(format string, v ...any) {
	rl.pass(rl.Logger.Debugf, format, v)
}

func (rl *rateLimitedLogger) Infof(format string, v ...any) {
	rl.pass(rl.Logger.Infof, format, v)
}

func (rl *rateLimitedLogger) Warningf(format string, v ...any) {
	rl.pass(rl.Logger.Warningf, format, v)
}

// BasicRateLimitedLogger is RateLimitedLogger over the global logger.
func BasicRateLimitedLogger(every time.Duration) Logger {
	return RateLimitedLogger(Log(), every)
}

// RateLimitedLogger returns a Logger that passes at most one statement per
// every to logger.
func RateLimitedLogger(logger Logger, every time.Duration) Logger {
	return &rateLimitedLogger{
		Logger: logger,
		limit:  rate.NewLimiter(rate.Every(every), 1),
	}
}
