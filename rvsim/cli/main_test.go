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


//go:build linux
// +build linux

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/subcommands"
	"rvos.dev/rvos/pkg/log"
)

func TestForEachCmd(t *testing.T) {
	got := make(map[string]string)
	forEachCmd(func(c subcommands.Command, group string) {
		if _, ok := got[c.Name()]; ok {
			t.Errorf("command %q registered twice", c.Name())
		}
		got[c.Name()] = group
		if c.Synopsis() == "" || c.Usage() == "" {
			t.Errorf("command %q has no synopsis or usage", c.Name())
		}
	})
	want := map[string]string{
		"help":    "",
		"flags":   "",
		"layout":  "",
		"load":    "",
		"brk":     "",
		"console": "",
		"crash":   "debug",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("registered commands mismatch (-want +got):\n%s", diff)
	}
}

func TestNewEmitter(t *testing.T) {
	for _, tc := range []struct {
		format string
		want   string
	}{
		{"text", "log.GoogleEmitter"},
		{"json", "log.JSONEmitter"},
		{"logrus", "log.LogrusEmitter"},
	} {
		t.Run(tc.format, func(t *testing.T) {
			var buf bytes.Buffer
			e := newEmitter(tc.format, &buf)
			if got := fmt.Sprintf("%T", e); got != tc.want {
				t.Fatalf("newEmitter(%q) = %s, want %s", tc.format, got, tc.want)
			}
			l := &log.BasicLogger{Level: log.Info, Emitter: e}
			l.Infof("slot %d ready", 1)
			if !strings.Contains(buf.String(), "slot 1 ready") {
				t.Errorf("output = %q, want the message", buf.String())
			}
		})
	}
}

// TestNewEmitterInvalidFormat runs itself in a child process, since an
// invalid format exits through cmd.Fatalf.
func TestNewEmitterInvalidFormat(t *testing.T) {
	if os.Getenv("RVSIM_BAD_LOG_FORMAT") == "1" {
		newEmitter("xml", io.Discard)
		return
	}
	c := exec.Command(os.Args[0], "-test.run=^TestNewEmitterInvalidFormat$")
	c.Env = append(os.Environ(), "RVSIM_BAD_LOG_FORMAT=1")
	var stderr bytes.Buffer
	c.Stderr = &stderr
	err := c.Run()

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 128 {
		t.Fatalf("child exited with %v, want exit status 128; stderr:\n%s", err, stderr.String())
	}
	if !strings.Contains(stderr.String(), `invalid log format "xml"`) {
		t.Errorf("stderr = %q, want the invalid format error", stderr.String())
	}
}
