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

// Package cmd holds implementations of the rvsim commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"gopkg.in/yaml.v3"
	"rvos.dev/rvos/pkg/log"
)

// ErrorLogger is where error messages should be written to. These messages
// are consumed by scripts driving the simulator.
var ErrorLogger io.Writer

// Errorf logs the error, writes it to stderr and returns ExitFailure.
func Errorf(format string, args ...any) subcommands.ExitStatus {
	msg := fmt.Sprintf(format, args...)
	log.WarningfAtDepth(1, "FATAL ERROR: %s", msg)
	fmt.Fprintln(os.Stderr, msg)
	if ErrorLogger != nil {
		fmt.Fprintln(ErrorLogger, msg)
	}
	return subcommands.ExitFailure
}

// Fatalf logs the error, writes it to stderr and exits with status 128.
func Fatalf(format string, args ...any) {
	Errorf(format, args...)
	os.Exit(128)
}

// outputFlag holds the report format selected with -o.
type outputFlag string

// String implements flag.Value.
func (o *outputFlag) String() string {
	return string(*o)
}

// Get implements flag.Getter.
func (o *outputFlag) Get() any {
	return string(*o)
}

// Set implements flag.Value.
func (o *outputFlag) Set(s string) error {
	switch s {
	case "text", "json", "yaml":
		*o = outputFlag(s)
		return nil
	default:
		return fmt.Errorf("invalid output format %q, must be 'text', 'json' or 'yaml'", s)
	}
}

// writeReport writes v to w in format. Text reports are rendered by text
// into a tabwriter.
func writeReport(w io.Writer, format outputFlag, v any, text func(w io.Writer)) error {
	switch format {
	case "json":
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		text(tw)
		return tw.Flush()
	}
}
