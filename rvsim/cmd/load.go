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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"rvos.dev/rvos/pkg/log"
	"rvos.dev/rvos/rvsim/config"
	"rvos.dev/rvos/rvsim/sim"
)

// Load implements subcommands.Command for the "load" command.
type Load struct {
	output outputFlag
}

// Name implements subcommands.Command.Name.
func (*Load) Name() string {
	return "load"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Load) Synopsis() string {
	return "build tasks from ELF executables and print them"
}

// Usage implements subcommands.Command.Usage.
func (*Load) Usage() string {
	return `load [flags] <elf>... - load each executable into its own slot, in order.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (l *Load) SetFlags(f *flag.FlagSet) {
	l.output = "text"
	f.Var(&l.output, "o", "output format: text, json or yaml.")
}

// readImages reads every file concurrently.
func readImages(ctx context.Context, paths []string) ([][]byte, error) {
	images := make([][]byte, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			log.Debugf("Read %d bytes from %q", len(b), path)
			images[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// Execute implements subcommands.Command.Execute.
func (l *Load) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	images, err := readImages(ctx, f.Args())
	if err != nil {
		return Errorf("reading images: %v", err)
	}
	m, err := sim.New(conf)
	if err != nil {
		return Errorf("creating machine: %v", err)
	}
	tasks, err := m.Tasks.Populate(images)
	if err != nil {
		return Errorf("loading tasks: %v", err)
	}

	infos := make([]sim.TaskInfo, 0, len(tasks))
	for i, t := range tasks {
		infos = append(infos, sim.Describe(filepath.Base(f.Arg(i)), t))
	}
	if err := writeReport(os.Stdout, l.output, infos, func(w io.Writer) {
		printTasks(w, infos)
	}); err != nil {
		return Errorf("%v", err)
	}
	return subcommands.ExitSuccess
}

func printTasks(w io.Writer, infos []sim.TaskInfo) {
	fmt.Fprintf(w, "SLOT\tNAME\tSTATUS\tENTRY\tUSER SP\tBRK\tTOKEN\tKERNEL STACK\n")
	for _, t := range infos {
		fmt.Fprintf(w, "%d\t%s\t%s\t%v\t%v\t%v\t%v\t%v-%v\n",
			t.Slot, t.Name, t.Status, t.Entry, t.UserSP, t.ProgramBrk, t.UserToken, t.KernelStack[0], t.KernelStack[1])
	}
}
