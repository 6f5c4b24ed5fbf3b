// Copyright 2026 The gVisor Authors.
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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

// Layout implements subcommands.Command for the "layout" command.
type Layout struct {
	bitmap string
}

// Name implements subcommands.Command.Name.
func (*Layout) Name() string {
	return "layout"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Layout) Synopsis() string {
	return "Print the field layout of a task state segment."
}

// Usage implements subcommands.Command.Usage.
func (*Layout) Usage() string {
	return `layout [-bitmap none|legacy|full] - Print the field layout of a task state segment.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (l *Layout) SetFlags(f *flag.FlagSet) {
	f.StringVar(&l.bitmap, "bitmap", bitmapNone, "I/O permission bitmap kind ("+bitmapKinds+").")
}

// Execute implements subcommands.Command.Execute.
func (l *Layout) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if err := writeLayout(os.Stdout, l.bitmap); err != nil {
		logrus.Errorf("layout: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func writeLayout(w io.Writer, kind string) error {
	fields, size, err := layoutOf(kind)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "FIELD\tOFFSET\tSIZE\n")
	for _, f := range fields {
		fmt.Fprintf(tw, "%s\t%#x\t%d\n", f.Name, f.Offset, f.Size)
	}
	fmt.Fprintf(tw, "total\t\t%#x\n", size)
	return tw.Flush()
}
