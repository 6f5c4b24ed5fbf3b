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
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"gvisor.dev/tss/pkg/ring0"
)

// Dump implements subcommands.Command for the "dump" command.
type Dump struct {
	configPath string
}

// Name implements subcommands.Command.Name.
func (*Dump) Name() string {
	return "dump"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Dump) Synopsis() string {
	return "Build a task state segment from a config file and dump its image."
}

// Usage implements subcommands.Command.Usage.
func (*Dump) Usage() string {
	return `dump -config <path> - Build a task state segment from a TOML config file and
print its hardware image as a hex dump.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (d *Dump) SetFlags(f *flag.FlagSet) {
	f.StringVar(&d.configPath, "config", "", "path to the TOML task state description.")
}

// Execute implements subcommands.Command.Execute.
func (d *Dump) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if d.configPath == "" || f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf, err := loadConfig(d.configPath)
	if err != nil {
		logrus.Errorf("dump: %v", err)
		return subcommands.ExitFailure
	}
	logrus.WithFields(logrus.Fields{
		"config": d.configPath,
		"bitmap": conf.Bitmap,
	}).Debug("Loaded task state config")

	if err := dump(os.Stdout, conf); err != nil {
		logrus.Errorf("dump: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// dump builds the task state described by conf and writes its image to w.
func dump(w io.Writer, conf *config) error {
	switch conf.Bitmap {
	case bitmapNone:
		return dumpTaskState[ring0.NoIOBitmap](w, conf)
	case bitmapLegacy:
		return dumpTaskState[ring0.LegacyIOBitmap](w, conf)
	case bitmapFull:
		return dumpTaskState[ring0.FullIOBitmap](w, conf)
	default:
		return fmt.Errorf("unknown bitmap kind %q, want one of: %s", conf.Bitmap, bitmapKinds)
	}
}

func dumpTaskState[B any](w io.Writer, conf *config) error {
	s := ring0.NewStaticTaskState64[B]()
	if err := s.Update(func(u *ring0.TaskStateUpdate[B]) {
		apply(conf, u)
	}); err != nil {
		return err
	}
	h, perms, err := s.Claim()
	if err != nil {
		return err
	}
	for _, r := range conf.Allow {
		if err := perms.AllowRange(r.First, r.count()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "limit %#x, %d of %d ports allowed\n", h.Limit(), allowedPorts(perms), perms.Ports()); err != nil {
		return err
	}
	_, err = io.WriteString(w, hex.Dump(s.Snapshot()))
	return err
}

func allowedPorts(perms ring0.IOPermissionBitmap) int {
	n := 0
	for port := 0; port < perms.Ports(); port++ {
		if perms.Allowed(uint16(port)) {
			n++
		}
	}
	return n
}
