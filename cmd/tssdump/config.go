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
	"fmt"
	"strconv"

	"github.com/BurntSushi/toml"
	"gvisor.dev/tss/pkg/hostarch"
	"gvisor.dev/tss/pkg/ring0"
)

// config describes a task state segment.
//
// Addresses are strings since upper half addresses do not fit in a TOML
// integer. They accept any prefix understood by strconv.ParseUint.
type config struct {
	// Bitmap is the I/O permission bitmap kind.
	Bitmap string `toml:"bitmap"`

	// PrivilegeStacks are the stack pointers for rings 0-2, in order. Empty
	// or missing entries are left zero.
	PrivilegeStacks []string `toml:"privilege_stacks"`

	// InterruptStacks are the IST entries 1-7, in order. Empty or missing
	// entries are left zero.
	InterruptStacks []string `toml:"interrupt_stacks"`

	// Allow lists the ports user mode may access.
	Allow []portRange `toml:"allow"`
}

// portRange is a run of Count ports starting at First. A zero Count means a
// single port.
type portRange struct {
	First uint16 `toml:"first"`
	Count int    `toml:"count"`
}

// maxPorts is the size of the x86 I/O port space.
const maxPorts = 1 << 16

func (r portRange) count() int {
	if r.Count == 0 {
		return 1
	}
	return r.Count
}

// loadConfig loads a task state description from the TOML file at path.
func loadConfig(path string) (*config, error) {
	c := config{Bitmap: bitmapNone}
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &c, nil
}

func (c *config) validate() error {
	if _, _, err := layoutOf(c.Bitmap); err != nil {
		return err
	}
	if len(c.PrivilegeStacks) > ring0.PrivilegeLevels {
		return fmt.Errorf("%d privilege stacks, at most %d allowed", len(c.PrivilegeStacks), ring0.PrivilegeLevels)
	}
	if len(c.InterruptStacks) > ring0.InterruptStacks {
		return fmt.Errorf("%d interrupt stacks, at most %d allowed", len(c.InterruptStacks), ring0.InterruptStacks)
	}
	for _, s := range append(append([]string(nil), c.PrivilegeStacks...), c.InterruptStacks...) {
		if _, err := parseStack(s); err != nil {
			return err
		}
	}
	for _, r := range c.Allow {
		if r.Count < 0 {
			return fmt.Errorf("port range at %#x has negative count %d", r.First, r.Count)
		}
		if r.count() > maxPorts-int(r.First) {
			return fmt.Errorf("port range at %#x with count %d exceeds the port space", r.First, r.Count)
		}
	}
	return nil
}

// parseStack parses a stack pointer. The empty string is the zero address.
func parseStack(s string) (hostarch.Addr, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad stack address %q: %w", s, err)
	}
	addr := hostarch.Addr(v)
	if !addr.IsCanonical() {
		return 0, fmt.Errorf("stack address %v is not canonical", addr)
	}
	return addr, nil
}

// stackSetter is implemented by ring0.TaskState64 and ring0.TaskStateUpdate.
type stackSetter interface {
	SetPrivilegeStack(level int, addr hostarch.Addr)
	SetInterruptStack(index int, addr hostarch.Addr)
}

// apply writes the stacks in c to tss. c must have been validated.
func apply(c *config, tss stackSetter) {
	for level, s := range c.PrivilegeStacks {
		addr, _ := parseStack(s)
		tss.SetPrivilegeStack(level, addr)
	}
	for i, s := range c.InterruptStacks {
		addr, _ := parseStack(s)
		tss.SetInterruptStack(i+1, addr)
	}
}
