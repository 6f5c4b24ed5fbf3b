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

// Package ring0 provides the 64-bit task state segment and the handle used to
// activate it.
package ring0

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"unsafe"

	"gvisor.dev/tss/pkg/hostarch"
)

// I/O permission bitmap sizes.
//
// Any [N]byte may be used as the bitmap type of a TaskState64; these are the
// common ones.
type (
	// NoIOBitmap carries no bitmap. Every port access from user mode
	// faults, since ports not covered by the bitmap are treated as denied.
	NoIOBitmap [0]byte

	// LegacyIOBitmap covers ports 0x0 through 0x3ff.
	LegacyIOBitmap [128]byte

	// FullIOBitmap covers all 65536 ports.
	FullIOBitmap [8192]byte
)

const (
	// PrivilegeLevels is the number of privilege stacks (rings 0-2).
	PrivilegeLevels = 3

	// InterruptStacks is the number of interrupt stack table entries.
	// Entries are numbered from 1, matching the IST field of an IDT gate.
	InterruptStacks = 7

	// TaskStateBaseSize is the architectural size of a 64-bit TSS without an
	// I/O permission bitmap.
	TaskStateBaseSize = 0x68

	// ioMapDeny is a bitmap byte denying all eight ports.
	ioMapDeny = 0xff
)

// TaskState64 is a 64-bit task state segment, followed by an I/O permission
// bitmap of type B and the terminating byte required by the SDM.
//
// All fields are byte arrays, so the structure has no alignment padding and
// its in-memory image is exactly what the processor reads. Multi-byte values
// are little-endian.
//
// B must be a byte array type. The zero value is not usable; call Init or
// NewTaskState64.
type TaskState64[B any] struct {
	reserved1       [4]byte
	privilegeStacks [PrivilegeLevels][8]byte
	reserved2       [8]byte
	interruptStacks [InterruptStacks][8]byte
	reserved3       [8]byte
	reserved4       [2]byte
	ioMapBase       [2]byte
	ioMap           B
	ioMapLastByte   byte
}

// NewTaskState64 returns an initialized TaskState64.
func NewTaskState64[B any]() *TaskState64[B] {
	t := new(TaskState64[B])
	t.Init()
	return t
}

// Init resets t: all stack pointers are zero, the I/O map base points at the
// bitmap, and every port is denied.
func (t *TaskState64[B]) Init() {
	checkIOBitmap[B]()
	*t = TaskState64[B]{}
	binary.LittleEndian.PutUint16(t.ioMapBase[:], uint16(unsafe.Offsetof(t.ioMap)))
	t.IOPermissions().DenyAll()
	t.ioMapLastByte = ioMapDeny
}

// checkIOBitmap panics if B is not a byte array.
func checkIOBitmap[B any]() {
	typ := reflect.TypeOf((*B)(nil)).Elem()
	if typ.Kind() != reflect.Array || typ.Elem().Kind() != reflect.Uint8 {
		panic(fmt.Sprintf("I/O permission bitmap must be a byte array, got %v", typ))
	}
	if TaskStateBaseSize+typ.Len() > 0xffff {
		panic(fmt.Sprintf("I/O permission bitmap of %d bytes exceeds the TSS limit", typ.Len()))
	}
}

// PrivilegeStack returns the stack pointer loaded on a switch to the given
// privilege level (0-2).
func (t *TaskState64[B]) PrivilegeStack(level int) hostarch.Addr {
	return hostarch.Addr(binary.LittleEndian.Uint64(t.privilegeStacks[level][:]))
}

// SetPrivilegeStack sets the stack pointer for the given privilege level.
//
// addr must be canonical.
func (t *TaskState64[B]) SetPrivilegeStack(level int, addr hostarch.Addr) {
	binary.LittleEndian.PutUint64(t.privilegeStacks[level][:], uint64(addr))
}

// InterruptStack returns interrupt stack table entry index (1-7).
func (t *TaskState64[B]) InterruptStack(index int) hostarch.Addr {
	return hostarch.Addr(binary.LittleEndian.Uint64(t.interruptStacks[istSlot(index)][:]))
}

// SetInterruptStack sets interrupt stack table entry index (1-7).
//
// addr must be canonical.
func (t *TaskState64[B]) SetInterruptStack(index int, addr hostarch.Addr) {
	binary.LittleEndian.PutUint64(t.interruptStacks[istSlot(index)][:], uint64(addr))
}

func istSlot(index int) int {
	if index < 1 || index > InterruptStacks {
		panic(fmt.Sprintf("interrupt stack index %d out of range", index))
	}
	return index - 1
}

// IOMapBase returns the offset of the I/O permission bitmap.
func (t *TaskState64[B]) IOMapBase() uint16 {
	return binary.LittleEndian.Uint16(t.ioMapBase[:])
}

// IOPermissions returns the I/O permission bitmap. The returned slice aliases
// t.
func (t *TaskState64[B]) IOPermissions() IOPermissionBitmap {
	return unsafe.Slice((*byte)(unsafe.Pointer(&t.ioMap)), unsafe.Sizeof(t.ioMap))
}

// Size returns the size of the hardware image.
func (t *TaskState64[B]) Size() uintptr {
	return unsafe.Sizeof(*t)
}

// Limit returns the segment limit for the TSS descriptor.
func (t *TaskState64[B]) Limit() uint32 {
	return uint32(t.Size() - 1)
}

// Bytes returns the hardware image. The returned slice aliases t.
func (t *TaskState64[B]) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(t)), t.Size())
}

// Field describes one field of the hardware image.
type Field struct {
	Name   string
	Offset uintptr
	Size   uintptr
}

// Layout returns the fields of the hardware image in address order.
func (t *TaskState64[B]) Layout() []Field {
	return []Field{
		{"reserved_1", unsafe.Offsetof(t.reserved1), unsafe.Sizeof(t.reserved1)},
		{"privilege_stack_table", unsafe.Offsetof(t.privilegeStacks), unsafe.Sizeof(t.privilegeStacks)},
		{"reserved_2", unsafe.Offsetof(t.reserved2), unsafe.Sizeof(t.reserved2)},
		{"interrupt_stack_table", unsafe.Offsetof(t.interruptStacks), unsafe.Sizeof(t.interruptStacks)},
		{"reserved_3", unsafe.Offsetof(t.reserved3), unsafe.Sizeof(t.reserved3)},
		{"reserved_4", unsafe.Offsetof(t.reserved4), unsafe.Sizeof(t.reserved4)},
		{"iomap_base", unsafe.Offsetof(t.ioMapBase), unsafe.Sizeof(t.ioMapBase)},
		{"iomap", unsafe.Offsetof(t.ioMap), unsafe.Sizeof(t.ioMap)},
		{"iomap_last_byte", unsafe.Offsetof(t.ioMapLastByte), unsafe.Sizeof(t.ioMapLastByte)},
	}
}

func init() {
	// The architectural layout must come out of the compiler unchanged.
	var t TaskState64[NoIOBitmap]
	if t.Size() != TaskStateBaseSize+1 {
		panic(fmt.Sprintf("TaskState64 size is %#x, want %#x", t.Size(), TaskStateBaseSize+1))
	}
	if off := unsafe.Offsetof(t.ioMap); off != TaskStateBaseSize {
		panic(fmt.Sprintf("TaskState64 I/O map offset is %#x, want %#x", off, TaskStateBaseSize))
	}
}
