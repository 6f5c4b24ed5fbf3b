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

package ring0

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"
	"gvisor.dev/tss/pkg/hostarch"
)

// ErrClaimed is returned when a task state has already been claimed for
// activation.
var ErrClaimed = errors.New("task state already claimed for activation")

// staticTaskStates holds every task state allocated by NewStaticTaskState64.
// Entries are never removed.
var staticTaskStates struct {
	mu      sync.Mutex
	pinners []*runtime.Pinner
}

// noCopy may be embedded into structs which must not be copied after first
// use. It is flagged by go vet's copylocks check.
type noCopy struct{}

// Lock is a no-op used by go vet's copylocks check.
func (*noCopy) Lock() {}

// Unlock is a no-op used by go vet's copylocks check.
func (*noCopy) Unlock() {}

// staticTaskState is the permanent record behind a StaticTaskState64. The
// claim state lives here, next to the task state, so that every copy of a
// StaticTaskState64 observes the same claim.
type staticTaskState[B any] struct {
	// mu protects claimed and mutations of tss before the claim.
	mu      sync.Mutex
	claimed bool

	// tss is the hardware image. Its address is handed to the processor.
	tss TaskState64[B]
}

// StaticTaskState64 is a TaskState64 with permanent storage: it is never
// moved or freed for the remaining lifetime of the process. This is the only
// kind of task state that may be claimed for activation, since the processor
// keeps using the address after the task register is loaded.
//
// A StaticTaskState64 must be obtained from NewStaticTaskState64.
type StaticTaskState64[B any] struct {
	_ noCopy

	// s is pinned and referenced from staticTaskStates.
	s *staticTaskState[B]
}

// NewStaticTaskState64 allocates an initialized task state with permanent
// storage.
func NewStaticTaskState64[B any]() *StaticTaskState64[B] {
	s := new(staticTaskState[B])
	s.tss.Init()

	p := new(runtime.Pinner)
	p.Pin(s)
	staticTaskStates.mu.Lock()
	staticTaskStates.pinners = append(staticTaskStates.pinners, p)
	n := len(staticTaskStates.pinners)
	staticTaskStates.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"addr":  fmt.Sprintf("%#x", uintptr(unsafe.Pointer(&s.tss))),
		"size":  s.tss.Size(),
		"count": n,
	}).Debug("Allocated static task state")
	return &StaticTaskState64[B]{s: s}
}

func (st *StaticTaskState64[B]) state() *staticTaskState[B] {
	if st.s == nil {
		panic("StaticTaskState64 not allocated by NewStaticTaskState64")
	}
	return st.s
}

// TaskStateUpdate is the view of an unclaimed task state passed to
// StaticTaskState64.Update. It is only valid until Update returns.
type TaskStateUpdate[B any] struct {
	tss *TaskState64[B]
}

func (u *TaskStateUpdate[B]) state() *TaskState64[B] {
	if u.tss == nil {
		panic("TaskStateUpdate used after Update returned")
	}
	return u.tss
}

// PrivilegeStack returns the stack pointer for the given privilege level.
func (u *TaskStateUpdate[B]) PrivilegeStack(level int) hostarch.Addr {
	return u.state().PrivilegeStack(level)
}

// SetPrivilegeStack sets the stack pointer for the given privilege level.
//
// addr must be canonical.
func (u *TaskStateUpdate[B]) SetPrivilegeStack(level int, addr hostarch.Addr) {
	u.state().SetPrivilegeStack(level, addr)
}

// InterruptStack returns interrupt stack table entry index (1-7).
func (u *TaskStateUpdate[B]) InterruptStack(index int) hostarch.Addr {
	return u.state().InterruptStack(index)
}

// SetInterruptStack sets interrupt stack table entry index (1-7).
//
// addr must be canonical.
func (u *TaskStateUpdate[B]) SetInterruptStack(index int, addr hostarch.Addr) {
	u.state().SetInterruptStack(index, addr)
}

// IOPermissions returns the I/O permission bitmap.
func (u *TaskStateUpdate[B]) IOPermissions() IOPermissionBitmap {
	return u.state().IOPermissions()
}

// Update calls fn with a view of the task state. It returns ErrClaimed once
// the task state has been claimed; the stack tables are frozen from then on.
//
// The view does not expose reserved fields or the I/O map base, and panics
// if used after Update returns.
func (st *StaticTaskState64[B]) Update(fn func(*TaskStateUpdate[B])) error {
	s := st.state()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed {
		return fmt.Errorf("update: %w", ErrClaimed)
	}
	u := &TaskStateUpdate[B]{tss: &s.tss}
	defer func() { u.tss = nil }()
	fn(u)
	return nil
}

// PrivilegeStack returns the stack pointer for the given privilege level.
func (st *StaticTaskState64[B]) PrivilegeStack(level int) hostarch.Addr {
	s := st.state()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tss.PrivilegeStack(level)
}

// InterruptStack returns interrupt stack table entry index (1-7).
func (st *StaticTaskState64[B]) InterruptStack(index int) hostarch.Addr {
	s := st.state()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tss.InterruptStack(index)
}

// Snapshot returns a copy of the hardware image.
func (st *StaticTaskState64[B]) Snapshot() []byte {
	s := st.state()
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.tss.Bytes()...)
}

// Claimed returns true if Claim has succeeded.
func (st *StaticTaskState64[B]) Claimed() bool {
	s := st.state()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimed
}

// Claim hands the task state over for activation. It returns the handle to
// pass to the code that installs the TSS descriptor and loads the task
// register, along with the I/O permission bitmap, which stays writable for
// runtime permission changes.
//
// Claim succeeds at most once per task state, across all copies of st; later
// calls return ErrClaimed.
func (st *StaticTaskState64[B]) Claim() (ActivationHandle[B], IOPermissionBitmap, error) {
	s := st.state()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed {
		return ActivationHandle[B]{}, nil, fmt.Errorf("claim: %w", ErrClaimed)
	}
	s.claimed = true

	h := ActivationHandle[B]{
		base:  uintptr(unsafe.Pointer(&s.tss)),
		limit: s.tss.Limit(),
	}
	logrus.WithFields(logrus.Fields{
		"base":  h.Base(),
		"limit": fmt.Sprintf("%#x", h.limit),
	}).Debug("Claimed task state for activation")
	return h, s.tss.IOPermissions(), nil
}

// ActivationHandle is proof that a task state has permanent storage and has
// been claimed for activation. It may be copied freely.
//
// The only way to obtain a valid ActivationHandle is
// StaticTaskState64.Claim.
type ActivationHandle[B any] struct {
	// base is the address of a pinned TaskState64[B] referenced from
	// staticTaskStates. It is stored as a uintptr because the processor,
	// not the Go runtime, is the user of this reference.
	base  uintptr
	limit uint32
}

// Valid returns true if h was returned by Claim.
func (h ActivationHandle[B]) Valid() bool {
	return h.base != 0
}

// Base returns the linear address of the task state, for the TSS descriptor.
func (h ActivationHandle[B]) Base() hostarch.Addr {
	return hostarch.Addr(h.base)
}

// Limit returns the segment limit of the task state, for the TSS descriptor.
func (h ActivationHandle[B]) Limit() uint32 {
	return h.limit
}
