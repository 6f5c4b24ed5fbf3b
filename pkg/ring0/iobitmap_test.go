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
	"math"
	"testing"
)

func TestIOPermissionBitmap(t *testing.T) {
	b := make(IOPermissionBitmap, 4)
	b.DenyAll()
	if got := b.Ports(); got != 32 {
		t.Errorf("Ports() = %d, want 32", got)
	}
	for port := uint16(0); port < 40; port++ {
		if b.Allowed(port) {
			t.Errorf("Allowed(%d) = true on a fresh bitmap", port)
		}
	}

	if err := b.Allow(9); err != nil {
		t.Fatalf("Allow(9): %v", err)
	}
	if !b.Allowed(9) {
		t.Errorf("Allowed(9) = false after Allow")
	}
	if got := b[1]; got != 0xfd {
		t.Errorf("byte 1 = %#x, want 0xfd", got)
	}
	b.Deny(9)
	if b.Allowed(9) || b[1] != 0xff {
		t.Errorf("port 9 still allowed after Deny, byte 1 = %#x", b[1])
	}

	// Uncovered ports.
	if err := b.Allow(32); !errors.Is(err, ErrPortNotCovered) {
		t.Errorf("Allow(32) = %v, want %v", err, ErrPortNotCovered)
	}
	b.Deny(1000)
}

func TestAllowRange(t *testing.T) {
	b := make(IOPermissionBitmap, 4)
	b.DenyAll()
	if err := b.AllowRange(6, 4); err != nil {
		t.Fatalf("AllowRange(6, 4): %v", err)
	}
	want := IOPermissionBitmap{0x3f, 0xfc, 0xff, 0xff}
	for i := range want {
		if b[i] != want[i] {
			t.Errorf("byte %d = %#x, want %#x", i, b[i], want[i])
		}
	}

	if err := b.AllowRange(30, 3); !errors.Is(err, ErrPortNotCovered) {
		t.Errorf("AllowRange(30, 3) = %v, want %v", err, ErrPortNotCovered)
	}
	if b.Allowed(30) || b.Allowed(31) {
		t.Errorf("failed AllowRange modified the bitmap: %x", b)
	}
	for _, count := range []int{math.MaxInt, math.MaxInt - 1, math.MaxInt / 2} {
		if err := b.AllowRange(2, count); !errors.Is(err, ErrPortNotCovered) {
			t.Errorf("AllowRange(2, %d) = %v, want %v", count, err, ErrPortNotCovered)
		}
	}
	if err := b.AllowRange(0xffff, 1); !errors.Is(err, ErrPortNotCovered) {
		t.Errorf("AllowRange(0xffff, 1) = %v, want %v", err, ErrPortNotCovered)
	}
	if err := b.AllowRange(0, 0); err != nil {
		t.Errorf("AllowRange(0, 0) = %v, want nil", err)
	}
}

func TestEmptyBitmap(t *testing.T) {
	b := NewTaskState64[NoIOBitmap]().IOPermissions()
	if b.Ports() != 0 || b.Allowed(0) {
		t.Errorf("empty bitmap covers ports")
	}
	if err := b.Allow(0); !errors.Is(err, ErrPortNotCovered) {
		t.Errorf("Allow(0) = %v, want %v", err, ErrPortNotCovered)
	}
	b.DenyAll()
}
